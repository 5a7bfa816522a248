package batch

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sendframe/sendframe/dto"
	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/enum"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/repository"
)

// In-memory repository fakes backing the orchestrator tests. State is
// guarded by one mutex so the chunk fan-out can hit them concurrently.

type fakeStore struct {
	mu            sync.Mutex
	batches       map[string]*models.Batch
	recipients    map[string]*models.Recipient
	counterWrites int
	failMarkSent  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		batches:    map[string]*models.Batch{},
		recipients: map[string]*models.Recipient{},
	}
}

func (s *fakeStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		BatchRepository:     &fakeBatchRepo{store: s},
		RecipientRepository: &fakeRecipientRepo{store: s},
	}
}

func (s *fakeStore) addBatch(batch *models.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batch.ID] = batch
}

func (s *fakeStore) addRecipient(recipient *models.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recipient.CreatedAt = time.Now().Add(time.Duration(len(s.recipients)) * time.Millisecond)
	s.recipients[recipient.ID] = recipient
}

func (s *fakeStore) counterWriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counterWrites
}

func (s *fakeStore) recipient(id string) models.Recipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.recipients[id]
}

func (s *fakeStore) batch(id string) models.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.batches[id]
}

type fakeBatchRepo struct {
	store *fakeStore
}

func (r *fakeBatchRepo) Create(ctx context.Context, batch *models.Batch) error {
	r.store.addBatch(batch)
	return nil
}

func (r *fakeBatchRepo) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[id]
	if !ok {
		return nil, repository.ErrBatchNotFound
	}
	clone := *batch
	return &clone, nil
}

func (r *fakeBatchRepo) GetWithRelations(ctx context.Context, id string) (*models.Batch, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeBatchRepo) GetByOwner(ctx context.Context, ownerID string) ([]models.Batch, error) {
	return nil, nil
}

func (r *fakeBatchRepo) UpdateStatus(ctx context.Context, id string, status enum.BatchStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[id]
	if !ok {
		return repository.ErrBatchNotFound
	}
	batch.Status = status
	return nil
}

func (r *fakeBatchRepo) ReopenIfCompleted(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[id]
	if !ok {
		return repository.ErrBatchNotFound
	}
	if batch.Status == enum.BatchStatusCompleted {
		batch.Status = enum.BatchStatusPending
	}
	return nil
}

func (r *fakeBatchRepo) IncrementCounters(ctx context.Context, id string, successDelta, failureDelta int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[id]
	if !ok {
		return repository.ErrBatchNotFound
	}
	if successDelta != 0 || failureDelta != 0 {
		r.store.counterWrites++
	}
	batch.SuccessCount += successDelta
	batch.FailureCount += failureDelta
	return nil
}

func (r *fakeBatchRepo) IncrementTotal(ctx context.Context, id string, delta int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[id]
	if !ok {
		return repository.ErrBatchNotFound
	}
	batch.TotalRecipients += delta
	return nil
}

type fakeRecipientRepo struct {
	store *fakeStore
}

func (r *fakeRecipientRepo) CreateMany(ctx context.Context, recipients []*models.Recipient) error {
	for i, recipient := range recipients {
		if recipient.ID == "" {
			recipient.ID = "rcpt_new_" + string(rune('a'+i))
		}
		r.store.addRecipient(recipient)
	}
	return nil
}

func (r *fakeRecipientRepo) GetByID(ctx context.Context, id string) (*models.Recipient, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	recipient, ok := r.store.recipients[id]
	if !ok {
		return nil, repository.ErrRecipientNotFound
	}
	clone := *recipient
	return &clone, nil
}

func (r *fakeRecipientRepo) GetByBatch(ctx context.Context, batchID string) ([]models.Recipient, error) {
	return r.GetByStatuses(ctx, batchID, []enum.RecipientStatus{
		enum.RecipientStatusPending, enum.RecipientStatusSent, enum.RecipientStatusFailed,
	}, 0)
}

func (r *fakeRecipientRepo) GetByStatuses(ctx context.Context, batchID string, statuses []enum.RecipientStatus, limit int) ([]models.Recipient, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	wanted := map[enum.RecipientStatus]bool{}
	for _, status := range statuses {
		wanted[status] = true
	}

	var result []models.Recipient
	for _, recipient := range r.store.recipients {
		if recipient.BatchID == batchID && wanted[recipient.Status] {
			result = append(result, *recipient)
		}
	}
	// insertion order
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].CreatedAt.Before(result[i].CreatedAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeRecipientRepo) GetByMessageID(ctx context.Context, messageID string) (*models.Recipient, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, recipient := range r.store.recipients {
		if recipient.MessageID == messageID {
			clone := *recipient
			return &clone, nil
		}
	}
	return nil, repository.ErrRecipientNotFound
}

func (r *fakeRecipientRepo) MarkSent(ctx context.Context, id, messageID string, sentAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failMarkSent {
		return errors.New("write refused")
	}
	recipient, ok := r.store.recipients[id]
	if !ok {
		return repository.ErrRecipientNotFound
	}
	recipient.Status = enum.RecipientStatusSent
	recipient.MessageID = messageID
	recipient.SentAt = &sentAt
	recipient.ErrorDetails = ""
	return nil
}

func (r *fakeRecipientRepo) MarkFailed(ctx context.Context, id, errorDetails string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	recipient, ok := r.store.recipients[id]
	if !ok {
		return repository.ErrRecipientNotFound
	}
	recipient.Status = enum.RecipientStatusFailed
	recipient.ErrorDetails = errorDetails
	return nil
}

func (r *fakeRecipientRepo) ResetToPending(ctx context.Context, id, newEmail string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	recipient, ok := r.store.recipients[id]
	if !ok {
		return repository.ErrRecipientNotFound
	}
	recipient.Status = enum.RecipientStatusPending
	recipient.ErrorDetails = ""
	recipient.MessageID = ""
	recipient.SentAt = nil
	if newEmail != "" {
		recipient.Email = newEmail
	}
	return nil
}

func (r *fakeRecipientRepo) CountByStatus(ctx context.Context, batchID string, status enum.RecipientStatus) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for _, recipient := range r.store.recipients {
		if recipient.BatchID == batchID && recipient.Status == status {
			count++
		}
	}
	return count, nil
}

// fakeDialer hands out scripted sessions. failAddresses lists recipients the
// session rejects; failDial makes the dial itself fail.
type fakeDialer struct {
	mu            sync.Mutex
	failDial      bool
	failAddresses map[string]string
	dialCount     int
	sent          []string
}

func (d *fakeDialer) Dial(ctx context.Context, sender *models.Sender, password string) (interfaces.MailSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialCount++
	if d.failDial {
		return nil, errors.New("535 authentication failed")
	}
	return &fakeSession{dialer: d}, nil
}

func (d *fakeDialer) sentAddresses() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}

type fakeSession struct {
	dialer *fakeDialer
	closed bool
}

func (s *fakeSession) Send(ctx context.Context, msg dto.OutboundMessage) (string, error) {
	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()
	if reason, ok := s.dialer.failAddresses[msg.ToAddress]; ok {
		return "", errors.New(reason)
	}
	s.dialer.sent = append(s.dialer.sent, msg.ToAddress)
	return "mid-" + msg.ToAddress, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeBounceService struct {
	result *dto.BounceResult
	err    error
	calls  int
}

func (b *fakeBounceService) CheckBounces(ctx context.Context, senderID string) (*dto.BounceResult, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	if b.result == nil {
		return &dto.BounceResult{}, nil
	}
	return b.result, nil
}

func (b *fakeBounceService) SweepAllSenders(ctx context.Context) error {
	return nil
}

type capturedEvent struct {
	routingKey string
	payload    interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *fakePublisher) PublishEvent(ctx context.Context, routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{routingKey: routingKey, payload: payload})
	return nil
}

func (p *fakePublisher) Close() error {
	return nil
}
