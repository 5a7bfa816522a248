package bounce

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendframe/sendframe/dto"
	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/crypto"
	"github.com/sendframe/sendframe/internal/enum"
	interr "github.com/sendframe/sendframe/internal/errors"
	"github.com/sendframe/sendframe/internal/logger"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/repository"
	"github.com/sendframe/sendframe/services/events"
)

const testKeyHex = "1f1e1d1c1b1a191817161514131211100f0e0d0c0b0a09080706050403020100"

type fixture struct {
	senders      map[string]*models.Sender
	recipients   map[string]*models.Recipient
	batches      map[string]*models.Batch
	bounceEvents []*models.BounceEvent
	mailbox      *fakeMailboxDialer
	published    []string
	service      interfaces.BounceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	secretBox, err := crypto.NewSecretBox(testKeyHex)
	require.NoError(t, err)

	f := &fixture{
		senders:    map[string]*models.Sender{},
		recipients: map[string]*models.Recipient{},
		batches:    map[string]*models.Batch{},
		mailbox:    &fakeMailboxDialer{},
	}

	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()

	repos := &repository.Repositories{
		SenderRepository:      &fxSenderRepo{f: f},
		BatchRepository:       &fxBatchRepo{f: f},
		RecipientRepository:   &fxRecipientRepo{f: f},
		BounceEventRepository: &fxBounceEventRepo{f: f},
	}

	f.service = NewBounceService(appLogger, repos, secretBox, f.mailbox, &fxPublisher{f: f}, 24*time.Hour)
	return f
}

func (f *fixture) seedSender(t *testing.T) *models.Sender {
	t.Helper()
	secretBox, err := crypto.NewSecretBox(testKeyHex)
	require.NoError(t, err)
	encrypted, iv, err := secretBox.Encrypt("imap-password")
	require.NoError(t, err)

	sender := &models.Sender{
		ID:                "sndr_main",
		Email:             "outreach@acme.com",
		EncryptedPassword: encrypted,
		IV:                iv,
		ImapServer:        "imap.acme.com",
		ImapPort:          993,
		ImapTLS:           true,
	}
	f.senders[sender.ID] = sender
	return sender
}

func (f *fixture) seedRecipient(id string, status enum.RecipientStatus, messageID string) {
	f.recipients[id] = &models.Recipient{
		ID:        id,
		BatchID:   "btch_main",
		Email:     id + "@example.com",
		Status:    status,
		MessageID: messageID,
	}
	if _, ok := f.batches["btch_main"]; !ok {
		f.batches["btch_main"] = &models.Batch{ID: "btch_main", SuccessCount: 0, FailureCount: 0}
	}
}

func TestCheckBounces_FlipsSentRecipientViaReferences(t *testing.T) {
	f := newFixture(t)
	f.seedSender(t)
	f.seedRecipient("rcpt_1", enum.RecipientStatusSent, "123.abc@acme.com")
	f.batches["btch_main"].SuccessCount = 1
	f.mailbox.bounces = []dto.BounceMessage{
		{
			Subject:    "Undelivered Mail Returned to Sender",
			References: []string{"<123.abc@acme.com>"},
		},
	}

	result, err := f.service.CheckBounces(context.Background(), "sndr_main")
	require.NoError(t, err)
	require.Equal(t, 1, result.BouncedCount)

	recipient := f.recipients["rcpt_1"]
	assert.Equal(t, enum.RecipientStatusFailed, recipient.Status)
	assert.Equal(t, "Bounce Detected: Undelivered Mail Returned to Sender", recipient.ErrorDetails)

	batch := f.batches["btch_main"]
	assert.Equal(t, 0, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailureCount)

	require.Len(t, f.bounceEvents, 1)
	assert.Equal(t, "123.abc@acme.com", f.bounceEvents[0].MessageID)
	assert.Equal(t, []string{events.RoutingKeyRecipientBounced}, f.published)
}

func TestCheckBounces_FallsBackToInReplyTo(t *testing.T) {
	f := newFixture(t)
	f.seedSender(t)
	f.seedRecipient("rcpt_1", enum.RecipientStatusSent, "456.def@acme.com")
	f.mailbox.bounces = []dto.BounceMessage{
		{Subject: "Delivery Status Notification (Failure)", InReplyTo: "<456.def@acme.com>"},
	}

	result, err := f.service.CheckBounces(context.Background(), "sndr_main")
	require.NoError(t, err)
	assert.Equal(t, 1, result.BouncedCount)
	assert.Equal(t, enum.RecipientStatusFailed, f.recipients["rcpt_1"].Status)
}

func TestCheckBounces_IdempotentAgainstUnchangedMailbox(t *testing.T) {
	f := newFixture(t)
	f.seedSender(t)
	f.seedRecipient("rcpt_1", enum.RecipientStatusSent, "789.ghi@acme.com")
	f.batches["btch_main"].SuccessCount = 1
	f.mailbox.bounces = []dto.BounceMessage{
		{Subject: "bounced", References: []string{"<789.ghi@acme.com>"}},
	}

	first, err := f.service.CheckBounces(context.Background(), "sndr_main")
	require.NoError(t, err)
	assert.Equal(t, 1, first.BouncedCount)

	second, err := f.service.CheckBounces(context.Background(), "sndr_main")
	require.NoError(t, err)
	assert.Equal(t, 0, second.BouncedCount)

	// Counters moved exactly once.
	batch := f.batches["btch_main"]
	assert.Equal(t, 0, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailureCount)
	assert.Len(t, f.bounceEvents, 1)
}

func TestCheckBounces_PendingRecipientOnlyAddsFailure(t *testing.T) {
	f := newFixture(t)
	f.seedSender(t)
	f.seedRecipient("rcpt_1", enum.RecipientStatusPending, "abc.123@acme.com")
	f.mailbox.bounces = []dto.BounceMessage{
		{Subject: "bounced", References: []string{"<abc.123@acme.com>"}},
	}

	_, err := f.service.CheckBounces(context.Background(), "sndr_main")
	require.NoError(t, err)

	batch := f.batches["btch_main"]
	assert.Equal(t, 0, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailureCount)
}

func TestCheckBounces_IgnoresUnattributableBounces(t *testing.T) {
	f := newFixture(t)
	f.seedSender(t)
	f.seedRecipient("rcpt_1", enum.RecipientStatusSent, "known@acme.com")
	f.mailbox.bounces = []dto.BounceMessage{
		{Subject: "no headers at all"},
		{Subject: "unknown message", References: []string{"<stranger@elsewhere.com>"}},
	}

	result, err := f.service.CheckBounces(context.Background(), "sndr_main")
	require.NoError(t, err)
	assert.Equal(t, 0, result.BouncedCount)
	assert.Equal(t, enum.RecipientStatusSent, f.recipients["rcpt_1"].Status)
	assert.Empty(t, f.bounceEvents)
}

func TestCheckBounces_MailboxDialFailure(t *testing.T) {
	f := newFixture(t)
	f.seedSender(t)
	f.mailbox.dialErr = errors.New("connection refused")

	_, err := f.service.CheckBounces(context.Background(), "sndr_main")
	require.Error(t, err)
	assert.ErrorIs(t, err, interr.ErrImapConnection)
}

func TestSweepAllSenders_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	f.seedSender(t)

	secretBox, err := crypto.NewSecretBox(testKeyHex)
	require.NoError(t, err)
	encrypted, iv, err := secretBox.Encrypt("pw")
	require.NoError(t, err)
	f.senders["sndr_broken"] = &models.Sender{
		ID:                "sndr_broken",
		Email:             "other@acme.com",
		EncryptedPassword: encrypted,
		IV:                iv,
	}

	f.seedRecipient("rcpt_1", enum.RecipientStatusSent, "swp.1@acme.com")
	f.mailbox.bounces = []dto.BounceMessage{
		{Subject: "bounced", References: []string{"<swp.1@acme.com>"}},
	}
	f.mailbox.failFor = map[string]error{"sndr_broken": errors.New("login failed")}

	err = f.service.SweepAllSenders(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 senders failing")

	// The healthy sender was still reconciled.
	assert.Equal(t, enum.RecipientStatusFailed, f.recipients["rcpt_1"].Status)
}

// fakes

type fakeMailboxDialer struct {
	mu       sync.Mutex
	bounces  []dto.BounceMessage
	dialErr  error
	failFor  map[string]error
	searches int
}

func (d *fakeMailboxDialer) Dial(ctx context.Context, sender *models.Sender, password string) (interfaces.MailboxSession, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	if err, ok := d.failFor[sender.ID]; ok {
		return nil, err
	}
	return &fakeMailboxSession{dialer: d}, nil
}

type fakeMailboxSession struct {
	dialer *fakeMailboxDialer
}

func (s *fakeMailboxSession) SearchBounces(ctx context.Context, since time.Time) ([]dto.BounceMessage, error) {
	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()
	s.dialer.searches++
	return s.dialer.bounces, nil
}

func (s *fakeMailboxSession) Close() error {
	return nil
}

type fxSenderRepo struct {
	f *fixture
}

func (r *fxSenderRepo) Create(ctx context.Context, sender *models.Sender) error {
	r.f.senders[sender.ID] = sender
	return nil
}

func (r *fxSenderRepo) GetByID(ctx context.Context, id string) (*models.Sender, error) {
	sender, ok := r.f.senders[id]
	if !ok {
		return nil, repository.ErrSenderNotFound
	}
	return sender, nil
}

func (r *fxSenderRepo) GetByOwner(ctx context.Context, ownerID string) ([]models.Sender, error) {
	return nil, nil
}

func (r *fxSenderRepo) GetAll(ctx context.Context) ([]models.Sender, error) {
	var all []models.Sender
	for _, sender := range r.f.senders {
		all = append(all, *sender)
	}
	return all, nil
}

func (r *fxSenderRepo) Delete(ctx context.Context, id string) error {
	delete(r.f.senders, id)
	return nil
}

type fxBatchRepo struct {
	f *fixture
}

func (r *fxBatchRepo) Create(ctx context.Context, batch *models.Batch) error { return nil }

func (r *fxBatchRepo) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	batch, ok := r.f.batches[id]
	if !ok {
		return nil, repository.ErrBatchNotFound
	}
	return batch, nil
}

func (r *fxBatchRepo) GetWithRelations(ctx context.Context, id string) (*models.Batch, error) {
	return r.GetByID(ctx, id)
}

func (r *fxBatchRepo) GetByOwner(ctx context.Context, ownerID string) ([]models.Batch, error) {
	return nil, nil
}

func (r *fxBatchRepo) UpdateStatus(ctx context.Context, id string, status enum.BatchStatus) error {
	return nil
}

func (r *fxBatchRepo) ReopenIfCompleted(ctx context.Context, id string) error { return nil }

func (r *fxBatchRepo) IncrementCounters(ctx context.Context, id string, successDelta, failureDelta int) error {
	batch, ok := r.f.batches[id]
	if !ok {
		return repository.ErrBatchNotFound
	}
	batch.SuccessCount += successDelta
	batch.FailureCount += failureDelta
	return nil
}

func (r *fxBatchRepo) IncrementTotal(ctx context.Context, id string, delta int) error { return nil }

type fxRecipientRepo struct {
	f *fixture
}

func (r *fxRecipientRepo) CreateMany(ctx context.Context, recipients []*models.Recipient) error {
	return nil
}

func (r *fxRecipientRepo) GetByID(ctx context.Context, id string) (*models.Recipient, error) {
	recipient, ok := r.f.recipients[id]
	if !ok {
		return nil, repository.ErrRecipientNotFound
	}
	return recipient, nil
}

func (r *fxRecipientRepo) GetByBatch(ctx context.Context, batchID string) ([]models.Recipient, error) {
	return nil, nil
}

func (r *fxRecipientRepo) GetByStatuses(ctx context.Context, batchID string, statuses []enum.RecipientStatus, limit int) ([]models.Recipient, error) {
	return nil, nil
}

func (r *fxRecipientRepo) GetByMessageID(ctx context.Context, messageID string) (*models.Recipient, error) {
	for _, recipient := range r.f.recipients {
		if recipient.MessageID == messageID {
			clone := *recipient
			return &clone, nil
		}
	}
	return nil, repository.ErrRecipientNotFound
}

func (r *fxRecipientRepo) MarkSent(ctx context.Context, id, messageID string, sentAt time.Time) error {
	return nil
}

func (r *fxRecipientRepo) MarkFailed(ctx context.Context, id, errorDetails string) error {
	recipient, ok := r.f.recipients[id]
	if !ok {
		return repository.ErrRecipientNotFound
	}
	recipient.Status = enum.RecipientStatusFailed
	recipient.ErrorDetails = errorDetails
	return nil
}

func (r *fxRecipientRepo) ResetToPending(ctx context.Context, id, newEmail string) error {
	return nil
}

func (r *fxRecipientRepo) CountByStatus(ctx context.Context, batchID string, status enum.RecipientStatus) (int64, error) {
	return 0, nil
}

type fxBounceEventRepo struct {
	f *fixture
}

func (r *fxBounceEventRepo) Create(ctx context.Context, event *models.BounceEvent) error {
	r.f.bounceEvents = append(r.f.bounceEvents, event)
	return nil
}

func (r *fxBounceEventRepo) GetBySender(ctx context.Context, senderID string) ([]models.BounceEvent, error) {
	return nil, nil
}

type fxPublisher struct {
	f *fixture
}

func (p *fxPublisher) PublishEvent(ctx context.Context, routingKey string, payload interface{}) error {
	p.f.published = append(p.f.published, routingKey)
	return nil
}

func (p *fxPublisher) Close() error { return nil }
