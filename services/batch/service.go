package batch

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sendframe/sendframe/dto"
	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/crypto"
	"github.com/sendframe/sendframe/internal/enum"
	interr "github.com/sendframe/sendframe/internal/errors"
	"github.com/sendframe/sendframe/internal/logger"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/repository"
	"github.com/sendframe/sendframe/internal/tracing"
	"github.com/sendframe/sendframe/internal/utils"
	"github.com/sendframe/sendframe/services/events"
	"github.com/sendframe/sendframe/services/renderer"
)

// defaultChunkSize bounds how many recipients one chunked-mode call claims.
const defaultChunkSize = 5

type batchService struct {
	log       logger.Logger
	repos     *repository.Repositories
	secretBox *crypto.SecretBox
	dialer    interfaces.MailDialer
	bounces   interfaces.BounceService
	publisher interfaces.EventsPublisher
	chunkSize int
}

func NewBatchService(
	log logger.Logger,
	repos *repository.Repositories,
	secretBox *crypto.SecretBox,
	dialer interfaces.MailDialer,
	bounces interfaces.BounceService,
	publisher interfaces.EventsPublisher,
) interfaces.BatchService {
	return &batchService{
		log:       log,
		repos:     repos,
		secretBox: secretBox,
		dialer:    dialer,
		bounces:   bounces,
		publisher: publisher,
		chunkSize: defaultChunkSize,
	}
}

// Run drains the batch's eligible set (PENDING plus FAILED retries)
// sequentially over a single SMTP session, recording each outcome as it
// lands. A dial failure is fatal before any recipient is touched; a
// per-recipient send failure is recorded and the run continues.
func (s *batchService) Run(ctx context.Context, batchID string, sink dto.ProgressSink) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BatchService.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, batchID)

	if sink == nil {
		sink = func(dto.ProgressEvent) {}
	}

	batch, err := s.repos.BatchRepository.GetWithRelations(ctx, batchID)
	if err != nil {
		tracing.TraceErr(span, err)
		sink(dto.ProgressEvent{Type: dto.ProgressEventError, Message: err.Error()})
		return
	}

	eligible, err := s.repos.RecipientRepository.GetByStatuses(ctx, batchID,
		[]enum.RecipientStatus{enum.RecipientStatusPending, enum.RecipientStatusFailed}, 0)
	if err != nil {
		tracing.TraceErr(span, err)
		sink(dto.ProgressEvent{Type: dto.ProgressEventError, Message: err.Error()})
		return
	}

	if len(eligible) == 0 {
		if err = s.repos.BatchRepository.UpdateStatus(ctx, batchID, enum.BatchStatusCompleted); err != nil {
			tracing.TraceErr(span, err)
		}
		sink(dto.ProgressEvent{Type: dto.ProgressEventComplete, Message: "No pending recipients"})
		return
	}

	session, err := s.openSession(ctx, batch.Sender)
	if err != nil {
		tracing.TraceErr(span, err)
		sink(dto.ProgressEvent{Type: dto.ProgressEventError, Message: err.Error()})
		return
	}
	defer session.Close()

	// Announced only once the session is verified; a dial failure is a
	// terminal error with no work started.
	sink(dto.ProgressEvent{Type: dto.ProgressEventStart, Total: len(eligible)})

	if err = s.repos.BatchRepository.UpdateStatus(ctx, batchID, enum.BatchStatusProcessing); err != nil {
		tracing.TraceErr(span, err)
		sink(dto.ProgressEvent{Type: dto.ProgressEventError, Message: err.Error()})
		return
	}

	for i := range eligible {
		if ctx.Err() != nil {
			tracing.TraceErr(span, ctx.Err())
			sink(dto.ProgressEvent{Type: dto.ProgressEventError, Message: "run cancelled"})
			return
		}

		outcome := s.sendOne(ctx, batch, session, &eligible[i])
		sink(outcome)
	}

	if err = s.repos.BatchRepository.UpdateStatus(ctx, batchID, enum.BatchStatusCompleted); err != nil {
		tracing.TraceErr(span, err)
	}

	// Reconciliation right after a run catches immediate hard bounces.
	// Best effort: a mailbox failure never fails the run itself.
	if s.bounces != nil {
		result, err := s.bounces.CheckBounces(ctx, batch.SenderID)
		if err != nil {
			s.log.Warnf("post-run bounce check failed for sender %s: %v", batch.SenderID, err)
		} else {
			sink(dto.ProgressEvent{Type: dto.ProgressEventBounceSummary, BouncedCount: result.BouncedCount})
		}
	}

	s.publishCompleted(ctx, batchID)

	sink(dto.ProgressEvent{Type: dto.ProgressEventComplete, Message: "Batch processing complete"})
}

// sendOne renders, transmits and records one recipient. The returned event
// carries the observed outcome.
func (s *batchService) sendOne(ctx context.Context, batch *models.Batch, session interfaces.MailSession, recipient *models.Recipient) dto.ProgressEvent {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BatchService.sendOne")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, recipient.ID)

	wasFailed := recipient.Status == enum.RecipientStatusFailed

	msg := renderMessage(batch, recipient)
	messageID, err := session.Send(ctx, msg)
	if err != nil {
		tracing.TraceErr(span, err)

		// Status write and counter increment land together or not at all.
		dbErr := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
			if txErr := tx.RecipientRepository.MarkFailed(ctx, recipient.ID, err.Error()); txErr != nil {
				return txErr
			}
			// A FAILED retry that failed again is already counted.
			if !wasFailed {
				return tx.BatchRepository.IncrementCounters(ctx, batch.ID, 0, 1)
			}
			return nil
		})
		if dbErr != nil {
			tracing.TraceErr(span, dbErr)
			s.log.Errorf("failed to record send failure for recipient %s: %v", recipient.ID, dbErr)
		}

		return dto.ProgressEvent{
			Type:        dto.ProgressEventProgress,
			RecipientID: recipient.ID,
			Email:       recipient.Email,
			Status:      enum.RecipientStatusFailed.String(),
			Error:       err.Error(),
		}
	}

	// A successful retry moves one unit from failure to success.
	failureDelta := 0
	if wasFailed {
		failureDelta = -1
	}
	dbErr := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if txErr := tx.RecipientRepository.MarkSent(ctx, recipient.ID, messageID, utils.Now()); txErr != nil {
			return txErr
		}
		return tx.BatchRepository.IncrementCounters(ctx, batch.ID, 1, failureDelta)
	})
	if dbErr != nil {
		tracing.TraceErr(span, dbErr)
		s.log.Errorf("failed to record send success for recipient %s: %v", recipient.ID, dbErr)
	}

	return dto.ProgressEvent{
		Type:        dto.ProgressEventProgress,
		RecipientID: recipient.ID,
		Email:       recipient.Email,
		Status:      enum.RecipientStatusSent.String(),
	}
}

// ProcessChunk claims one bounded group of PENDING recipients and sends
// them concurrently. FAILED recipients are not retried here; retries go
// through the streaming run or an explicit edit.
func (s *batchService) ProcessChunk(ctx context.Context, batchID string) (*dto.ChunkResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BatchService.ProcessChunk")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, batchID)

	batch, err := s.repos.BatchRepository.GetWithRelations(ctx, batchID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	pending, err := s.repos.RecipientRepository.GetByStatuses(ctx, batchID,
		[]enum.RecipientStatus{enum.RecipientStatusPending}, s.chunkSize)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if len(pending) == 0 {
		if err = s.repos.BatchRepository.UpdateStatus(ctx, batchID, enum.BatchStatusCompleted); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		return &dto.ChunkResult{}, nil
	}

	// Verify credentials before claiming the chunk: a dial failure must
	// surface as a batch-level error, not five recipient failures.
	password, err := s.decryptPassword(batch.Sender)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	probe, err := s.dialer.Dial(ctx, batch.Sender, password)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(interr.ErrSmtpConnection, err.Error())
	}
	probe.Close()

	if err = s.repos.BatchRepository.UpdateStatus(ctx, batchID, enum.BatchStatusProcessing); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var mu sync.Mutex
	result := &dto.ChunkResult{Processed: len(pending)}

	// SMTP sessions are single-connection and not safe for concurrent
	// sends, so each worker holds its own.
	group, groupCtx := errgroup.WithContext(ctx)
	for i := range pending {
		recipient := &pending[i]
		group.Go(func() error {
			session, err := s.dialer.Dial(groupCtx, batch.Sender, password)
			if err != nil {
				s.recordChunkFailure(groupCtx, recipient, errors.Wrap(interr.ErrSmtpConnection, err.Error()))
				mu.Lock()
				result.Failed++
				mu.Unlock()
				return nil
			}
			defer session.Close()

			messageID, err := session.Send(groupCtx, renderMessage(batch, recipient))
			if err != nil {
				s.recordChunkFailure(groupCtx, recipient, err)
				mu.Lock()
				result.Failed++
				mu.Unlock()
				return nil
			}

			if dbErr := s.repos.RecipientRepository.MarkSent(groupCtx, recipient.ID, messageID, utils.Now()); dbErr != nil {
				s.log.Errorf("failed to record send success for recipient %s: %v", recipient.ID, dbErr)
			}
			mu.Lock()
			result.Success++
			mu.Unlock()
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	// One aggregate write for the whole chunk, after the group settles.
	if err = s.repos.BatchRepository.IncrementCounters(ctx, batchID, result.Success, result.Failed); err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("failed to increment counters for batch %s: %v", batchID, err)
	}

	remaining, err := s.repos.RecipientRepository.CountByStatus(ctx, batchID, enum.RecipientStatusPending)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	result.Remaining = remaining

	if remaining == 0 {
		if err = s.repos.BatchRepository.UpdateStatus(ctx, batchID, enum.BatchStatusCompleted); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		s.publishCompleted(ctx, batchID)
	}

	span.LogKV("processed", result.Processed, "success", result.Success, "failed", result.Failed, "remaining", result.Remaining)
	return result, nil
}

func (s *batchService) recordChunkFailure(ctx context.Context, recipient *models.Recipient, sendErr error) {
	if dbErr := s.repos.RecipientRepository.MarkFailed(ctx, recipient.ID, sendErr.Error()); dbErr != nil {
		s.log.Errorf("failed to record send failure for recipient %s: %v", recipient.ID, dbErr)
	}
}

// AddRecipients appends PENDING recipients to the batch, growing the total
// and reopening a COMPLETED batch so the new rows are sendable.
func (s *batchService) AddRecipients(ctx context.Context, batchID string, records []dto.RecipientRecord) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BatchService.AddRecipients")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, batchID)
	span.LogKV("records", len(records))

	if _, err := s.repos.BatchRepository.GetByID(ctx, batchID); err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	recipients := make([]*models.Recipient, 0, len(records))
	for _, record := range records {
		if record.Email == "" {
			continue
		}
		recipients = append(recipients, &models.Recipient{
			BatchID:   batchID,
			Email:     record.Email,
			Variables: models.JSONMap(record.Variables),
			Status:    enum.RecipientStatusPending,
		})
	}
	if len(recipients) == 0 {
		return 0, repository.ErrInvalidInput
	}

	err := s.repos.Transaction(ctx, func(txRepos *repository.Repositories) error {
		if err := txRepos.RecipientRepository.CreateMany(ctx, recipients); err != nil {
			return err
		}
		if err := txRepos.BatchRepository.IncrementTotal(ctx, batchID, len(recipients)); err != nil {
			return err
		}
		return txRepos.BatchRepository.ReopenIfCompleted(ctx, batchID)
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	return len(recipients), nil
}

// EditRecipient rewrites a recipient's address. SENT recipients are
// immutable; a FAILED recipient is reset to PENDING so the next run retries
// it, with the failure count rolled back.
func (s *batchService) EditRecipient(ctx context.Context, batchID, recipientID, newEmail string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BatchService.EditRecipient")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, recipientID)

	if newEmail == "" {
		return repository.ErrInvalidInput
	}

	recipient, err := s.repos.RecipientRepository.GetByID(ctx, recipientID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if recipient.BatchID != batchID {
		return repository.ErrRecipientNotFound
	}
	if recipient.Status == enum.RecipientStatusSent {
		return interr.ErrRecipientSent
	}

	wasFailed := recipient.Status == enum.RecipientStatusFailed

	err = s.repos.Transaction(ctx, func(txRepos *repository.Repositories) error {
		if err := txRepos.RecipientRepository.ResetToPending(ctx, recipientID, newEmail); err != nil {
			return err
		}
		if wasFailed {
			if err := txRepos.BatchRepository.IncrementCounters(ctx, batchID, 0, -1); err != nil {
				return err
			}
		}
		return txRepos.BatchRepository.ReopenIfCompleted(ctx, batchID)
	})
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (s *batchService) openSession(ctx context.Context, sender *models.Sender) (interfaces.MailSession, error) {
	password, err := s.decryptPassword(sender)
	if err != nil {
		return nil, err
	}

	session, err := s.dialer.Dial(ctx, sender, password)
	if err != nil {
		return nil, errors.Wrap(interr.ErrSmtpConnection, err.Error())
	}
	return session, nil
}

func (s *batchService) decryptPassword(sender *models.Sender) (string, error) {
	if sender == nil {
		return "", errors.New("batch has no sender")
	}
	return s.secretBox.Decrypt(sender.EncryptedPassword, sender.IV)
}

func (s *batchService) publishCompleted(ctx context.Context, batchID string) {
	if s.publisher == nil {
		return
	}

	batch, err := s.repos.BatchRepository.GetByID(ctx, batchID)
	if err != nil {
		s.log.Warnf("failed to load batch %s for completion event: %v", batchID, err)
		return
	}

	err = s.publisher.PublishEvent(ctx, events.RoutingKeyBatchCompleted, dto.BatchCompletedEvent{
		BatchID:      batch.ID,
		SenderID:     batch.SenderID,
		SuccessCount: batch.SuccessCount,
		FailureCount: batch.FailureCount,
		CompletedAt:  utils.Now(),
	})
	if err != nil {
		s.log.Warnf("failed to publish batch completed event: %v", err)
	}
}

// renderMessage materializes the template for one recipient. The
// recipient's address is always available as the reserved {{email}}
// variable.
func renderMessage(batch *models.Batch, recipient *models.Recipient) dto.OutboundMessage {
	variables := make(map[string]string, len(recipient.Variables)+1)
	for key := range recipient.Variables {
		variables[key] = recipient.Variables.StringValue(key)
	}
	variables["email"] = recipient.Email

	return dto.OutboundMessage{
		FromAddress: batch.Sender.Email,
		FromName:    batch.Sender.FromName(),
		ToAddress:   recipient.Email,
		Subject:     renderer.Render(batch.Template.Subject, variables),
		BodyHTML:    renderer.Render(batch.Template.HTMLContent, variables),
	}
}
