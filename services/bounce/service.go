package bounce

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

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
)

type bounceService struct {
	log       logger.Logger
	repos     *repository.Repositories
	secretBox *crypto.SecretBox
	dialer    interfaces.MailboxDialer
	publisher interfaces.EventsPublisher
	lookback  time.Duration
}

func NewBounceService(
	log logger.Logger,
	repos *repository.Repositories,
	secretBox *crypto.SecretBox,
	dialer interfaces.MailboxDialer,
	publisher interfaces.EventsPublisher,
	lookback time.Duration,
) interfaces.BounceService {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &bounceService{
		log:       log,
		repos:     repos,
		secretBox: secretBox,
		dialer:    dialer,
		publisher: publisher,
		lookback:  lookback,
	}
}

// CheckBounces scans the sender's mailbox for recent delivery-failure
// notifications and retroactively fails every matched recipient. A
// recipient already FAILED is skipped, which makes repeated scans over an
// unchanged mailbox no-ops.
func (s *bounceService) CheckBounces(ctx context.Context, senderID string) (*dto.BounceResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BounceService.CheckBounces")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, senderID)

	sender, err := s.repos.SenderRepository.GetByID(ctx, senderID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	password, err := s.secretBox.Decrypt(sender.EncryptedPassword, sender.IV)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	session, err := s.dialer.Dial(ctx, sender, password)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(interr.ErrImapConnection, err.Error())
	}
	defer session.Close()

	since := utils.Now().Add(-s.lookback)
	bounces, err := session.SearchBounces(ctx, since)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("bounces.found", len(bounces))

	result := &dto.BounceResult{Updates: []dto.BounceUpdate{}}
	for _, bounce := range bounces {
		update, err := s.reconcileBounce(ctx, sender, bounce)
		if err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("failed to reconcile bounce %q: %v", bounce.Subject, err)
			continue
		}
		if update != nil {
			result.Updates = append(result.Updates, *update)
			result.BouncedCount++
		}
	}

	span.LogKV("bounces.reconciled", result.BouncedCount)
	return result, nil
}

// reconcileBounce attributes one bounce message to a recipient and flips
// it. Returns nil without error when the bounce cannot be attributed or the
// recipient is already FAILED.
func (s *bounceService) reconcileBounce(ctx context.Context, sender *models.Sender, bounce dto.BounceMessage) (*dto.BounceUpdate, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BounceService.reconcileBounce")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	originalID := bounce.OriginalMessageID()
	if originalID == "" {
		return nil, nil
	}
	messageID := utils.NormalizeMessageID(originalID)

	recipient, err := s.repos.RecipientRepository.GetByMessageID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrRecipientNotFound) {
			// Bounce for mail this engine never sent.
			return nil, nil
		}
		return nil, err
	}

	if recipient.Status == enum.RecipientStatusFailed {
		return nil, nil
	}
	wasSent := recipient.Status == enum.RecipientStatusSent

	errorDetails := fmt.Sprintf("Bounce Detected: %s", bounce.Subject)
	if err = s.repos.RecipientRepository.MarkFailed(ctx, recipient.ID, errorDetails); err != nil {
		return nil, err
	}

	// A SENT recipient was already counted as a success, so the flip moves
	// one unit from success to failure. A PENDING one only adds a failure.
	successDelta := 0
	if wasSent {
		successDelta = -1
	}
	if err = s.repos.BatchRepository.IncrementCounters(ctx, recipient.BatchID, successDelta, 1); err != nil {
		return nil, err
	}

	event := &models.BounceEvent{
		SenderID:      sender.ID,
		BatchID:       recipient.BatchID,
		RecipientID:   recipient.ID,
		MessageID:     messageID,
		BounceSubject: bounce.Subject,
		References:    bounce.References,
		DetectedAt:    utils.Now(),
	}
	if err = s.repos.BounceEventRepository.Create(ctx, event); err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("failed to record bounce event for recipient %s: %v", recipient.ID, err)
	}

	if s.publisher != nil {
		publishErr := s.publisher.PublishEvent(ctx, events.RoutingKeyRecipientBounced, dto.RecipientBouncedEvent{
			BatchID:     recipient.BatchID,
			RecipientID: recipient.ID,
			Email:       recipient.Email,
			MessageID:   messageID,
			DetectedAt:  event.DetectedAt,
		})
		if publishErr != nil {
			s.log.Warnf("failed to publish recipient bounced event: %v", publishErr)
		}
	}

	return &dto.BounceUpdate{
		RecipientID: recipient.ID,
		BatchID:     recipient.BatchID,
		Email:       recipient.Email,
		Status:      enum.RecipientStatusFailed.String(),
		Error:       errorDetails,
	}, nil
}

// SweepAllSenders runs a bounce check for every registered sender,
// continuing past per-sender failures.
func (s *bounceService) SweepAllSenders(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BounceService.SweepAllSenders")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	senders, err := s.repos.SenderRepository.GetAll(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	span.LogKV("senders.count", len(senders))

	var failed int
	for i := range senders {
		result, err := s.CheckBounces(ctx, senders[i].ID)
		if err != nil {
			failed++
			s.log.Errorf("bounce sweep failed for sender %s: %v", senders[i].ID, err)
			continue
		}
		if result.BouncedCount > 0 {
			s.log.Infof("bounce sweep flipped %d recipients for sender %s", result.BouncedCount, senders[i].ID)
		}
	}

	if failed > 0 {
		return errors.Errorf("bounce sweep completed with %d of %d senders failing", failed, len(senders))
	}
	return nil
}
