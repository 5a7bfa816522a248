package services

import (
	"time"

	"github.com/sendframe/sendframe/config"
	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/crypto"
	"github.com/sendframe/sendframe/internal/logger"
	"github.com/sendframe/sendframe/internal/repository"
	"github.com/sendframe/sendframe/services/batch"
	"github.com/sendframe/sendframe/services/bounce"
	"github.com/sendframe/sendframe/services/events"
	"github.com/sendframe/sendframe/services/imap"
	"github.com/sendframe/sendframe/services/smtp"
)

type Services struct {
	SecretBox       *crypto.SecretBox
	EventsPublisher interfaces.EventsPublisher
	BatchService    interfaces.BatchService
	BounceService   interfaces.BounceService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	secretBox, err := crypto.NewSecretBox(cfg.AppConfig.EncryptionKey)
	if err != nil {
		return nil, err
	}

	// The broker is optional: without it the engine still runs, events are
	// just not emitted.
	var publisher interfaces.EventsPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err = events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log, nil)
		if err != nil {
			return nil, err
		}
	}

	lookback := time.Duration(cfg.BounceSweepConfig.LookbackHours) * time.Hour

	bounceService := bounce.NewBounceService(
		log,
		repos,
		secretBox,
		imap.NewDialer(),
		publisher,
		lookback,
	)

	batchService := batch.NewBatchService(
		log,
		repos,
		secretBox,
		smtp.NewDialer(cfg.AppConfig.MessageIDDomain),
		bounceService,
		publisher,
	)

	services := Services{
		SecretBox:       secretBox,
		EventsPublisher: publisher,
		BatchService:    batchService,
		BounceService:   bounceService,
	}

	return &services, nil
}
