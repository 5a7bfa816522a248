package handlers

import (
	"github.com/sendframe/sendframe/internal/repository"
	"github.com/sendframe/sendframe/services"
)

type Handlers struct {
	Senders   *SenderHandler
	Templates *TemplateHandler
	Batches   *BatchHandler
	Bounces   *BounceHandler
}

func InitHandlers(s *services.Services, repos *repository.Repositories) *Handlers {
	return &Handlers{
		Senders:   NewSenderHandler(repos, s.SecretBox),
		Templates: NewTemplateHandler(repos),
		Batches:   NewBatchHandler(repos, s.BatchService),
		Bounces:   NewBounceHandler(repos, s.BounceService),
	}
}
