package services

import (
	"context"
	"errors"
	"time"

	"gota/internal/classify"
	"gota/internal/core"
	"gota/internal/log"
	"gota/internal/store"
)

// ErrClassifierUnavailable is returned when no language model is configured.
var ErrClassifierUnavailable = errors.New("classifier not configured")

// ParseService turns free text into an expense draft using the user's
// active cards as the choice of card.
type ParseService struct {
	classifier *classify.Classifier
	configs    store.ConfigStore
	now        func() time.Time
	logger     *log.StructuredLogger
}

func NewParseService(classifier *classify.Classifier, configs store.ConfigStore, logger *log.Logger) *ParseService {
	return &ParseService{classifier: classifier, configs: configs, now: time.Now, logger: log.NewStructuredLogger(logger)}
}

// Parse returns a rejection Result for text that does not describe a valid
// expense. Errors are reserved for unreachable collaborators.
func (s *ParseService) Parse(ctx context.Context, p core.Principal, text string) (classify.Result, error) {
	if s.classifier == nil {
		return classify.Result{}, core.Upstream("classify", ErrClassifierUnavailable)
	}
	cfg, err := s.configs.Get(ctx, p.UserID)
	if err != nil {
		s.logger.LogError(ctx, "Failed to read cards for parsing", err, log.ComponentClassify, log.OpParse,
			log.NewFields().WithUser(p.UserID).WithErrorType(log.ErrorTypeDatabase))
		return classify.Result{}, core.Upstream("get config", err)
	}

	result, err := s.classifier.Classify(ctx, classify.Request{
		Text:  text,
		Today: core.DateOf(s.now().In(core.Zone)),
		Cards: cfg.ActiveCards(),
	})
	if err != nil {
		s.logger.LogError(ctx, "Classification failed", err, log.ComponentClassify, log.OpParse,
			log.NewFields().WithUser(p.UserID).WithErrorType(log.ErrorTypeUpstream))
		return classify.Result{}, err
	}
	return result, nil
}
