package services

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"gota/internal/amqp"
	"gota/internal/core"
	"gota/internal/log"
	"gota/internal/store"
)

// CardChange renames and/or archives a card. Nil fields are left untouched.
type CardChange struct {
	Name     *string `json:"name"`
	Archived *bool   `json:"archived"`
}

// ConfigService manages the user's settings and the cards they own.
type ConfigService struct {
	configs   store.ConfigStore
	publisher EventPublisher
	logger    *log.Logger
	errors    *log.StructuredLogger
}

func NewConfigService(configs store.ConfigStore, publisher EventPublisher, logger *log.Logger) *ConfigService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ConfigService{
		configs:   configs,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentConfig),
		errors:    log.NewStructuredLogger(logger),
	}
}

func (s *ConfigService) Get(ctx context.Context, p core.Principal) (core.UserConfig, error) {
	cfg, err := s.configs.Get(ctx, p.UserID)
	if err != nil {
		s.logFailure(ctx, "Failed to read config", err, log.OpRead, p.UserID)
		return core.UserConfig{}, core.Upstream("get config", err)
	}
	return cfg, nil
}

// Update applies a partial config update. A cards list replaces the whole
// collection.
func (s *ConfigService) Update(ctx context.Context, p core.Principal, patch core.ConfigPatch) (core.UserConfig, error) {
	if patch.Cards != nil {
		cards := slices.Clone(*patch.Cards)
		for i := range cards {
			cards[i].Name = strings.TrimSpace(cards[i].Name)
		}
		patch.Cards = &cards
	}
	if err := patch.Validate(); err != nil {
		return core.UserConfig{}, err
	}
	return s.write(ctx, p, patch)
}

// AddCard appends a new active card with a server-generated id.
func (s *ConfigService) AddCard(ctx context.Context, p core.Principal, name string) (core.Card, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		verr := &core.ValidationError{}
		verr.Add("name", "Nombre de tarjeta requerido")
		return core.Card{}, verr
	}

	cfg, err := s.Get(ctx, p)
	if err != nil {
		return core.Card{}, err
	}
	card := core.Card{ID: uuid.NewString(), Name: name}
	cards := append(slices.Clone(cfg.Cards), card)
	if _, err := s.write(ctx, p, core.ConfigPatch{Cards: &cards}); err != nil {
		return core.Card{}, err
	}
	return card, nil
}

// UpdateCard renames, archives or restores one card. Archived cards stay in
// the collection so past expenses keep resolving their name.
func (s *ConfigService) UpdateCard(ctx context.Context, p core.Principal, id string, change CardChange) (core.Card, error) {
	cfg, err := s.Get(ctx, p)
	if err != nil {
		return core.Card{}, err
	}
	cards := slices.Clone(cfg.Cards)
	i := slices.IndexFunc(cards, func(c core.Card) bool { return c.ID == id })
	if i < 0 {
		return core.Card{}, core.ErrNotFound
	}

	if change.Name != nil {
		cards[i].Name = strings.TrimSpace(*change.Name)
	}
	if change.Archived != nil {
		cards[i].Archived = *change.Archived
	}
	patch := core.ConfigPatch{Cards: &cards}
	if err := patch.Validate(); err != nil {
		return core.Card{}, err
	}
	if _, err := s.write(ctx, p, patch); err != nil {
		return core.Card{}, err
	}
	return cards[i], nil
}

func (s *ConfigService) write(ctx context.Context, p core.Principal, patch core.ConfigPatch) (core.UserConfig, error) {
	cfg, err := s.configs.Update(ctx, p.UserID, patch)
	if err != nil {
		s.logFailure(ctx, "Failed to save config", err, log.OpUpdate, p.UserID)
		return core.UserConfig{}, core.Upstream("update config", err)
	}
	s.logger.InfoContext(ctx, "User config updated", log.FieldUserID, p.UserID, "cards", len(cfg.Cards))
	if patch.Cards != nil {
		// Card names appear in the mirrored rows.
		notify(ctx, s.publisher, s.logger, amqp.EventExpenseChanged, p.UserID, "")
	}
	return cfg, nil
}

func (s *ConfigService) logFailure(ctx context.Context, msg string, err error, op, userID string) {
	if !isUpstream(err) {
		return
	}
	s.errors.LogError(ctx, msg, err, log.ComponentConfig, op,
		log.NewFields().WithUser(userID).WithErrorType(log.ErrorTypeDatabase))
}
