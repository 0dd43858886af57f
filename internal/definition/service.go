package definition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/discount-engine/internal/obs"
)

// ErrConfigTooLarge is returned when a configuration exceeds the configured byte bound.
var ErrConfigTooLarge = errors.New("definition: config too large")

// ServiceConfig wires the service dependencies.
type ServiceConfig struct {
	Repo           Repository
	Cache          *Cache
	Metrics        *obs.DiscountMetrics
	Logger         *zerolog.Logger
	MaxConfigBytes int
	Now            func() time.Time
}

// Service manages stored definitions and previews configurations against sample carts.
type Service struct {
	repo           Repository
	cache          *Cache
	metrics        *obs.DiscountMetrics
	logger         zerolog.Logger
	maxConfigBytes int
	now            func() time.Time
}

// NewService constructs a definition service.
func NewService(cfg ServiceConfig) *Service {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:           cfg.Repo,
		cache:          cfg.Cache,
		metrics:        cfg.Metrics,
		logger:         logger,
		maxConfigBytes: cfg.MaxConfigBytes,
		now:            now,
	}
}

// Get returns a definition, reading through the cache.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Definition, error) {
	if def, ok, err := s.cache.Get(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("definition_id", id.String()).Msg("definition cache read failed")
	} else if ok {
		s.metrics.ObserveCache(true)
		return def, nil
	}
	if s.cache.enabled() {
		s.metrics.ObserveCache(false)
	}

	def, err := s.repo.Get(ctx, id)
	if err != nil {
		return Definition{}, err
	}
	if err := s.cache.Set(ctx, def); err != nil {
		s.logger.Warn().Err(err).Str("definition_id", id.String()).Msg("definition cache write failed")
	}
	return def, nil
}

// Config resolves the stored configuration blob for id. It satisfies the resolver used by
// the checkout evaluator.
func (s *Service) Config(ctx context.Context, id string) (json.RawMessage, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	def, err := s.Get(ctx, parsed)
	if err != nil {
		return nil, err
	}
	return def.Config, nil
}

// List returns a page of definitions plus the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Definition, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Create validates and persists a new definition.
func (s *Service) Create(ctx context.Context, in Input) (Definition, error) {
	if err := s.check(in); err != nil {
		return Definition{}, err
	}
	now := s.now().UTC()
	def := Definition{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(in.Title),
		Config:    compact(in.Config),
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.repo.Create(ctx, def)
	if err != nil {
		return Definition{}, err
	}
	s.logger.Info().Str("definition_id", created.ID.String()).Msg("definition created")
	return created, nil
}

// Update replaces the title and configuration of an existing definition.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Definition, error) {
	if err := s.check(in); err != nil {
		return Definition{}, err
	}
	updated, err := s.repo.Update(ctx, Definition{
		ID:        id,
		Title:     strings.TrimSpace(in.Title),
		Config:    compact(in.Config),
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return Definition{}, err
	}
	s.invalidate(ctx, id)
	s.logger.Info().Str("definition_id", id.String()).Msg("definition updated")
	return updated, nil
}

// Delete removes a definition.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.logger.Info().Str("definition_id", id.String()).Msg("definition deleted")
	return nil
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("definition_id", id.String()).Msg("definition cache invalidation failed")
	}
}

func (s *Service) check(in Input) error {
	if err := authoringValidate.Struct(in); err != nil {
		verr := &ValidationError{Fields: map[string]string{}}
		collect(verr, "", err)
		return verr
	}
	if s.maxConfigBytes > 0 && len(in.Config) > s.maxConfigBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrConfigTooLarge, len(in.Config), s.maxConfigBytes)
	}
	return ValidateConfig(in.Config)
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return buf.Bytes()
}
