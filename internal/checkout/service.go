// Package checkout runs the discount engine for cart evaluations coming from the storefront.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/discount-engine/internal/definition"
	"github.com/noah-isme/discount-engine/internal/discount"
	"github.com/noah-isme/discount-engine/internal/obs"
	"github.com/noah-isme/discount-engine/internal/resilience"
)

// Outcomes recorded when the engine never ran.
const (
	OutcomeInputTooLarge   = "input_too_large"
	OutcomeResolveFailed   = "resolve_failed"
	OutcomeEngineRecovered = "engine_recovered"
)

var (
	// ErrInputTooLarge is returned when the cart or configuration exceeds the configured bounds.
	ErrInputTooLarge = errors.New("checkout: input too large")
	// ErrNoResolver is returned when a stored discount is referenced but no store is wired.
	ErrNoResolver = errors.New("checkout: stored discounts unavailable")
)

// ConfigResolver loads a stored configuration blob by discount id.
type ConfigResolver interface {
	Config(ctx context.Context, id string) (json.RawMessage, error)
}

// Request is the run payload: the engine input plus an optional stored discount reference.
// An inline metafield always wins over DiscountID.
type Request struct {
	discount.Input
	DiscountID string `json:"discountId,omitempty"`
}

// ServiceConfig wires the evaluator dependencies.
type ServiceConfig struct {
	Resolver       ConfigResolver
	Breaker        *resilience.Breaker
	Metrics        *obs.DiscountMetrics
	Logger         *zerolog.Logger
	MaxCartLines   int
	MaxConfigBytes int
}

// Service evaluates carts. The returned Result is always usable: any failure degrades to
// the empty operation list and is reported through the error.
type Service struct {
	resolver       ConfigResolver
	breaker        *resilience.Breaker
	metrics        *obs.DiscountMetrics
	logger         zerolog.Logger
	maxCartLines   int
	maxConfigBytes int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Service{
		resolver:       cfg.Resolver,
		breaker:        cfg.Breaker,
		metrics:        cfg.Metrics,
		logger:         logger,
		maxCartLines:   cfg.MaxCartLines,
		maxConfigBytes: cfg.MaxConfigBytes,
	}
}

// Evaluate resolves the configuration, runs the engine and records the outcome.
func (s *Service) Evaluate(ctx context.Context, req Request) (res discount.Result, err error) {
	ctx, span := obs.Tracer().Start(ctx, "checkout.Evaluate")
	defer span.End()

	start := time.Now()
	outcome := ""
	var counts map[string]int
	defer func() {
		if rec := recover(); rec != nil {
			res = discount.NoOp()
			outcome = OutcomeEngineRecovered
			err = fmt.Errorf("discount engine panic: %v", rec)
		}
		took := time.Since(start)
		s.metrics.ObserveEvaluation(outcome, counts, took)
		span.SetAttributes(
			attribute.String("discount.outcome", outcome),
			attribute.Int("discount.cart_lines", len(req.Cart.Lines)),
			attribute.Float64("discount.duration_ms", obs.DurationMillis(took)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Warn().Ctx(ctx).Err(err).Str("outcome", outcome).Msg("discount evaluation degraded")
			return
		}
		s.logger.Debug().Ctx(ctx).Str("outcome", outcome).Int("candidates", total(counts)).Dur("took", took).Msg("discount evaluated")
	}()

	in := req.Input
	if s.maxCartLines > 0 && len(in.Cart.Lines) > s.maxCartLines {
		outcome = OutcomeInputTooLarge
		return discount.NoOp(), fmt.Errorf("%w: %d cart lines exceeds %d", ErrInputTooLarge, len(in.Cart.Lines), s.maxCartLines)
	}
	if in.Discount.Metafield.Raw() == nil && strings.TrimSpace(req.DiscountID) != "" {
		raw, rerr := s.resolve(ctx, req.DiscountID)
		if rerr != nil {
			outcome = OutcomeResolveFailed
			return discount.NoOp(), rerr
		}
		in.Discount.Metafield = &discount.Metafield{JSONValue: raw}
		span.SetAttributes(attribute.String("discount.id", req.DiscountID))
	}
	if size := configSize(in.Discount.Metafield); s.maxConfigBytes > 0 && size > s.maxConfigBytes {
		outcome = OutcomeInputTooLarge
		return discount.NoOp(), fmt.Errorf("%w: config of %d bytes exceeds %d", ErrInputTooLarge, size, s.maxConfigBytes)
	}

	eval := discount.Evaluate(in)
	outcome = string(eval.Outcome)
	counts = make(map[string]int, len(eval.Strategies))
	for _, sc := range eval.Strategies {
		counts[sc.Name] = sc.Candidates
	}
	return eval.Result, nil
}

func (s *Service) resolve(ctx context.Context, id string) (json.RawMessage, error) {
	if s.resolver == nil {
		return nil, ErrNoResolver
	}
	var raw json.RawMessage
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var cerr error
		raw, cerr = s.resolver.Config(ctx, strings.TrimSpace(id))
		return cerr
	}, storeFailure)
	if err != nil {
		return nil, fmt.Errorf("resolve discount %q: %w", id, err)
	}
	return raw, nil
}

// storeFailure counts only errors that say something about the store's health.
func storeFailure(err error) bool {
	return !errors.Is(err, definition.ErrNotFound) && !errors.Is(err, context.Canceled)
}

func configSize(m *discount.Metafield) int {
	if m == nil {
		return 0
	}
	return len(m.Value) + len(m.JSONValue)
}

func total(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
