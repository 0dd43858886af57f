package definition

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/discount-engine/internal/discount"
	"github.com/noah-isme/discount-engine/internal/pricing"
)

// PreviewRequest evaluates an unsaved configuration against a sample cart.
type PreviewRequest struct {
	Config          json.RawMessage `json:"config"`
	Cart            discount.Cart   `json:"cart"`
	DiscountClasses []string        `json:"discountClasses,omitempty"`
}

// CandidateSavings estimates what one candidate takes off the sample cart.
type CandidateSavings struct {
	Message  string          `json:"message,omitempty"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
}

// PreviewResult is the engine output plus authoring diagnostics.
type PreviewResult struct {
	Result     discount.Result          `json:"result"`
	Config     discount.ParsedConfig    `json:"parsedConfig"`
	Outcome    discount.Outcome         `json:"outcome"`
	Strategies []discount.StrategyCount `json:"strategies"`
	Savings    []CandidateSavings       `json:"savings"`
	Issues     map[string]string        `json:"issues,omitempty"`
}

// Preview runs the engine exactly as checkout would. Authoring problems are reported as
// issues next to the result rather than failing the preview, since the engine tolerates them.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	if s.maxConfigBytes > 0 && len(req.Config) > s.maxConfigBytes {
		return PreviewResult{}, ErrConfigTooLarge
	}
	classes := req.DiscountClasses
	if len(classes) == 0 {
		classes = []string{discount.ProductDiscountClass}
	}

	started := time.Now()
	eval := discount.Evaluate(discount.Input{
		Cart: req.Cart,
		Discount: discount.DiscountInput{
			DiscountClasses: classes,
			Metafield:       &discount.Metafield{JSONValue: req.Config},
		},
	})
	s.metrics.ObserveEvaluation(string(eval.Outcome), strategyCounts(eval.Strategies), time.Since(started))

	out := PreviewResult{
		Result:     eval.Result,
		Config:     eval.Config,
		Outcome:    eval.Outcome,
		Strategies: eval.Strategies,
		Savings:    estimateSavings(req.Cart.Lines, eval.Candidates()),
	}
	if err := ValidateConfig(req.Config); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return PreviewResult{}, err
		}
		out.Issues = verr.Fields
	}
	s.logger.Debug().Ctx(ctx).Str("outcome", string(out.Outcome)).Int("issues", len(out.Issues)).Msg("preview evaluated")
	return out, nil
}

func strategyCounts(counts []discount.StrategyCount) map[string]int {
	out := make(map[string]int, len(counts))
	for _, c := range counts {
		out[c.Name] = c.Candidates
	}
	return out
}

func estimateSavings(lines []discount.CartLine, candidates []discount.Candidate) []CandidateSavings {
	byID := make(map[string]discount.CartLine, len(lines))
	for _, line := range lines {
		byID[line.ID] = line
	}
	out := make([]CandidateSavings, 0, len(candidates))
	for _, c := range candidates {
		items := make([]pricing.Item, 0, len(c.Targets))
		for _, target := range c.Targets {
			line, ok := byID[target.LineID]
			if !ok {
				continue
			}
			qty := line.Quantity
			if target.AppliedQuantity != nil {
				qty = *target.AppliedQuantity
			}
			items = append(items, pricing.Item{Qty: qty, UnitPrice: line.UnitPrice()})
		}
		summary := pricing.Compute(items, pricing.Adjustment{
			Percentage:        c.Value.Percentage,
			FixedAmount:       c.Value.FixedAmount,
			AppliesToEachItem: c.Value.AppliesToEachItem,
		})
		out = append(out, CandidateSavings{Message: c.Message, Subtotal: summary.Subtotal, Discount: summary.Discount})
	}
	return out
}
