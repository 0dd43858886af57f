package discount

import (
	"fmt"
	"strconv"
)

// BuildVolumeCandidates emits at most one candidate per visible line: the largest volume
// tier whose minimum quantity the line reaches, applied to the whole line.
func BuildVolumeCandidates(lines []CartLine, cfg ParsedConfig) []Candidate {
	if len(cfg.VolumeTiers) == 0 {
		return nil
	}
	var out []Candidate
	for _, line := range lines {
		productID, ok := line.ProductID()
		if !ok || !cfg.visible(productID, line) {
			continue
		}
		tier, ok := selectVolumeTier(cfg.VolumeTiers, line.Quantity)
		if !ok {
			continue
		}
		out = append(out, Candidate{
			Message: tier.message(),
			Targets: []Target{wholeLine(line.ID)},
			Value:   valueOf(tier.Kind, tier.Value),
		})
	}
	return out
}

// selectVolumeTier expects tiers sorted by MinQuantity descending.
func selectVolumeTier(tiers []VolumeTier, quantity int) (VolumeTier, bool) {
	for _, tier := range tiers {
		if tier.MinQuantity <= quantity {
			return tier, true
		}
	}
	return VolumeTier{}, false
}

func (t VolumeTier) message() string {
	if t.Kind == KindFixedAmount {
		return fmt.Sprintf("Buy %d+, save %s", t.MinQuantity, formatNumber(t.Value))
	}
	return fmt.Sprintf("Buy %d+, save %s%%", t.MinQuantity, formatNumber(t.Value))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
