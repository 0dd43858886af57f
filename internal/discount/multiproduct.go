package discount

import "fmt"

// BuildMultiProductCandidates sums the quantities of every bundle-eligible line and emits
// one whole-line candidate per tier whose threshold is met. Tiers do not exclude each other.
func BuildMultiProductCandidates(lines []CartLine, cfg ParsedConfig) []Candidate {
	if len(cfg.MultiProductTiers) == 0 {
		return nil
	}
	var (
		targets []Target
		total   int
	)
	for _, line := range lines {
		productID, ok := line.ProductID()
		if !ok || !IsEligible(productID, cfg) {
			continue
		}
		targets = append(targets, wholeLine(line.ID))
		if line.Quantity > 0 {
			total += line.Quantity
		}
	}
	if len(targets) == 0 {
		return nil
	}

	var out []Candidate
	for _, tier := range cfg.MultiProductTiers {
		if total < tier.QuantityThreshold {
			continue
		}
		tierTargets := make([]Target, len(targets))
		copy(tierTargets, targets)
		out = append(out, Candidate{
			Message: tier.message(),
			Targets: tierTargets,
			Value:   valueOf(tier.Kind, tier.Value),
		})
	}
	return out
}

func (t MultiProductTier) message() string {
	if t.Kind == KindFixedAmount {
		return fmt.Sprintf("Buy %d+ across the bundle, save %s", t.QuantityThreshold, formatNumber(t.Value))
	}
	return fmt.Sprintf("Buy %d+ across the bundle, save %s%%", t.QuantityThreshold, formatNumber(t.Value))
}
