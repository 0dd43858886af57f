package discount

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// productLine is a variant-backed cart line with its resolved product and unit price.
type productLine struct {
	line      CartLine
	productID string
	unitPrice decimal.Decimal
}

func variantLines(lines []CartLine) []productLine {
	out := make([]productLine, 0, len(lines))
	for _, line := range lines {
		productID, ok := line.ProductID()
		if !ok {
			continue
		}
		out = append(out, productLine{line: line, productID: productID, unitPrice: line.UnitPrice()})
	}
	return out
}

// pooled reports whether one pool of units serves as both the buy and the free side:
// both id lists empty, or both non-empty and equal as sets.
func (t BogoTier) pooled() bool {
	if len(t.BuyProductIDs) == 0 && len(t.FreeProductIDs) == 0 {
		return true
	}
	if len(t.BuyProductIDs) == 0 || len(t.FreeProductIDs) == 0 {
		return false
	}
	return NewIDSet(t.BuyProductIDs).Equal(NewIDSet(t.FreeProductIDs))
}

// BuildBogoCandidates evaluates explicit cross-product tiers globally, then evaluates
// pooled tiers per visible product, keeping only the tier granting the most free units
// for each product.
func BuildBogoCandidates(lines []CartLine, cfg ParsedConfig) []Candidate {
	if len(cfg.BogoTiers) == 0 {
		return nil
	}
	eligible := variantLines(lines)
	if len(eligible) == 0 {
		return nil
	}

	var explicit, pooled []BogoTier
	for _, tier := range cfg.BogoTiers {
		if tier.pooled() {
			pooled = append(pooled, tier)
		} else {
			explicit = append(explicit, tier)
		}
	}

	var out []Candidate
	for _, tier := range explicit {
		buySet := NewIDSet(tier.BuyProductIDs)
		freeSet := NewIDSet(tier.FreeProductIDs)
		var buy, free []productLine
		for _, pl := range eligible {
			if buySet.Has(pl.productID) {
				buy = append(buy, pl)
			}
			if freeSet.Has(pl.productID) {
				free = append(free, pl)
			}
		}
		if len(buy) == 0 || len(free) == 0 {
			continue
		}
		if candidate, ok := buildBogoCandidate(tier, buy, free); ok {
			out = append(out, candidate)
		}
	}

	if len(pooled) == 0 {
		return out
	}
	var visible []productLine
	for _, pl := range eligible {
		if cfg.visible(pl.productID, pl.line) {
			visible = append(visible, pl)
		}
	}
	for _, group := range groupByProduct(visible) {
		best, bestFree := -1, 0
		for i, tier := range pooled {
			if free := freeUnits(tier, group, group); free > bestFree {
				best, bestFree = i, free
			}
		}
		if best < 0 {
			continue
		}
		if candidate, ok := buildBogoCandidate(pooled[best], group, group); ok {
			out = append(out, candidate)
		}
	}
	return out
}

// groupByProduct keeps groups in order of first appearance.
func groupByProduct(lines []productLine) [][]productLine {
	index := make(map[string]int)
	var groups [][]productLine
	for _, pl := range lines {
		i, ok := index[pl.productID]
		if !ok {
			i = len(groups)
			index[pl.productID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], pl)
	}
	return groups
}

func totalQuantity(lines []productLine) int {
	total := 0
	for _, pl := range lines {
		if pl.line.Quantity > 0 {
			total += pl.line.Quantity
		}
	}
	return total
}

// freeUnits is the number of units a tier makes free over the given pools.
func freeUnits(tier BogoTier, buy, free []productLine) int {
	if tier.BuyQuantity <= 0 || tier.FreeQuantity <= 0 {
		return 0
	}
	bought := totalQuantity(buy)
	var groups int
	if tier.pooled() {
		groups = bought / tier.groupSize()
	} else {
		groups = min(bought/tier.BuyQuantity, totalQuantity(free)/tier.FreeQuantity)
	}
	return groups * tier.FreeQuantity
}

func buildBogoCandidate(tier BogoTier, buy, free []productLine) (Candidate, bool) {
	maxFree := freeUnits(tier, buy, free)
	if maxFree <= 0 {
		return Candidate{}, false
	}
	targets := allocateCheapestFirst(free, maxFree)
	if len(targets) == 0 {
		return Candidate{}, false
	}
	value := valueOf(tier.FreeKind, tier.FreeValue)
	if tier.FreeKind == KindFixedAmount {
		value.AppliesToEachItem = true
	}
	return Candidate{
		Message: tier.message(),
		Targets: targets,
		Value:   value,
	}, true
}

// allocateCheapestFirst hands out the free budget to the lowest unit prices first.
// Equal prices keep cart order.
func allocateCheapestFirst(lines []productLine, budget int) []Target {
	ordered := make([]productLine, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].unitPrice.LessThan(ordered[j].unitPrice)
	})

	var targets []Target
	for _, pl := range ordered {
		if budget <= 0 {
			break
		}
		take := min(pl.line.Quantity, budget)
		if take <= 0 {
			continue
		}
		targets = append(targets, partialLine(pl.line.ID, take))
		budget -= take
	}
	return targets
}

func (t BogoTier) message() string {
	if t.Title != "" {
		return t.Title
	}
	switch {
	case t.FreeKind == KindFixedAmount:
		return fmt.Sprintf("Buy %d, get %d with %s off each", t.BuyQuantity, t.FreeQuantity, formatNumber(t.FreeValue))
	case t.FreeValue >= 100:
		return fmt.Sprintf("Buy %d, get %d free", t.BuyQuantity, t.FreeQuantity)
	default:
		return fmt.Sprintf("Buy %d, get %d at %s%% off", t.BuyQuantity, t.FreeQuantity, formatNumber(t.FreeValue))
	}
}
