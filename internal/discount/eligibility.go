package discount

import (
	"encoding/json"
	"sort"
)

// IDSet is a set of product or collection identifiers.
type IDSet map[string]struct{}

// NewIDSet builds a set from the provided identifiers.
func NewIDSet(ids []string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Equal reports whether both sets hold the same identifiers.
func (s IDSet) Equal(other IDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Sorted returns the identifiers in lexical order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON renders the set as a sorted array.
func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON reads an array of identifiers.
func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids)
	return nil
}

// PassesVisibility decides whether a product is visible to the volume and BOGO strategies.
// Unrecognized modes, including the bundle modes, fail open and behave like "all".
func PassesVisibility(productID string, mode Mode, specific, except, collections IDSet, collectionsOf func(string) []string) bool {
	switch mode {
	case ModeSpecific:
		return specific.Has(productID)
	case ModeExcept:
		return !except.Has(productID)
	case ModeCollections:
		if collectionsOf == nil {
			return false
		}
		for _, id := range collectionsOf(productID) {
			if collections.Has(id) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// IsEligible decides whether a product takes part in multi-product quantity breaks.
// Only the bundle modes admit products; every other mode fails closed.
func IsEligible(productID string, cfg ParsedConfig) bool {
	switch cfg.Mode {
	case ModeBundleSpecific:
		return cfg.BundleSpecificIDs.Has(productID) && !cfg.BundleExceptIDs.Has(productID)
	case ModeBundleExcept:
		return !cfg.BundleExceptIDs.Has(productID)
	default:
		return false
	}
}

// visible applies PassesVisibility to a cart line using its own collection memberships.
func (c ParsedConfig) visible(productID string, line CartLine) bool {
	return PassesVisibility(productID, c.Mode, c.SpecificIDs, c.ExceptIDs, c.CollectionIDs, func(string) []string {
		return line.CollectionIDs()
	})
}
