package discount

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

// Mode selects which products a discount applies to. Two vocabularies share this field:
// visibility modes (all, specific, except, collections) and bundle modes (bundle_specific,
// bundle_except).
type Mode string

const (
	ModeAll            Mode = "all"
	ModeSpecific       Mode = "specific"
	ModeExcept         Mode = "except"
	ModeCollections    Mode = "collections"
	ModeBundleSpecific Mode = "bundle_specific"
	ModeBundleExcept   Mode = "bundle_except"
)

// Kind is the discount value kind.
type Kind string

const (
	KindPercentage  Kind = "percentage"
	KindFixedAmount Kind = "fixedAmount"
)

// Configuration entry discriminators.
const (
	TypeBogo         = "bogo"
	TypeVolume       = "volume-same-product"
	TypeMultiProduct = "quantity-break-multi-product"
)

// VolumeTier discounts a single line once its quantity reaches MinQuantity.
type VolumeTier struct {
	Kind        Kind    `json:"discountKind"`
	MinQuantity int     `json:"minQuantity" validate:"gt=0"`
	Value       float64 `json:"value" validate:"gt=0"`
}

// BogoTier grants FreeQuantity discounted units for every BuyQuantity units bought.
type BogoTier struct {
	BuyQuantity    int      `json:"buyQuantity" validate:"gt=0"`
	FreeQuantity   int      `json:"freeQuantity" validate:"gt=0"`
	BuyProductIDs  []string `json:"buyProductIds"`
	FreeProductIDs []string `json:"freeProductIds"`
	FreeKind       Kind     `json:"freeDiscountKind"`
	FreeValue      float64  `json:"freeDiscountValue" validate:"gte=0"`
	Title          string   `json:"title,omitempty"`
}

// MultiProductTier discounts every bundle-eligible line once their combined quantity
// reaches QuantityThreshold.
type MultiProductTier struct {
	QuantityThreshold int     `json:"quantityThreshold" validate:"gt=0"`
	Kind              Kind    `json:"discountKind"`
	Value             float64 `json:"discountValue" validate:"gt=0"`
}

// ParsedConfig is the normalized discount configuration for one evaluation.
type ParsedConfig struct {
	Mode              Mode               `json:"mode"`
	SpecificIDs       IDSet              `json:"specificIds"`
	ExceptIDs         IDSet              `json:"exceptIds"`
	CollectionIDs     IDSet              `json:"collectionIds"`
	BundleSpecificIDs IDSet              `json:"bundleSpecificIds"`
	BundleExceptIDs   IDSet              `json:"bundleExceptIds"`
	VolumeTiers       []VolumeTier       `json:"volumeTiers"`
	BogoTiers         []BogoTier         `json:"bogoTiers"`
	MultiProductTiers []MultiProductTier `json:"multiProductTiers"`
}

// DefaultConfig is the safe configuration used whenever the blob cannot be read.
func DefaultConfig() ParsedConfig {
	return ParsedConfig{
		Mode:              ModeAll,
		SpecificIDs:       IDSet{},
		ExceptIDs:         IDSet{},
		CollectionIDs:     IDSet{},
		BundleSpecificIDs: IDSet{},
		BundleExceptIDs:   IDSet{},
		VolumeTiers:       []VolumeTier{},
		BogoTiers:         []BogoTier{},
		MultiProductTiers: []MultiProductTier{},
	}
}

// tierValidate is safe for concurrent use and caches struct metadata.
var tierValidate = validator.New()

// Parse normalizes a serialized configuration blob. It accepts a JSON string, raw bytes,
// or an already decoded object and never fails: unreadable input yields DefaultConfig.
// Invalid tier entries are dropped and unknown entry types are skipped.
func Parse(raw any) ParsedConfig {
	doc, ok := decodeDocument(raw)
	if !ok {
		return DefaultConfig()
	}

	cfg := DefaultConfig()
	cfg.Mode = parseMode(firstPresent(doc, "mode", "visibility"))
	cfg.SpecificIDs = NewIDSet(toIDList(firstPresent(doc, "specificIds", "productIds")))
	cfg.ExceptIDs = NewIDSet(toIDList(doc["exceptIds"]))
	cfg.CollectionIDs = NewIDSet(toIDList(doc["collectionIds"]))
	cfg.BundleSpecificIDs = NewIDSet(toIDList(doc["bundleSpecificIds"]))
	cfg.BundleExceptIDs = NewIDSet(toIDList(doc["bundleExceptIds"]))

	entries, _ := doc["configurations"].([]any)
	for _, item := range entries {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch strings.TrimSpace(cast.ToString(entry["type"])) {
		case TypeBogo:
			if tier, ok := parseBogoTier(entry); ok {
				cfg.BogoTiers = append(cfg.BogoTiers, tier)
			}
		case TypeVolume:
			if tier, ok := parseVolumeTier(entry); ok {
				cfg.VolumeTiers = append(cfg.VolumeTiers, tier)
			}
		case TypeMultiProduct:
			if tier, ok := parseMultiProductTier(entry); ok {
				cfg.MultiProductTiers = append(cfg.MultiProductTiers, tier)
			}
		}
	}

	sort.SliceStable(cfg.VolumeTiers, func(i, j int) bool {
		return cfg.VolumeTiers[i].MinQuantity > cfg.VolumeTiers[j].MinQuantity
	})
	sort.SliceStable(cfg.BogoTiers, func(i, j int) bool {
		return cfg.BogoTiers[i].groupSize() > cfg.BogoTiers[j].groupSize()
	})
	return cfg
}

func decodeDocument(raw any) (map[string]any, bool) {
	var data []byte
	switch v := raw.(type) {
	case map[string]any:
		return v, v != nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		return nil, false
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return nil, false
	}
	return doc, true
}

func parseBogoTier(entry map[string]any) (BogoTier, bool) {
	if entry["freeQuantity"] == nil {
		return BogoTier{}, false
	}
	kind := toKind(entry["freeDiscountKind"])
	tier := BogoTier{
		BuyQuantity:    toCount(entry["buyQuantity"]),
		FreeQuantity:   toCount(entry["freeQuantity"]),
		BuyProductIDs:  toIDList(entry["buyProductIds"]),
		FreeProductIDs: toIDList(entry["freeProductIds"]),
		FreeKind:       kind,
		FreeValue:      clampValue(kind, toNumber(entry["freeDiscountValue"])),
		Title:          strings.TrimSpace(cast.ToString(entry["title"])),
	}
	if tierValidate.Struct(tier) != nil {
		return BogoTier{}, false
	}
	return tier, true
}

func parseVolumeTier(entry map[string]any) (VolumeTier, bool) {
	kind := toKind(entry["discountKind"])
	tier := VolumeTier{
		Kind:        kind,
		MinQuantity: toCount(firstPresent(entry, "quantity", "minQuantity")),
		Value:       clampValue(kind, toNumber(entry["value"])),
	}
	if tierValidate.Struct(tier) != nil {
		return VolumeTier{}, false
	}
	return tier, true
}

func parseMultiProductTier(entry map[string]any) (MultiProductTier, bool) {
	kind := toKind(entry["discountKind"])
	tier := MultiProductTier{
		QuantityThreshold: toCount(entry["quantityThreshold"]),
		Kind:              kind,
		Value:             clampValue(kind, toNumber(entry["discountValue"])),
	}
	if tierValidate.Struct(tier) != nil {
		return MultiProductTier{}, false
	}
	return tier, true
}

func parseMode(v any) Mode {
	mode := Mode(strings.ToLower(strings.TrimSpace(cast.ToString(v))))
	if mode == "" {
		return ModeAll
	}
	return mode
}

func firstPresent(doc map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := doc[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toKind(v any) Kind {
	if strings.TrimSpace(cast.ToString(v)) == string(KindFixedAmount) {
		return KindFixedAmount
	}
	return KindPercentage
}

// toNumber reads a JSON number or numeric string; anything else is zero.
func toNumber(v any) float64 {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// toCount floors to a non-negative integer.
func toCount(v any) int {
	f := math.Floor(toNumber(v))
	if f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func clampValue(kind Kind, v float64) float64 {
	if v < 0 {
		return 0
	}
	if kind == KindPercentage && v > 100 {
		return 100
	}
	return v
}

func toIDList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		id, err := cast.ToStringE(item)
		if err != nil {
			continue
		}
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (t BogoTier) groupSize() int {
	return t.BuyQuantity + t.FreeQuantity
}
