package discount

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseDefaultsOnUnreadableInput(t *testing.T) {
	inputs := []any{
		nil,
		42,
		"",
		"[1,2,3]",
		"null",
		`"just a string"`,
		[]byte("{broken"),
		json.RawMessage(`true`),
	}
	for _, raw := range inputs {
		cfg := Parse(raw)
		if !reflect.DeepEqual(cfg, DefaultConfig()) {
			t.Fatalf("expected default config for %#v, got %#v", raw, cfg)
		}
	}
}

func TestParseModeAndIDAliases(t *testing.T) {
	cfg := Parse(`{"visibility":" Specific ","productIds":["p1","p2","p1",""],"exceptIds":"nope","collectionIds":[7]}`)
	if cfg.Mode != ModeSpecific {
		t.Fatalf("expected specific mode, got %q", cfg.Mode)
	}
	if len(cfg.SpecificIDs) != 2 || !cfg.SpecificIDs.Has("p1") || !cfg.SpecificIDs.Has("p2") {
		t.Fatalf("unexpected specific ids %v", cfg.SpecificIDs.Sorted())
	}
	if len(cfg.ExceptIDs) != 0 {
		t.Fatalf("expected non-array except ids to be dropped, got %v", cfg.ExceptIDs.Sorted())
	}
	if !cfg.CollectionIDs.Has("7") {
		t.Fatalf("expected numeric collection id to be coerced, got %v", cfg.CollectionIDs.Sorted())
	}

	both := Parse(`{"mode":"except","visibility":"specific","specificIds":["a"],"productIds":["b"]}`)
	if both.Mode != ModeExcept {
		t.Fatalf("expected mode to win over visibility, got %q", both.Mode)
	}
	if !both.SpecificIDs.Has("a") || both.SpecificIDs.Has("b") {
		t.Fatalf("expected specificIds to win over productIds, got %v", both.SpecificIDs.Sorted())
	}
}

func TestParseSortsTiersDescending(t *testing.T) {
	cfg := Parse(`{"configurations":[
		{"type":"volume-same-product","quantity":3,"value":5},
		{"type":"volume-same-product","quantity":10,"value":15},
		{"type":"volume-same-product","quantity":6,"value":10},
		{"type":"bogo","buyQuantity":1,"freeQuantity":1,"title":"small"},
		{"type":"bogo","buyQuantity":3,"freeQuantity":2,"title":"large"},
		{"type":"bogo","buyQuantity":2,"freeQuantity":1,"title":"medium"},
		{"type":"quantity-break-multi-product","quantityThreshold":9,"discountValue":9},
		{"type":"quantity-break-multi-product","quantityThreshold":2,"discountValue":2}
	]}`)

	var minQuantities []int
	for _, tier := range cfg.VolumeTiers {
		minQuantities = append(minQuantities, tier.MinQuantity)
	}
	if !reflect.DeepEqual(minQuantities, []int{10, 6, 3}) {
		t.Fatalf("unexpected volume order %v", minQuantities)
	}

	var titles []string
	for _, tier := range cfg.BogoTiers {
		titles = append(titles, tier.Title)
	}
	if !reflect.DeepEqual(titles, []string{"large", "medium", "small"}) {
		t.Fatalf("unexpected bogo order %v", titles)
	}

	if cfg.MultiProductTiers[0].QuantityThreshold != 9 || cfg.MultiProductTiers[1].QuantityThreshold != 2 {
		t.Fatalf("expected multi-product tiers to keep input order, got %+v", cfg.MultiProductTiers)
	}
}

func TestParseDropsInvalidTiers(t *testing.T) {
	cfg := Parse(`{"configurations":[
		{"type":"volume-same-product","quantity":0,"value":10},
		{"type":"volume-same-product","quantity":5,"value":0},
		{"type":"volume-same-product","quantity":"abc","value":10},
		{"type":"volume-same-product","quantity":"4","value":"12.5"},
		{"type":"bogo","buyQuantity":2},
		{"type":"bogo","buyQuantity":0,"freeQuantity":1},
		{"type":"bogo","buyQuantity":2,"freeQuantity":-1},
		{"type":"bogo","buyQuantity":2.9,"freeQuantity":1.2,"freeDiscountValue":100},
		{"type":"quantity-break-multi-product","quantityThreshold":0,"discountValue":10},
		{"type":"quantity-break-multi-product","quantityThreshold":3,"discountValue":-4},
		{"type":"gift-with-purchase","quantity":1},
		"not an object",
		42
	]}`)

	if len(cfg.VolumeTiers) != 1 {
		t.Fatalf("expected one volume tier, got %+v", cfg.VolumeTiers)
	}
	if got := cfg.VolumeTiers[0]; got.MinQuantity != 4 || got.Value != 12.5 || got.Kind != KindPercentage {
		t.Fatalf("unexpected volume tier %+v", got)
	}
	if len(cfg.BogoTiers) != 1 {
		t.Fatalf("expected one bogo tier, got %+v", cfg.BogoTiers)
	}
	if got := cfg.BogoTiers[0]; got.BuyQuantity != 2 || got.FreeQuantity != 1 {
		t.Fatalf("expected quantities to be floored, got %+v", got)
	}
	if len(cfg.MultiProductTiers) != 0 {
		t.Fatalf("expected no multi-product tiers, got %+v", cfg.MultiProductTiers)
	}
}

func TestParseClampsValues(t *testing.T) {
	cfg := Parse(map[string]any{
		"configurations": []any{
			map[string]any{"type": "volume-same-product", "quantity": 2, "discountKind": "percentage", "value": 150},
			map[string]any{"type": "quantity-break-multi-product", "quantityThreshold": 2, "discountKind": "fixedAmount", "discountValue": 250},
			map[string]any{"type": "bogo", "buyQuantity": 1, "freeQuantity": 1, "freeDiscountKind": "fixedAmount", "freeDiscountValue": -3},
			map[string]any{"type": "bogo", "buyQuantity": 2, "freeQuantity": 1, "freeDiscountKind": "FIXED", "freeDiscountValue": 300},
		},
	})

	if cfg.VolumeTiers[0].Value != 100 {
		t.Fatalf("expected percentage clamp to 100, got %v", cfg.VolumeTiers[0].Value)
	}
	if cfg.MultiProductTiers[0].Value != 250 || cfg.MultiProductTiers[0].Kind != KindFixedAmount {
		t.Fatalf("expected fixed amount to stay unbounded above, got %+v", cfg.MultiProductTiers[0])
	}
	// Sorted by group size: the buy-2 tier comes first.
	if got := cfg.BogoTiers[0]; got.FreeKind != KindPercentage || got.FreeValue != 100 {
		t.Fatalf("expected unknown kind to coerce to percentage and clamp, got %+v", got)
	}
	if got := cfg.BogoTiers[1]; got.FreeKind != KindFixedAmount || got.FreeValue != 0 {
		t.Fatalf("expected negative fixed amount to clamp to zero, got %+v", got)
	}
}

func TestParsedConfigMarshalsSortedIDs(t *testing.T) {
	cfg := Parse(`{"mode":"bundle_specific","bundleSpecificIds":["z","a"]}`)
	body, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ids, _ := decoded["bundleSpecificIds"].([]any)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "z" {
		t.Fatalf("unexpected ids %v", decoded["bundleSpecificIds"])
	}
	if tiers, _ := decoded["volumeTiers"].([]any); tiers == nil {
		t.Fatalf("expected empty tier arrays instead of null, got %s", body)
	}
}
