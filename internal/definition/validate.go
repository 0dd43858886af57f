package definition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/discount-engine/internal/discount"
)

// ValidationError lists authoring problems keyed by JSON path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

func (e *ValidationError) add(path, msg string) {
	if _, exists := e.Fields[path]; !exists {
		e.Fields[path] = msg
	}
}

// The authoring schema is stricter than what the engine tolerates: numbers must be JSON
// numbers, kinds must be spelled exactly, and percentages stay inside what the admin UI offers.
type authoringConfig struct {
	Mode              string            `json:"mode" validate:"omitempty,oneof=all specific except collections bundle_specific bundle_except"`
	Visibility        string            `json:"visibility" validate:"omitempty,oneof=all specific except collections bundle_specific bundle_except"`
	SpecificIDs       []string          `json:"specificIds" validate:"omitempty,dive,required"`
	ProductIDs        []string          `json:"productIds" validate:"omitempty,dive,required"`
	ExceptIDs         []string          `json:"exceptIds" validate:"omitempty,dive,required"`
	CollectionIDs     []string          `json:"collectionIds" validate:"omitempty,dive,required"`
	BundleSpecificIDs []string          `json:"bundleSpecificIds" validate:"omitempty,dive,required"`
	BundleExceptIDs   []string          `json:"bundleExceptIds" validate:"omitempty,dive,required"`
	Configurations    []json.RawMessage `json:"configurations" validate:"required,min=1"`
}

type authoringVolume struct {
	Quantity     *int    `json:"quantity" validate:"omitempty,gte=1"`
	MinQuantity  *int    `json:"minQuantity" validate:"omitempty,gte=1"`
	DiscountKind string  `json:"discountKind" validate:"omitempty,oneof=percentage fixedAmount"`
	Value        float64 `json:"value"`
}

type authoringBogo struct {
	BuyQuantity       int      `json:"buyQuantity" validate:"gte=1"`
	FreeQuantity      int      `json:"freeQuantity" validate:"gte=1"`
	BuyProductIDs     []string `json:"buyProductIds" validate:"omitempty,dive,required"`
	FreeProductIDs    []string `json:"freeProductIds" validate:"omitempty,dive,required"`
	FreeDiscountKind  string   `json:"freeDiscountKind" validate:"omitempty,oneof=percentage fixedAmount"`
	FreeDiscountValue float64  `json:"freeDiscountValue"`
	Title             string   `json:"title" validate:"max=120"`
}

type authoringMultiProduct struct {
	QuantityThreshold int     `json:"quantityThreshold" validate:"gte=1"`
	DiscountKind      string  `json:"discountKind" validate:"omitempty,oneof=percentage fixedAmount"`
	DiscountValue     float64 `json:"discountValue"`
}

var authoringValidate = newAuthoringValidator()

func newAuthoringValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateConfig checks a configuration blob against the authoring schema. The returned
// error is a *ValidationError wrapping ErrInvalidConfig.
func ValidateConfig(raw json.RawMessage) error {
	verr := &ValidationError{Fields: map[string]string{}}

	var doc authoringConfig
	if err := decodeStrict(raw, &doc); err != nil {
		verr.add("config", err.Error())
		return verr
	}
	collect(verr, "", authoringValidate.Struct(doc))

	mode := doc.Mode
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(doc.Visibility))
	}
	switch discount.Mode(mode) {
	case discount.ModeSpecific:
		if len(doc.SpecificIDs) == 0 && len(doc.ProductIDs) == 0 {
			verr.add("specificIds", "required for mode specific")
		}
	case discount.ModeCollections:
		if len(doc.CollectionIDs) == 0 {
			verr.add("collectionIds", "required for mode collections")
		}
	case discount.ModeBundleSpecific:
		if len(doc.BundleSpecificIDs) == 0 {
			verr.add("bundleSpecificIds", "required for mode bundle_specific")
		}
	}

	hasMulti := false
	for i, entry := range doc.Configurations {
		path := fmt.Sprintf("configurations[%d]", i)
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(entry, &head); err != nil {
			verr.add(path, "must be an object")
			continue
		}
		switch head.Type {
		case discount.TypeVolume:
			var tier authoringVolume
			if decodeEntry(verr, path, entry, &tier) {
				if tier.Quantity == nil && tier.MinQuantity == nil {
					verr.add(path+".quantity", "is required")
				}
				checkValue(verr, path+".value", tier.DiscountKind, tier.Value, 99)
			}
		case discount.TypeBogo:
			var tier authoringBogo
			if decodeEntry(verr, path, entry, &tier) {
				checkValue(verr, path+".freeDiscountValue", tier.FreeDiscountKind, tier.FreeDiscountValue, 100)
			}
		case discount.TypeMultiProduct:
			hasMulti = true
			var tier authoringMultiProduct
			if decodeEntry(verr, path, entry, &tier) {
				checkValue(verr, path+".discountValue", tier.DiscountKind, tier.DiscountValue, 99)
			}
		default:
			verr.add(path+".type", fmt.Sprintf("must be one of %s, %s, %s", discount.TypeBogo, discount.TypeVolume, discount.TypeMultiProduct))
		}
	}
	if hasMulti && discount.Mode(mode) != discount.ModeBundleSpecific && discount.Mode(mode) != discount.ModeBundleExcept {
		verr.add("mode", "multi-product tiers need mode bundle_specific or bundle_except")
	}

	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}

func decodeStrict(raw json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("must be a JSON object")
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return fmt.Errorf("malformed: %v", err)
	}
	return nil
}

func decodeEntry(verr *ValidationError, path string, entry json.RawMessage, dst any) bool {
	if err := json.Unmarshal(entry, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			verr.add(path+"."+typeErr.Field, "must be a "+typeErr.Type.String())
		} else {
			verr.add(path, err.Error())
		}
		return false
	}
	collect(verr, path+".", authoringValidate.Struct(dst))
	return true
}

// checkValue bounds percentages to [1, maxPercent] and fixed amounts to at least one cent.
func checkValue(verr *ValidationError, path, kind string, value float64, maxPercent float64) {
	if kind == string(discount.KindFixedAmount) {
		if value < 0.01 {
			verr.add(path, "fixed amount must be at least 0.01")
		}
		return
	}
	if value < 1 || value > maxPercent {
		verr.add(path, fmt.Sprintf("percentage must be between 1 and %g", maxPercent))
	}
}

func collect(verr *ValidationError, prefix string, err error) {
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add(strings.TrimSuffix(prefix, "."), err.Error())
		return
	}
	for _, fe := range fieldErrs {
		verr.add(prefix+fieldPath(fe), describe(fe))
	}
}

// fieldPath drops the root struct name from the namespace validator reports.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must contain at least " + fe.Param() + " item(s)"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
