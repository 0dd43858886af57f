package discount

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func variantLine(id, productID string, qty int, unitPrice string) CartLine {
	line := CartLine{
		ID:       id,
		Quantity: qty,
		Merchandise: Merchandise{
			Typename: "ProductVariant",
			ID:       id + "-variant",
			Product:  &Product{ID: productID},
		},
	}
	if unitPrice != "" {
		line.Cost = &Cost{AmountPerQuantity: &Money{Amount: decimal.RequireFromString(unitPrice), CurrencyCode: "USD"}}
	}
	return line
}

func productInput(config string, lines ...CartLine) Input {
	return Input{
		Cart: Cart{Lines: lines},
		Discount: DiscountInput{
			DiscountClasses: []string{ProductDiscountClass},
			Metafield:       &Metafield{Value: config},
		},
	}
}

func onlyCandidates(t *testing.T, res Result) []Candidate {
	t.Helper()
	require.Len(t, res.Operations, 1)
	op := res.Operations[0].AddProductDiscounts
	require.NotNil(t, op)
	require.Equal(t, SelectionStrategyAll, op.SelectionStrategy)
	return op.Candidates
}

func TestRunVolumePicksLargestQualifyingTier(t *testing.T) {
	config := `{"mode":"all","configurations":[
		{"type":"volume-same-product","quantity":5,"discountKind":"percentage","value":10},
		{"type":"volume-same-product","quantity":10,"discountKind":"percentage","value":20}
	]}`
	res := Run(productInput(config, variantLine("line-1", "product-a", 12, "4.00")))

	candidates := onlyCandidates(t, res)
	require.Len(t, candidates, 1)
	require.Equal(t, []Target{{LineID: "line-1"}}, candidates[0].Targets)
	require.NotNil(t, candidates[0].Value.Percentage)
	require.Equal(t, 20.0, *candidates[0].Value.Percentage)
	require.Nil(t, candidates[0].Value.FixedAmount)
	require.Equal(t, "Buy 10+, save 20%", candidates[0].Message)
}

func TestRunBogoAllocatesCheapestFreeUnitsFirst(t *testing.T) {
	config := `{"configurations":[{"type":"bogo","buyQuantity":1,"freeQuantity":1,
		"buyProductIds":["A"],"freeProductIds":["B"],
		"freeDiscountKind":"percentage","freeDiscountValue":100}]}`
	res := Run(productInput(config,
		variantLine("a-1", "A", 3, "20.00"),
		variantLine("b-1", "B", 3, "10.00"),
		variantLine("b-2", "B", 2, "5.00"),
	))

	candidates := onlyCandidates(t, res)
	require.Len(t, candidates, 1)
	targets := candidates[0].Targets
	require.Len(t, targets, 2)
	require.Equal(t, "b-2", targets[0].LineID)
	require.Equal(t, 2, *targets[0].AppliedQuantity)
	require.Equal(t, "b-1", targets[1].LineID)
	require.Equal(t, 1, *targets[1].AppliedQuantity)
	require.Equal(t, 100.0, *candidates[0].Value.Percentage)
	require.Equal(t, "Buy 1, get 1 free", candidates[0].Message)
}

func TestRunMultiProductThreshold(t *testing.T) {
	config := `{"mode":"bundle_specific","bundleSpecificIds":["A"],"configurations":[
		{"type":"quantity-break-multi-product","quantityThreshold":3,"discountKind":"fixedAmount","discountValue":5}
	]}`

	t.Run("below threshold", func(t *testing.T) {
		res := Run(productInput(config, variantLine("line-1", "A", 2, "10.00")))
		require.Empty(t, res.Operations)
	})

	t.Run("threshold met", func(t *testing.T) {
		res := Run(productInput(config, variantLine("line-1", "A", 3, "10.00")))
		candidates := onlyCandidates(t, res)
		require.Len(t, candidates, 1)
		require.Equal(t, []Target{{LineID: "line-1"}}, candidates[0].Targets)
		require.NotNil(t, candidates[0].Value.FixedAmount)
		require.Equal(t, 5.0, *candidates[0].Value.FixedAmount)
		require.False(t, candidates[0].Value.AppliesToEachItem)
	})
}

func TestRunInvalidConfigIsNoOp(t *testing.T) {
	require.NotPanics(t, func() {
		res := Run(productInput("{not json", variantLine("line-1", "A", 10, "1.00")))
		require.NotNil(t, res.Operations)
		require.Empty(t, res.Operations)
	})
	require.Equal(t, DefaultConfig(), Parse("{not json"))
}

func TestRunBogoLineWithoutCostSortsFirst(t *testing.T) {
	config := `{"configurations":[{"type":"bogo","buyQuantity":2,"freeQuantity":1,
		"buyProductIds":["A"],"freeProductIds":["B","C"],"freeDiscountValue":50}]}`
	costless := variantLine("c-1", "C", 1, "")
	res := Run(productInput(config,
		variantLine("a-1", "A", 4, "3.00"),
		variantLine("b-1", "B", 2, "1.00"),
		costless,
	))

	candidates := onlyCandidates(t, res)
	require.Len(t, candidates, 1)
	targets := candidates[0].Targets
	require.Len(t, targets, 2)
	require.Equal(t, "c-1", targets[0].LineID)
	require.Equal(t, 1, *targets[0].AppliedQuantity)
	require.Equal(t, "b-1", targets[1].LineID)
	require.Equal(t, 1, *targets[1].AppliedQuantity)
	require.Equal(t, "Buy 2, get 1 at 50% off", candidates[0].Message)
}

func TestRunShortCircuits(t *testing.T) {
	config := `{"configurations":[{"type":"volume-same-product","quantity":1,"value":10}]}`

	empty := Evaluate(productInput(config))
	require.Equal(t, OutcomeEmptyCart, empty.Outcome)
	require.Empty(t, empty.Result.Operations)

	in := productInput(config, variantLine("line-1", "A", 1, "1.00"))
	in.Discount.DiscountClasses = []string{"ORDER", "SHIPPING"}
	inactive := Evaluate(in)
	require.Equal(t, OutcomeClassInactive, inactive.Outcome)
	require.Empty(t, inactive.Result.Operations)

	in.Discount.DiscountClasses = []string{"product"}
	require.Equal(t, OutcomeApplied, Evaluate(in).Outcome)
}

func TestRunNoOpMarshalsEmptyOperations(t *testing.T) {
	body, err := json.Marshal(Run(Input{}))
	require.NoError(t, err)
	require.JSONEq(t, `{"operations":[]}`, string(body))
}

func TestRunOrdersStrategiesMultiBogoVolume(t *testing.T) {
	config := `{"mode":"bundle_except","configurations":[
		{"type":"volume-same-product","quantity":2,"value":5},
		{"type":"bogo","buyQuantity":1,"freeQuantity":1,"freeDiscountValue":100},
		{"type":"quantity-break-multi-product","quantityThreshold":2,"discountValue":15}
	]}`
	eval := Evaluate(productInput(config, variantLine("line-1", "A", 4, "2.00")))

	require.Equal(t, OutcomeApplied, eval.Outcome)
	require.Equal(t, []StrategyCount{
		{Name: StrategyMultiProduct, Candidates: 1},
		{Name: StrategyBogo, Candidates: 1},
		{Name: StrategyVolume, Candidates: 1},
	}, eval.Strategies)

	candidates := eval.Candidates()
	require.Len(t, candidates, 3)
	require.Equal(t, 15.0, *candidates[0].Value.Percentage)
	require.Equal(t, 100.0, *candidates[1].Value.Percentage)
	require.Equal(t, 2, *candidates[1].Targets[0].AppliedQuantity)
	require.Equal(t, 5.0, *candidates[2].Value.Percentage)
}

func TestRunIsDeterministic(t *testing.T) {
	config := `{"mode":"bundle_except","configurations":[
		{"type":"bogo","buyQuantity":1,"freeQuantity":1,"freeDiscountValue":100},
		{"type":"bogo","buyQuantity":2,"freeQuantity":1,"buyProductIds":["A"],"freeProductIds":["B","C"],"freeDiscountKind":"fixedAmount","freeDiscountValue":3},
		{"type":"volume-same-product","quantity":2,"discountKind":"fixedAmount","value":1.5},
		{"type":"quantity-break-multi-product","quantityThreshold":4,"discountValue":10}
	]}`
	in := productInput(config,
		variantLine("a-1", "A", 4, "9.99"),
		variantLine("b-1", "B", 2, "4.00"),
		variantLine("c-1", "C", 2, "4.00"),
		variantLine("a-2", "A", 1, "9.99"),
	)
	first, err := json.Marshal(Run(in))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := json.Marshal(Run(in))
		require.NoError(t, err)
		require.Equal(t, string(first), string(again))
	}
}

func TestRunSkipsNonVariantLines(t *testing.T) {
	config := `{"configurations":[{"type":"volume-same-product","quantity":1,"value":10}]}`
	giftCard := CartLine{ID: "gift", Quantity: 5, Merchandise: Merchandise{Typename: "CustomProduct"}}
	noProduct := CartLine{ID: "orphan", Quantity: 5, Merchandise: Merchandise{Typename: "ProductVariant"}}

	eval := Evaluate(productInput(config, giftCard, noProduct))
	require.Equal(t, OutcomeNoCandidates, eval.Outcome)
	require.Empty(t, eval.Result.Operations)
}

func TestRunAcceptsJSONValueMetafield(t *testing.T) {
	in := productInput("", variantLine("line-1", "A", 3, "1.00"))
	in.Discount.Metafield = &Metafield{JSONValue: json.RawMessage(`{"configurations":[{"type":"volume-same-product","quantity":3,"value":7}]}`)}

	candidates := onlyCandidates(t, Run(in))
	require.Len(t, candidates, 1)
	require.Equal(t, 7.0, *candidates[0].Value.Percentage)
}

func TestInputDecodesPlatformPayload(t *testing.T) {
	payload := `{
		"cart": {"lines": [{
			"id": "gid://shopify/CartLine/1",
			"quantity": 2,
			"merchandise": {"__typename": "ProductVariant", "id": "gid://shopify/ProductVariant/9",
				"product": {"id": "gid://shopify/Product/1", "inCollections": [
					{"collectionId": "gid://shopify/Collection/5", "isMember": true},
					{"collectionId": "gid://shopify/Collection/6", "isMember": false}
				]}},
			"cost": {"amountPerQuantity": {"amount": "12.50", "currencyCode": "USD"}, "totalAmount": {"amount": "25.0"}}
		}]},
		"discount": {"discountClasses": ["PRODUCT"], "metafield": {"value": "{\"mode\":\"collections\",\"collectionIds\":[\"gid://shopify/Collection/5\"],\"configurations\":[{\"type\":\"volume-same-product\",\"quantity\":2,\"value\":10}]}"}}
	}`
	var in Input
	require.NoError(t, json.Unmarshal([]byte(payload), &in))

	line := in.Cart.Lines[0]
	productID, ok := line.ProductID()
	require.True(t, ok)
	require.Equal(t, "gid://shopify/Product/1", productID)
	require.Equal(t, []string{"gid://shopify/Collection/5"}, line.CollectionIDs())
	require.True(t, line.UnitPrice().Equal(decimal.RequireFromString("12.5")))

	candidates := onlyCandidates(t, Run(in))
	require.Len(t, candidates, 1)
	require.Equal(t, "gid://shopify/CartLine/1", candidates[0].Targets[0].LineID)
}
