package discount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeSelectsLargestTierPerLine(t *testing.T) {
	cfg := Parse(`{"mode":"except","exceptIds":["blocked"],"configurations":[
		{"type":"volume-same-product","quantity":2,"discountKind":"fixedAmount","value":1},
		{"type":"volume-same-product","quantity":5,"discountKind":"fixedAmount","value":3},
		{"type":"volume-same-product","quantity":8,"discountKind":"fixedAmount","value":6}
	]}`)
	lines := []CartLine{
		variantLine("one", "p1", 1, "1.00"),
		variantLine("five", "p2", 5, "1.00"),
		variantLine("seven", "p3", 7, "1.00"),
		variantLine("nine", "p4", 9, "1.00"),
		variantLine("blocked", "blocked", 20, "1.00"),
	}

	candidates := BuildVolumeCandidates(lines, cfg)
	require.Len(t, candidates, 3)

	got := map[string]float64{}
	for _, c := range candidates {
		require.Len(t, c.Targets, 1)
		require.Nil(t, c.Targets[0].AppliedQuantity)
		require.NotNil(t, c.Value.FixedAmount)
		got[c.Targets[0].LineID] = *c.Value.FixedAmount
	}
	assert.Equal(t, map[string]float64{"five": 3, "seven": 3, "nine": 6}, got)
	assert.Equal(t, "Buy 5+, save 3", candidates[0].Message)
}

func TestVolumeWithoutTiers(t *testing.T) {
	require.Nil(t, BuildVolumeCandidates([]CartLine{variantLine("a", "p", 10, "1")}, DefaultConfig()))
}

func TestBogoPooledPicksTierWithMostFreeUnits(t *testing.T) {
	cfg := Parse(`{"configurations":[
		{"type":"bogo","buyQuantity":2,"freeQuantity":1,"freeDiscountValue":100,"title":"buy two"},
		{"type":"bogo","buyQuantity":1,"freeQuantity":1,"freeDiscountValue":50,"title":"buy one"}
	]}`)
	lines := []CartLine{
		variantLine("a-1", "A", 4, "2.00"),
		variantLine("a-2", "A", 3, "1.00"),
	}

	candidates := BuildBogoCandidates(lines, cfg)
	require.Len(t, candidates, 1)
	// 7 pooled units: buy-two grants floor(7/3)=2, buy-one grants floor(7/2)=3.
	c := candidates[0]
	assert.Equal(t, "buy one", c.Message)
	require.Len(t, c.Targets, 1)
	assert.Equal(t, "a-2", c.Targets[0].LineID)
	assert.Equal(t, 3, *c.Targets[0].AppliedQuantity)
}

func TestBogoPooledTieKeepsFirstTier(t *testing.T) {
	cfg := Parse(`{"configurations":[
		{"type":"bogo","buyQuantity":1,"freeQuantity":1,"freeDiscountValue":100,"title":"small"},
		{"type":"bogo","buyQuantity":2,"freeQuantity":2,"freeDiscountValue":100,"title":"large"}
	]}`)
	// 4 units: large grants 1 group x 2, small grants 2 groups x 1.
	candidates := BuildBogoCandidates([]CartLine{variantLine("a", "A", 4, "1.00")}, cfg)
	require.Len(t, candidates, 1)
	assert.Equal(t, "large", candidates[0].Message)
	assert.Equal(t, 2, *candidates[0].Targets[0].AppliedQuantity)
}

func TestBogoPooledIsPerProduct(t *testing.T) {
	cfg := Parse(`{"mode":"specific","specificIds":["A","B"],"configurations":[
		{"type":"bogo","buyQuantity":1,"freeQuantity":1,"freeDiscountValue":100}
	]}`)
	lines := []CartLine{
		variantLine("a", "A", 1, "1.00"),
		variantLine("b", "B", 2, "1.00"),
		variantLine("c", "C", 2, "1.00"),
	}

	candidates := BuildBogoCandidates(lines, cfg)
	// A alone cannot form a group; C is not visible.
	require.Len(t, candidates, 1)
	assert.Equal(t, "b", candidates[0].Targets[0].LineID)
	assert.Equal(t, 1, *candidates[0].Targets[0].AppliedQuantity)
}

func TestBogoEqualIDListsArePooled(t *testing.T) {
	cfg := Parse(`{"configurations":[
		{"type":"bogo","buyQuantity":2,"freeQuantity":1,"buyProductIds":["A","B"],"freeProductIds":["B","A"],"freeDiscountValue":100}
	]}`)
	require.True(t, cfg.BogoTiers[0].pooled())

	// Pooled groups are buy+free sized: 6/3 = 2, not min(6/2, 6/1) = 3.
	candidates := BuildBogoCandidates([]CartLine{variantLine("a", "A", 6, "1.00")}, cfg)
	require.Len(t, candidates, 1)
	assert.Equal(t, 2, *candidates[0].Targets[0].AppliedQuantity)
}

func TestBogoExplicitTiersStack(t *testing.T) {
	cfg := Parse(`{"configurations":[
		{"type":"bogo","buyQuantity":1,"freeQuantity":1,"buyProductIds":["A"],"freeProductIds":["B"],"freeDiscountValue":100},
		{"type":"bogo","buyQuantity":2,"freeQuantity":1,"buyProductIds":["A"],"freeProductIds":["B"],"freeDiscountKind":"fixedAmount","freeDiscountValue":2,"title":"two for a deal"}
	]}`)
	lines := []CartLine{
		variantLine("a", "A", 2, "5.00"),
		variantLine("b", "B", 5, "3.00"),
	}

	candidates := BuildBogoCandidates(lines, cfg)
	require.Len(t, candidates, 2)

	// Sorted by group size: the buy-2 tier is evaluated first.
	assert.Equal(t, "two for a deal", candidates[0].Message)
	assert.Equal(t, 1, *candidates[0].Targets[0].AppliedQuantity)
	require.NotNil(t, candidates[0].Value.FixedAmount)
	assert.True(t, candidates[0].Value.AppliesToEachItem)

	assert.Equal(t, 2, *candidates[1].Targets[0].AppliedQuantity)
	assert.Equal(t, "b", candidates[1].Targets[0].LineID)
}

func TestBogoExplicitSkipsMissingPools(t *testing.T) {
	cfg := Parse(`{"configurations":[
		{"type":"bogo","buyQuantity":1,"freeQuantity":1,"buyProductIds":["A"],"freeProductIds":["B"],"freeDiscountValue":100},
		{"type":"bogo","buyQuantity":1,"freeQuantity":1,"buyProductIds":["A"],"freeDiscountValue":100}
	]}`)
	require.Empty(t, BuildBogoCandidates([]CartLine{variantLine("a", "A", 5, "1.00")}, cfg))
}

func TestBogoAllocationInvariants(t *testing.T) {
	cfg := Parse(`{"configurations":[
		{"type":"bogo","buyQuantity":3,"freeQuantity":2,"buyProductIds":["A","X"],"freeProductIds":["B","C"],"freeDiscountValue":100}
	]}`)
	lines := []CartLine{
		variantLine("a", "A", 5, "2.00"),
		variantLine("x", "X", 5, "2.00"),
		variantLine("b1", "B", 1, "8.00"),
		variantLine("c1", "C", 2, "6.00"),
		variantLine("b2", "B", 3, "7.00"),
	}
	// groups = min(10/3, 6/2) = 3; maxFree = 6.
	candidates := BuildBogoCandidates(lines, cfg)
	require.Len(t, candidates, 1)

	quantities := map[string]int{}
	for _, l := range lines {
		quantities[l.ID] = l.Quantity
	}
	sum := 0
	for _, target := range candidates[0].Targets {
		require.NotNil(t, target.AppliedQuantity)
		assert.LessOrEqual(t, *target.AppliedQuantity, quantities[target.LineID])
		sum += *target.AppliedQuantity
	}
	assert.Equal(t, 6, sum)
	assert.Equal(t, []string{"c1", "b2", "b1"}, []string{
		candidates[0].Targets[0].LineID,
		candidates[0].Targets[1].LineID,
		candidates[0].Targets[2].LineID,
	})
}

func TestMultiProductTiersAreIndependent(t *testing.T) {
	cfg := Parse(`{"mode":"bundle_except","bundleExceptIds":["Z"],"configurations":[
		{"type":"quantity-break-multi-product","quantityThreshold":3,"discountValue":5},
		{"type":"quantity-break-multi-product","quantityThreshold":6,"discountValue":10},
		{"type":"quantity-break-multi-product","quantityThreshold":9,"discountValue":20}
	]}`)
	lines := []CartLine{
		variantLine("a", "A", 2, "1.00"),
		variantLine("b", "B", 4, "1.00"),
		variantLine("z", "Z", 10, "1.00"),
	}

	candidates := BuildMultiProductCandidates(lines, cfg)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.Equal(t, []Target{{LineID: "a"}, {LineID: "b"}}, c.Targets)
	}
	assert.Equal(t, 5.0, *candidates[0].Value.Percentage)
	assert.Equal(t, 10.0, *candidates[1].Value.Percentage)
	assert.Equal(t, "Buy 6+ across the bundle, save 10%", candidates[1].Message)
}

func TestMultiProductRequiresBundleMode(t *testing.T) {
	cfg := Parse(`{"mode":"all","bundleSpecificIds":["A"],"configurations":[
		{"type":"quantity-break-multi-product","quantityThreshold":1,"discountValue":5}
	]}`)
	require.Empty(t, BuildMultiProductCandidates([]CartLine{variantLine("a", "A", 5, "1.00")}, cfg))
}
