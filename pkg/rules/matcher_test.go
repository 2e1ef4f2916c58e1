package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/carrierhub/pkg/rules"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func baseOrder() rules.OrderContext {
	return rules.OrderContext{
		ShopID:      1,
		ShopGroupID: 1,
		ZoneID:      9,
		CountryID:   6,
		Weight:      5.0,
		ProductIDs:  []int64{100, 101},
		CategoryIDs: []int64{20},
	}
}

func TestSelect_NoRulesKeepsCandidateOrder(t *testing.T) {
	got := rules.Select(baseOrder(), []int64{3, 1, 2}, nil)
	assert.Equal(t, []int64{3, 1, 2}, got)
}

func TestSelect_Deterministic(t *testing.T) {
	rs := []rules.Rule{
		{ID: 2, Priority: 1, Active: true, Effects: rules.Effects{PreferIDs: []int64{3, 2}}},
		{ID: 1, Priority: 1, Active: true, Effects: rules.Effects{DenyIDs: []int64{4}}},
		{ID: 3, Priority: 0, Active: true, Effects: rules.Effects{AddIDs: []int64{4}}},
	}
	first := rules.Select(baseOrder(), []int64{1, 2, 3, 4}, rs)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, rules.Select(baseOrder(), []int64{1, 2, 3, 4}, rs))
	}
}

func TestSelect_AddWinsOverDeny(t *testing.T) {
	tests := []struct {
		name     string
		denyPrio int
		addPrio  int
	}{
		{"deny evaluated first", 1, 2},
		{"add evaluated first", 2, 1},
		{"same rule priority", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := []rules.Rule{
				{ID: 1, Priority: tt.denyPrio, Active: true, Effects: rules.Effects{DenyIDs: []int64{7}}},
				{ID: 2, Priority: tt.addPrio, Active: true, Effects: rules.Effects{AddIDs: []int64{7}}},
			}
			got := rules.Select(baseOrder(), []int64{5, 7}, rs)
			assert.Contains(t, got, int64(7))
		})
	}
}

func TestSelect_SameRuleDenyAndAdd(t *testing.T) {
	rs := []rules.Rule{
		{ID: 1, Active: true, Effects: rules.Effects{DenyIDs: []int64{7}, AddIDs: []int64{7}}},
	}
	assert.Equal(t, []int64{5, 7}, rules.Select(baseOrder(), []int64{5, 7}, rs))
}

func TestSelect_DenyRemovesCarrier(t *testing.T) {
	rs := []rules.Rule{
		{ID: 1, Active: true, Effects: rules.Effects{DenyIDs: []int64{2}}},
	}
	assert.Equal(t, []int64{1, 3}, rules.Select(baseOrder(), []int64{1, 2, 3}, rs))
}

func TestSelect_WeightRuleNotMatching(t *testing.T) {
	rs := []rules.Rule{
		{
			ID: 1, Priority: 1, Active: true,
			Conditions: rules.Conditions{MinWeight: f64(0), MaxWeight: f64(3)},
			Effects:    rules.Effects{DenyIDs: []int64{7}},
		},
	}
	got := rules.Select(baseOrder(), []int64{7}, rs)
	assert.Equal(t, []int64{7}, got)
}

func TestSelect_WeightBoundsInclusive(t *testing.T) {
	rs := []rules.Rule{
		{
			ID: 1, Active: true,
			Conditions: rules.Conditions{MinWeight: f64(5), MaxWeight: f64(5)},
			Effects:    rules.Effects{DenyIDs: []int64{7}},
		},
	}
	assert.Empty(t, rules.Select(baseOrder(), []int64{7}, rs))
}

func TestSelect_EmptyConditionsMatchEveryOrder(t *testing.T) {
	r := rules.Rule{ID: 1, Active: true, Effects: rules.Effects{DenyIDs: []int64{1}}}
	assert.True(t, r.Wildcard())

	orders := []rules.OrderContext{
		baseOrder(),
		{ShopID: 1, ShopGroupID: 1},
		{ShopID: 1, ShopGroupID: 1, Weight: 1000, ZoneID: 3, CountryID: 77, ProductIDs: []int64{9}},
	}
	for _, o := range orders {
		assert.True(t, r.Matches(o))
		assert.Equal(t, []int64{2}, rules.Select(o, []int64{1, 2}, []rules.Rule{r}))
	}
}

func TestSelect_ScopeGatesRule(t *testing.T) {
	rs := []rules.Rule{
		{ID: 1, Active: true, Scope: rules.Scope{ShopID: i64(2)}, Effects: rules.Effects{DenyIDs: []int64{1}}},
		{ID: 2, Active: true, Scope: rules.Scope{ShopGroupID: i64(5)}, Effects: rules.Effects{DenyIDs: []int64{2}}},
	}
	assert.Equal(t, []int64{1, 2}, rules.Select(baseOrder(), []int64{1, 2}, rs))
}

func TestSelect_InactiveRuleIgnored(t *testing.T) {
	rs := []rules.Rule{{ID: 1, Active: false, Effects: rules.Effects{DenyIDs: []int64{1}}}}
	assert.Equal(t, []int64{1}, rules.Select(baseOrder(), []int64{1}, rs))
}

func TestSelect_ConditionsOrWithinFieldAndAcrossFields(t *testing.T) {
	deny := rules.Effects{DenyIDs: []int64{1}}
	matching := rules.Rule{ID: 1, Active: true, Effects: deny, Conditions: rules.Conditions{
		ProductIDs: []int64{999, 101},
		ZoneIDs:    []int64{9},
	}}
	notMatching := rules.Rule{ID: 2, Active: true, Effects: deny, Conditions: rules.Conditions{
		ProductIDs: []int64{101},
		CountryIDs: []int64{42},
	}}
	assert.True(t, matching.Matches(baseOrder()))
	assert.False(t, notMatching.Matches(baseOrder()))
}

func TestSelect_AllowNarrowsByIntersection(t *testing.T) {
	rs := []rules.Rule{
		{ID: 1, Priority: 1, Active: true, Effects: rules.Effects{AllowIDs: []int64{1, 2, 3}}},
		{ID: 2, Priority: 2, Active: true, Effects: rules.Effects{AllowIDs: []int64{2, 3, 4}}},
	}
	assert.Equal(t, []int64{2, 3}, rules.Select(baseOrder(), []int64{1, 2, 3, 4}, rs))
}

func TestSelect_AllowKeepsForcedCarriers(t *testing.T) {
	rs := []rules.Rule{
		{ID: 1, Priority: 1, Active: true, Effects: rules.Effects{AddIDs: []int64{4}}},
		{ID: 2, Priority: 2, Active: true, Effects: rules.Effects{AllowIDs: []int64{1}}},
	}
	assert.Equal(t, []int64{1, 4}, rules.Select(baseOrder(), []int64{1, 2, 3, 4}, rs))
}

func TestSelect_PreferenceOrdering(t *testing.T) {
	rs := []rules.Rule{
		{ID: 1, Priority: 1, Active: true, Effects: rules.Effects{PreferIDs: []int64{3, 99}}},
		{ID: 2, Priority: 2, Active: true, Effects: rules.Effects{PreferIDs: []int64{2, 3}}},
	}
	got := rules.Select(baseOrder(), []int64{1, 2, 3, 4}, rs)
	assert.Equal(t, []int64{3, 2, 1, 4}, got)
}

func TestSelect_PreferredButDeniedIsDropped(t *testing.T) {
	rs := []rules.Rule{
		{ID: 1, Active: true, Effects: rules.Effects{PreferIDs: []int64{2}, DenyIDs: []int64{2}}},
	}
	assert.Equal(t, []int64{1}, rules.Select(baseOrder(), []int64{1, 2}, rs))
}

func TestSelect_UnknownCarrierIdsIgnored(t *testing.T) {
	rs := []rules.Rule{
		{ID: 1, Active: true, Effects: rules.Effects{AddIDs: []int64{50}, DenyIDs: []int64{51}, PreferIDs: []int64{52}}},
	}
	assert.Equal(t, []int64{1}, rules.Select(baseOrder(), []int64{1}, rs))
}

func TestSelect_EmptyEligibleSet(t *testing.T) {
	rs := []rules.Rule{{ID: 1, Active: true, Effects: rules.Effects{DenyIDs: []int64{1, 2}}}}
	got := rules.Select(baseOrder(), []int64{1, 2}, rs)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEvaluate_ReportsMatchedRulesInOrder(t *testing.T) {
	rs := []rules.Rule{
		{ID: 5, Priority: 2, Active: true},
		{ID: 3, Priority: 1, Active: true},
		{ID: 4, Priority: 1, Active: true},
		{ID: 6, Priority: 0, Active: true, Conditions: rules.Conditions{CountryIDs: []int64{1}}},
	}
	d := rules.Evaluate(baseOrder(), []int64{1}, rs)
	assert.Equal(t, []int64{3, 4, 5}, d.Matched)
}

func TestSorted_DoesNotMutateInput(t *testing.T) {
	rs := []rules.Rule{{ID: 2, Priority: 1}, {ID: 1, Priority: 1}, {ID: 3, Priority: 0}}
	sorted := rules.Sorted(rs)
	assert.Equal(t, []int64{3, 1, 2}, []int64{sorted[0].ID, sorted[1].ID, sorted[2].ID})
	assert.Equal(t, int64(2), rs[0].ID)
}
