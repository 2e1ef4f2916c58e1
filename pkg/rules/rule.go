// Package rules selects the carriers allowed for an order from a set of validation rules.
package rules

import (
	"sort"
)

// Scope restricts a rule to a shop or a shop group. Nil fields match any value.
type Scope struct {
	ShopID      *int64
	ShopGroupID *int64
}

// Conditions narrow the orders a rule applies to. An empty list or a nil bound
// places no restriction on that field.
type Conditions struct {
	ProductIDs  []int64
	CategoryIDs []int64
	ZoneIDs     []int64
	CountryIDs  []int64
	MinWeight   *float64
	MaxWeight   *float64
}

// Effects lists the carrier ids a matching rule acts on.
type Effects struct {
	AllowIDs  []int64
	DenyIDs   []int64
	AddIDs    []int64
	PreferIDs []int64
}

// Rule is one validation rule.
type Rule struct {
	ID         int64
	Name       string
	Priority   int
	Active     bool
	Scope      Scope
	Conditions Conditions
	Effects    Effects
}

// OrderContext describes the order carriers are being selected for.
type OrderContext struct {
	ShopID      int64
	ShopGroupID int64
	ZoneID      int64
	CountryID   int64
	Weight      float64
	ProductIDs  []int64
	CategoryIDs []int64
}

// InScope reports whether the order belongs to the rule's shop and shop group.
func (r Rule) InScope(order OrderContext) bool {
	if r.Scope.ShopID != nil && *r.Scope.ShopID != order.ShopID {
		return false
	}
	if r.Scope.ShopGroupID != nil && *r.Scope.ShopGroupID != order.ShopGroupID {
		return false
	}
	return true
}

// Matches evaluates the rule's conditions against the order. Ids are ORed
// within a field and fields are ANDed. Weight bounds are inclusive.
func (r Rule) Matches(order OrderContext) bool {
	c := r.Conditions
	if c.MinWeight != nil && order.Weight < *c.MinWeight {
		return false
	}
	if c.MaxWeight != nil && order.Weight > *c.MaxWeight {
		return false
	}
	if !intersects(c.ProductIDs, order.ProductIDs) {
		return false
	}
	if !intersects(c.CategoryIDs, order.CategoryIDs) {
		return false
	}
	if !intersects(c.ZoneIDs, []int64{order.ZoneID}) {
		return false
	}
	if !intersects(c.CountryIDs, []int64{order.CountryID}) {
		return false
	}
	return true
}

// Wildcard reports whether the rule has no conditions at all.
func (r Rule) Wildcard() bool {
	c := r.Conditions
	return len(c.ProductIDs) == 0 && len(c.CategoryIDs) == 0 &&
		len(c.ZoneIDs) == 0 && len(c.CountryIDs) == 0 &&
		c.MinWeight == nil && c.MaxWeight == nil
}

// Sorted returns a copy of rs ordered by priority, then id.
func Sorted(rs []Rule) []Rule {
	out := make([]Rule, len(rs))
	copy(out, rs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// intersects is true when want is empty or shares at least one id with have.
func intersects(want, have []int64) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[int64]struct{}, len(have))
	for _, id := range have {
		set[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
