// Package pricing maps a declared bean weight to a package tier and price.
//
// Prices are whole rupiah. A Table is immutable once built; orders store the
// quote they were created with, so swapping tables never re-prices them.
package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sortirkopi/bean-order-api/apperror"
)

// Tier is a weight-based pricing bracket
type Tier string

const (
	TierSmall  Tier = "Small"
	TierMedium Tier = "Medium"
	TierLarge  Tier = "Large"
)

// MinimumWeightKg is the smallest weight an order may declare
var MinimumWeightKg = decimal.NewFromInt(5)

// MaximumWeightKg is the largest weight the orders.weight_kg column holds
var MaximumWeightKg = decimal.RequireFromString("9999999.999")

var maxTotal = decimal.NewFromInt(math.MaxInt64)

// Bracket covers weights up to and including UpToKg. The last bracket of a
// table is unbounded.
type Bracket struct {
	Tier       Tier
	UpToKg     decimal.Decimal
	Unbounded  bool
	PricePerKg int64
}

// Table is an ordered, versioned set of brackets
type Table struct {
	Version  string
	Brackets []Bracket
}

// Quote is the result of pricing a weight
type Quote struct {
	WeightKg       decimal.Decimal `json:"weight_kg"`
	Tier           Tier            `json:"tier"`
	PricePerKg     int64           `json:"price_per_kg"`
	TotalPrice     int64           `json:"total_price"`
	PricingVersion string          `json:"pricing_version"`
}

// DefaultTable is the current price list:
// [5, 20] Small, (20, 50] Medium, above 50 Large.
var DefaultTable = MustNewTable("2024-01", []Bracket{
	{Tier: TierSmall, UpToKg: decimal.NewFromInt(20), PricePerKg: 15000},
	{Tier: TierMedium, UpToKg: decimal.NewFromInt(50), PricePerKg: 13000},
	{Tier: TierLarge, Unbounded: true, PricePerKg: 11000},
})

// NewTable validates the brackets: ascending bounds, positive prices and an
// unbounded final bracket.
func NewTable(version string, brackets []Bracket) (*Table, error) {
	if len(brackets) == 0 {
		return nil, fmt.Errorf("pricing table %q has no brackets", version)
	}
	prev := MinimumWeightKg
	for i, b := range brackets {
		if b.PricePerKg <= 0 {
			return nil, fmt.Errorf("bracket %s: price per kg must be positive", b.Tier)
		}
		last := i == len(brackets)-1
		if b.Unbounded != last {
			return nil, fmt.Errorf("bracket %s: only the last bracket may be unbounded", b.Tier)
		}
		if !b.Unbounded {
			if b.UpToKg.LessThan(prev) {
				return nil, fmt.Errorf("bracket %s: bounds must ascend", b.Tier)
			}
			prev = b.UpToKg
		}
	}
	out := make([]Bracket, len(brackets))
	copy(out, brackets)
	return &Table{Version: version, Brackets: out}, nil
}

// MustNewTable is NewTable for package-level tables
func MustNewTable(version string, brackets []Bracket) *Table {
	t, err := NewTable(version, brackets)
	if err != nil {
		panic(err)
	}
	return t
}

// Quote prices a weight. Weights outside [MinimumWeightKg, MaximumWeightKg]
// signal InvalidWeight.
func (t *Table) Quote(weightKg decimal.Decimal) (Quote, error) {
	if weightKg.LessThan(MinimumWeightKg) {
		return Quote{}, apperror.InvalidWeight(
			fmt.Sprintf("Weight must be at least %s kg", MinimumWeightKg.String()))
	}
	if weightKg.GreaterThan(MaximumWeightKg) {
		return Quote{}, apperror.InvalidWeight(
			fmt.Sprintf("Weight must be at most %s kg", MaximumWeightKg.String()))
	}

	b := t.bracketFor(weightKg)
	exact := weightKg.Mul(decimal.NewFromInt(b.PricePerKg)).Round(0)
	if exact.GreaterThan(maxTotal) {
		return Quote{}, apperror.InvalidWeight("Total price is out of range")
	}
	total := exact.IntPart()

	return Quote{
		WeightKg:       weightKg,
		Tier:           b.Tier,
		PricePerKg:     b.PricePerKg,
		TotalPrice:     total,
		PricingVersion: t.Version,
	}, nil
}

// QuoteFloat prices a float weight, rejecting NaN and infinities
func (t *Table) QuoteFloat(weightKg float64) (Quote, error) {
	if math.IsNaN(weightKg) || math.IsInf(weightKg, 0) {
		return Quote{}, apperror.InvalidWeight("Weight must be a finite number")
	}
	return t.Quote(decimal.NewFromFloat(weightKg))
}

func (t *Table) bracketFor(weightKg decimal.Decimal) Bracket {
	for _, b := range t.Brackets {
		if b.Unbounded || weightKg.LessThanOrEqual(b.UpToKg) {
			return b
		}
	}
	return t.Brackets[len(t.Brackets)-1]
}

// ParseWeight parses a user-supplied weight string
func ParseWeight(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, apperror.InvalidWeight("Weight is required")
	}
	w, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.InvalidWeight("Weight must be a finite number")
	}
	return w, nil
}
