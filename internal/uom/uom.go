// Package uom converts user-facing quantities into integer base units per
// physical dimension and back. Multiplier tables are immutable and loaded
// once at init.
package uom

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Dimension enumerates the supported physical dimensions.
type Dimension string

const (
	DimensionLength Dimension = "length"
	DimensionArea   Dimension = "area"
	DimensionVolume Dimension = "volume"
	DimensionWeight Dimension = "weight"
	DimensionCount  Dimension = "count"
)

// ErrUnknownDimension indicates a dimension outside the fixed set.
var ErrUnknownDimension = errors.New("uom: unknown dimension")

// ErrUnsupportedUnit indicates a unit missing from the dimension's table.
var ErrUnsupportedUnit = errors.New("uom: unsupported unit")

// Base units: length→mm, area→mm², volume→mm³, weight→mg, count→ea.
// Area factors are the square of the length factors (cm² = 100, not 10).
var multipliers = map[Dimension]map[string]int64{
	DimensionLength: {
		"mm": 1,
		"cm": 10,
		"m":  1_000,
	},
	DimensionArea: {
		"mm2": 1,
		"cm2": 100,
		"m2":  1_000_000,
	},
	DimensionVolume: {
		"mm3": 1,
		"cm3": 1_000,
		"ml":  1_000,
		"l":   1_000_000,
		"m3":  1_000_000_000,
	},
	DimensionWeight: {
		"mg": 1,
		"g":  1_000,
		"kg": 1_000_000,
	},
	DimensionCount: {
		"ea":    1,
		"pair":  2,
		"dozen": 12,
	},
}

// Valid reports whether d is one of the supported dimensions.
func (d Dimension) Valid() bool {
	_, ok := multipliers[d]
	return ok
}

func multiplier(unit string, dim Dimension) (decimal.Decimal, error) {
	table, ok := multipliers[dim]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
	factor, ok := table[unit]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %q in dimension %q", ErrUnsupportedUnit, unit, dim)
	}
	return decimal.NewFromInt(factor), nil
}

// ToBase converts value expressed in unit into integer base units,
// rounding half-up to the nearest integer.
func ToBase(value decimal.Decimal, unit string, dim Dimension) (int64, error) {
	factor, err := multiplier(unit, dim)
	if err != nil {
		return 0, err
	}
	// decimal.Round rounds half away from zero, which is the half-up
	// behaviour the ledger requires.
	return value.Mul(factor).Round(0).IntPart(), nil
}

// FromBase converts an integer base-unit quantity back into unit,
// rounded to 3 decimal places half-up.
func FromBase(value int64, unit string, dim Dimension) (decimal.Decimal, error) {
	factor, err := multiplier(unit, dim)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromInt(value).Div(factor).Round(3), nil
}

// Supported reports whether unit is registered under dim.
func Supported(unit string, dim Dimension) bool {
	_, err := multiplier(unit, dim)
	return err == nil
}

// Units lists the units registered for a dimension.
func Units(dim Dimension) ([]string, error) {
	table, ok := multipliers[dim]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
	units := make([]string, 0, len(table))
	for unit := range table {
		units = append(units, unit)
	}
	return units, nil
}

// Dimensions lists the supported dimensions.
func Dimensions() []Dimension {
	return []Dimension{DimensionLength, DimensionArea, DimensionVolume, DimensionWeight, DimensionCount}
}
