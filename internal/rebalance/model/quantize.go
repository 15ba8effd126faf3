package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Quantize rounds x to the nearest multiple of step, rounding down when
// down is true and up otherwise. Trailing zeros in step's representation
// (e.g. "0.01000000") do not affect the result: decimal arithmetic compares
// by value, not by stored scale.
func Quantize(x, step decimal.Decimal, down bool) (decimal.Decimal, error) {
	if !step.IsPositive() {
		return decimal.Zero, fmt.Errorf("quantize: step must be positive, got %s", step)
	}

	units := x.Div(step)
	var rounded decimal.Decimal
	if down {
		rounded = units.Floor()
	} else {
		rounded = units.Ceil()
	}
	return rounded.Mul(step), nil
}
