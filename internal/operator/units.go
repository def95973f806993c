package operator

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// toDecimal converts settlement-asset minor units to a venue-side decimal.
func toDecimal(v *uint256.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals))
}

// toMinorUnits converts a venue-side decimal to settlement-asset minor
// units, flooring fractional dust.
func toMinorUnits(d decimal.Decimal, decimals uint8) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", d)
	}
	scaled := d.Shift(int32(decimals)).Floor()
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %s exceeds u256", d)
	}
	return v, nil
}
