package vault

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Virtual offsets added to both conversion denominators and numerators.
// They pin the bootstrap share price near 1:1 and make the classic
// first-depositor inflation attack unprofitable: donating assets to skew the
// share price costs more than the attacker can extract. Both are expressed
// in the settlement asset's minor unit (6 decimals).
const (
	VirtualShares = 1_000_000
	VirtualAssets = 1_000_000
)

// ToShares converts an asset value into shares at the current totals:
//
//	shares = floor(assets * (totalSupply + VirtualShares) / (totalNAV + VirtualAssets))
//
// Pure; reads nothing but its arguments. The virtual offsets keep the
// denominator nonzero. Floor division means dust always stays with the
// vault. ok is false only when the result does not fit in 256 bits.
func ToShares(assets, totalSupply, totalNAV *uint256.Int) (shares *uint256.Int, ok bool) {
	num := new(uint256.Int).Add(totalSupply, uint256.NewInt(VirtualShares))
	den := new(uint256.Int).Add(totalNAV, uint256.NewInt(VirtualAssets))
	return mulDiv(assets, num, den)
}

// ToAssets converts shares into an asset value at the current totals:
//
//	assets = floor(shares * (totalNAV + VirtualAssets) / (totalSupply + VirtualShares))
func ToAssets(shares, totalSupply, totalNAV *uint256.Int) (assets *uint256.Int, ok bool) {
	num := new(uint256.Int).Add(totalNAV, uint256.NewInt(VirtualAssets))
	den := new(uint256.Int).Add(totalSupply, uint256.NewInt(VirtualShares))
	return mulDiv(shares, num, den)
}

// mulDiv computes floor(a*b/d) with a 512-bit intermediate product so values
// near 2^256 cannot overflow mid-computation. d must be nonzero.
func mulDiv(a, b, d *uint256.Int) (*uint256.Int, bool) {
	prod := new(big.Int).Mul(a.ToBig(), b.ToBig())
	prod.Div(prod, d.ToBig())
	out, overflow := uint256.FromBig(prod)
	if overflow {
		return nil, false
	}
	return out, true
}

// ratioBps computes floor(part * 10000 / whole). whole must be nonzero.
func ratioBps(part, whole *uint256.Int) (*uint256.Int, bool) {
	return mulDiv(part, uint256.NewInt(10_000), whole)
}

// applyBps computes floor(amount * bps / 10000).
func applyBps(amount, bps *uint256.Int) (*uint256.Int, bool) {
	return mulDiv(amount, bps, uint256.NewInt(10_000))
}
