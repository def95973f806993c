// Package swap abstracts the DEX aggregator used to move value between the
// deposit asset and the settlement asset. The vault treats the route as an
// uninterpreted byte blob produced by an external routing service; it only
// validates nonzero output and the slippage floor.
package swap

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/unboundlabs/unbound/internal/asset"
)

var (
	ErrZeroOutput       = errors.New("swap: execution returned zero output")
	ErrSlippageExceeded = errors.New("swap: output below minimum")
	ErrUnsupportedPair  = errors.New("swap: unsupported token pair")
)

// Request describes one swap. Owner is the account whose balance funds the
// input and receives the output.
type Request struct {
	FromToken string
	ToToken   string
	Owner     asset.Account
	Amount    *uint256.Int
	MinOut    *uint256.Int
	Route     []byte
}

// Executor quotes and executes swaps. Quote must not move funds; Swap must be
// atomic: on error no balances change. The split mirrors aggregator APIs
// (quote endpoint + swap endpoint) and lets the vault validate a payout
// before committing to the execution.
type Executor interface {
	Quote(ctx context.Context, req Request) (*uint256.Int, error)
	Swap(ctx context.Context, req Request) (*uint256.Int, error)
}
