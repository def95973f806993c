package swap

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"github.com/unboundlabs/unbound/internal/asset"
)

// pair keys the price table by direction.
type pair struct {
	from string
	to   string
}

// Local is an Executor backed by in-process token ledgers and a fixed price
// table. It fills the aggregator's role when the node runs self-contained:
// output is taken from (and input paid to) a designated liquidity account.
type Local struct {
	mu        sync.Mutex
	tokens    map[string]*asset.Token
	prices    map[pair]*big.Rat // to-units per from-unit
	liquidity asset.Account
	feeBps    uint64
}

func NewLocal(liquidity asset.Account, feeBps uint64) *Local {
	return &Local{
		tokens:    make(map[string]*asset.Token),
		prices:    make(map[pair]*big.Rat),
		liquidity: liquidity,
		feeBps:    feeBps,
	}
}

// AddToken registers a token ledger under its symbol.
func (l *Local) AddToken(t *asset.Token) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[t.Symbol()] = t
}

// SetPrice fixes the conversion rate for one direction as a rational in
// minor units: amountOut = amountIn * num / den, before fees.
func (l *Local) SetPrice(from, to string, num, den uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prices[pair{from, to}] = big.NewRat(int64(num), int64(den))
}

func (l *Local) Quote(_ context.Context, req Request) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.quoteLocked(req)
}

func (l *Local) Swap(_ context.Context, req Request) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out, err := l.quoteLocked(req)
	if err != nil {
		return nil, err
	}
	if out.IsZero() {
		return nil, ErrZeroOutput
	}
	if req.MinOut != nil && out.Lt(req.MinOut) {
		return nil, ErrSlippageExceeded
	}

	fromTok := l.tokens[req.FromToken]
	toTok := l.tokens[req.ToToken]

	// Pull input first; if paying out fails the input is returned so the
	// call stays atomic from the owner's point of view.
	if err := fromTok.Transfer(req.Owner, l.liquidity, req.Amount); err != nil {
		return nil, fmt.Errorf("pull swap input: %w", err)
	}
	if err := toTok.Transfer(l.liquidity, req.Owner, out); err != nil {
		if rbErr := fromTok.Transfer(l.liquidity, req.Owner, req.Amount); rbErr != nil {
			return nil, fmt.Errorf("pay swap output: %w (rollback failed: %v)", err, rbErr)
		}
		return nil, fmt.Errorf("pay swap output: %w", err)
	}
	return out, nil
}

func (l *Local) quoteLocked(req Request) (*uint256.Int, error) {
	price, ok := l.prices[pair{req.FromToken, req.ToToken}]
	if !ok {
		return nil, ErrUnsupportedPair
	}
	if _, ok := l.tokens[req.FromToken]; !ok {
		return nil, ErrUnsupportedPair
	}
	if _, ok := l.tokens[req.ToToken]; !ok {
		return nil, ErrUnsupportedPair
	}

	gross := new(big.Int).Mul(req.Amount.ToBig(), price.Num())
	gross.Div(gross, price.Denom())

	if l.feeBps > 0 {
		fee := new(big.Int).Mul(gross, big.NewInt(int64(l.feeBps)))
		fee.Div(fee, big.NewInt(10_000))
		gross.Sub(gross, fee)
	}

	out, overflow := uint256.FromBig(gross)
	if overflow {
		return nil, fmt.Errorf("swap output exceeds u256")
	}
	return out, nil
}
