package vault

import (
	"github.com/holiman/uint256"

	"github.com/unboundlabs/unbound/internal/asset"
)

// ShareLedger tracks share balances and the total supply. The supply is
// maintained alongside every mint and burn so sum(balances) == totalSupply
// holds after each mutation. Owned and serialized by the controller.
type ShareLedger struct {
	balances map[asset.Account]*uint256.Int
	supply   *uint256.Int
}

func NewShareLedger() *ShareLedger {
	return &ShareLedger{
		balances: make(map[asset.Account]*uint256.Int),
		supply:   new(uint256.Int),
	}
}

func (l *ShareLedger) TotalSupply() *uint256.Int { return l.supply.Clone() }

func (l *ShareLedger) BalanceOf(account asset.Account) *uint256.Int {
	bal := l.balances[account]
	if bal == nil {
		return new(uint256.Int)
	}
	return bal.Clone()
}

// Mint credits freshly created shares to account.
func (l *ShareLedger) Mint(account asset.Account, amount *uint256.Int) error {
	newSupply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return ErrOverflow
	}
	bal := l.balances[account]
	if bal == nil {
		bal = new(uint256.Int)
	}
	l.balances[account] = new(uint256.Int).Add(bal, amount)
	l.supply = newSupply
	return nil
}

// Burn destroys shares held by account.
func (l *ShareLedger) Burn(account asset.Account, amount *uint256.Int) error {
	bal := l.balances[account]
	if bal == nil || bal.Lt(amount) {
		return ErrInsufficientShares
	}
	l.balances[account] = new(uint256.Int).Sub(bal, amount)
	l.supply = new(uint256.Int).Sub(l.supply, amount)
	return nil
}

// Move transfers shares between accounts without touching supply. Used for
// withdrawal escrow and its return.
func (l *ShareLedger) Move(from, to asset.Account, amount *uint256.Int) error {
	bal := l.balances[from]
	if bal == nil || bal.Lt(amount) {
		return ErrInsufficientShares
	}
	l.balances[from] = new(uint256.Int).Sub(bal, amount)
	toBal := l.balances[to]
	if toBal == nil {
		toBal = new(uint256.Int)
	}
	l.balances[to] = new(uint256.Int).Add(toBal, amount)
	return nil
}

// Balances returns a deep copy of all nonzero balances.
func (l *ShareLedger) Balances() map[asset.Account]*uint256.Int {
	out := make(map[asset.Account]*uint256.Int, len(l.balances))
	for acct, bal := range l.balances {
		if !bal.IsZero() {
			out[acct] = bal.Clone()
		}
	}
	return out
}

// RestoreShareLedger rebuilds a ledger from persisted balances; the supply is
// recomputed from the balances themselves.
func RestoreShareLedger(balances map[asset.Account]*uint256.Int) (*ShareLedger, error) {
	l := NewShareLedger()
	for acct, bal := range balances {
		if err := l.Mint(acct, bal); err != nil {
			return nil, err
		}
	}
	return l, nil
}
