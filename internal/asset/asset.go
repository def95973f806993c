// Package asset models the fungible tokens the vault moves around: the
// deposit asset users bring in (wBTC) and the settlement asset used as
// margin on the external venue (USDC). The vault only ever consumes the
// narrow Transfer surface; Token is the in-process implementation backing
// local mode and tests.
package asset

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"
)

// Account identifies a balance holder. Free-form so it can carry a hex
// address, a venue account id or an internal name like "vault".
type Account string

var (
	ErrInsufficientBalance   = errors.New("asset: insufficient balance")
	ErrInsufficientAllowance = errors.New("asset: insufficient allowance")
	ErrBalanceOverflow       = errors.New("asset: balance overflow")
)

// Transfer is the fungible-token surface the vault consumes. Implementations
// must be atomic per call: either the full amount moves or nothing does.
type Transfer interface {
	Transfer(from, to Account, amount *uint256.Int) error
	Approve(owner, spender Account, amount *uint256.Int) error
	BalanceOf(account Account) *uint256.Int
}

type allowanceKey struct {
	owner   Account
	spender Account
}

// Token is an in-memory fungible token ledger with standard
// balance/allowance semantics.
type Token struct {
	mu         sync.RWMutex
	symbol     string
	decimals   uint8
	balances   map[Account]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

func NewToken(symbol string, decimals uint8) *Token {
	return &Token{
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[Account]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

func (t *Token) Symbol() string  { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

// Mint credits amount to account. Used for genesis balances and deposits
// arriving from outside the node's view.
func (t *Token) Mint(account Account, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	bal := t.balances[account]
	if bal == nil {
		bal = new(uint256.Int)
	}
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	t.balances[account] = sum
	return nil
}

// Burn debits amount from account.
func (t *Token) Burn(account Account, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.debit(account, amount)
}

func (t *Token) Transfer(from, to Account, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if from == to || amount.IsZero() {
		return nil
	}
	if err := t.debit(from, amount); err != nil {
		return err
	}
	bal := t.balances[to]
	if bal == nil {
		bal = new(uint256.Int)
	}
	// Cannot overflow: total token supply fits in 256 bits and debit
	// already succeeded.
	t.balances[to] = new(uint256.Int).Add(bal, amount)
	return nil
}

func (t *Token) Approve(owner, spender Account, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[allowanceKey{owner, spender}] = amount.Clone()
	return nil
}

// TransferFrom moves amount from owner to recipient consuming spender's
// allowance.
func (t *Token) TransferFrom(spender, owner, to Account, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := allowanceKey{owner, spender}
	allowed := t.allowances[key]
	if allowed == nil || allowed.Lt(amount) {
		return ErrInsufficientAllowance
	}
	if err := t.debit(owner, amount); err != nil {
		return err
	}
	t.allowances[key] = new(uint256.Int).Sub(allowed, amount)
	bal := t.balances[to]
	if bal == nil {
		bal = new(uint256.Int)
	}
	t.balances[to] = new(uint256.Int).Add(bal, amount)
	return nil
}

func (t *Token) BalanceOf(account Account) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bal := t.balances[account]
	if bal == nil {
		return new(uint256.Int)
	}
	return bal.Clone()
}

func (t *Token) Allowance(owner, spender Account) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	allowed := t.allowances[allowanceKey{owner, spender}]
	if allowed == nil {
		return new(uint256.Int)
	}
	return allowed.Clone()
}

// debit requires t.mu held for writing.
func (t *Token) debit(account Account, amount *uint256.Int) error {
	bal := t.balances[account]
	if bal == nil || bal.Lt(amount) {
		return ErrInsufficientBalance
	}
	t.balances[account] = new(uint256.Int).Sub(bal, amount)
	return nil
}
