// Package nav holds the vault's single authoritative net-asset-value figure
// and the rules that keep a compromised or erring operator from moving it too
// far, too fast.
package nav

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrTooSoon is returned when an update arrives inside the cooldown
	// window. The boundary is inclusive: now == last + cooldown is allowed.
	ErrTooSoon = errors.New("nav: update inside cooldown window")

	// ErrChangeTooLarge is returned when a nonzero-to-nonzero update moves
	// NAV by more basis points than the configured cap.
	ErrChangeTooLarge = errors.New("nav: change exceeds max basis points")

	// ErrUnderflow is returned when a queue-processing debit exceeds the
	// current NAV.
	ErrUnderflow = errors.New("nav: debit exceeds current value")
)

const bpsDenominator = 10_000

// Ledger is not internally synchronized; the vault controller owns it and
// serializes all access.
type Ledger struct {
	value        *uint256.Int
	lastUpdate   uint64 // unix seconds, 0 = never updated
	cooldown     uint64 // seconds between operator updates
	maxChangeBps uint64 // cap on |new-cur| in basis points of cur
}

func New(cooldown, maxChangeBps uint64) *Ledger {
	return &Ledger{
		value:        new(uint256.Int),
		cooldown:     cooldown,
		maxChangeBps: maxChangeBps,
	}
}

// Restore rebuilds a ledger from persisted state.
func Restore(cooldown, maxChangeBps uint64, value *uint256.Int, lastUpdate uint64) *Ledger {
	l := New(cooldown, maxChangeBps)
	l.value = value.Clone()
	l.lastUpdate = lastUpdate
	return l
}

func (l *Ledger) Value() *uint256.Int { return l.value.Clone() }

func (l *Ledger) LastUpdate() uint64 { return l.lastUpdate }

func (l *Ledger) Cooldown() uint64 { return l.cooldown }

func (l *Ledger) MaxChangeBps() uint64 { return l.maxChangeBps }

// Update applies an operator-reported NAV. The first update is unconditional;
// later ones must clear the cooldown and the change cap, and the timestamp
// never moves backwards. Transitions from or to zero skip the percentage
// check so the vault can bootstrap and fully drain. Returns the previous
// value on success.
func (l *Ledger) Update(newValue *uint256.Int, now uint64) (*uint256.Int, error) {
	if l.lastUpdate != 0 {
		// Independent of the cooldown: with cooldown 0 the window check
		// alone would let the timestamp regress.
		if now < l.lastUpdate {
			return nil, ErrTooSoon
		}
		if now < l.lastUpdate+l.cooldown {
			return nil, ErrTooSoon
		}
		if err := l.checkDelta(newValue); err != nil {
			return nil, err
		}
	}

	old := l.value
	l.value = newValue.Clone()
	l.lastUpdate = now
	return old, nil
}

// checkDelta enforces |new-cur| * 10000 <= cur * maxChangeBps, compared
// without division so no rounding slack creeps in. Skipped when either side
// is zero.
func (l *Ledger) checkDelta(newValue *uint256.Int) error {
	if l.value.IsZero() || newValue.IsZero() {
		return nil
	}

	diff := new(uint256.Int)
	if newValue.Gt(l.value) {
		diff.Sub(newValue, l.value)
	} else {
		diff.Sub(l.value, newValue)
	}

	lhs, lhsOverflow := new(uint256.Int).MulOverflow(diff, uint256.NewInt(bpsDenominator))
	rhs, rhsOverflow := new(uint256.Int).MulOverflow(l.value, uint256.NewInt(l.maxChangeBps))
	if lhsOverflow || rhsOverflow {
		// Values this close to 2^256 cannot be compared in-width. Scale the
		// current value down first; the floor makes the check strictly
		// conservative, never permissive.
		scaled := new(uint256.Int).Div(l.value, uint256.NewInt(bpsDenominator))
		scaled.Mul(scaled, uint256.NewInt(l.maxChangeBps))
		if diff.Gt(scaled) {
			return ErrChangeTooLarge
		}
		return nil
	}
	if lhs.Gt(rhs) {
		return ErrChangeTooLarge
	}
	return nil
}

// Credit adds a queue-processing delta (deposit processed). The rate limit
// does not apply: the value entered through a validated deposit flow.
func (l *Ledger) Credit(delta *uint256.Int) error {
	sum, overflow := new(uint256.Int).AddOverflow(l.value, delta)
	if overflow {
		return ErrChangeTooLarge
	}
	l.value = sum
	return nil
}

// Debit subtracts a queue-processing delta (withdrawal completed).
func (l *Ledger) Debit(delta *uint256.Int) error {
	if l.value.Lt(delta) {
		return ErrUnderflow
	}
	l.value = new(uint256.Int).Sub(l.value, delta)
	return nil
}
