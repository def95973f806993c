package vault

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/unboundlabs/unbound/internal/asset"
)

func TestShareLedger_MintBurn(t *testing.T) {
	l := NewShareLedger()

	require.NoError(t, l.Mint("a", u(100)))
	require.NoError(t, l.Mint("b", u(50)))
	require.NoError(t, l.Mint("a", u(25)))

	require.Equal(t, u(125), l.BalanceOf("a"))
	require.Equal(t, u(50), l.BalanceOf("b"))
	require.Equal(t, u(175), l.TotalSupply())

	require.NoError(t, l.Burn("a", u(125)))
	require.True(t, l.BalanceOf("a").IsZero())
	require.Equal(t, u(50), l.TotalSupply())
}

func TestShareLedger_BurnInsufficient(t *testing.T) {
	l := NewShareLedger()
	require.NoError(t, l.Mint("a", u(10)))

	require.ErrorIs(t, l.Burn("a", u(11)), ErrInsufficientShares)
	require.ErrorIs(t, l.Burn("unknown", u(1)), ErrInsufficientShares)

	// Failed burns change nothing.
	require.Equal(t, u(10), l.BalanceOf("a"))
	require.Equal(t, u(10), l.TotalSupply())
}

func TestShareLedger_MintOverflow(t *testing.T) {
	l := NewShareLedger()
	require.NoError(t, l.Mint("a", max256()))
	require.ErrorIs(t, l.Mint("b", u(1)), ErrOverflow)
	require.Equal(t, max256(), l.TotalSupply())
}

func TestShareLedger_MovePreservesSupply(t *testing.T) {
	l := NewShareLedger()
	require.NoError(t, l.Mint("a", u(100)))

	require.NoError(t, l.Move("a", "escrow", u(40)))
	require.Equal(t, u(60), l.BalanceOf("a"))
	require.Equal(t, u(40), l.BalanceOf("escrow"))
	require.Equal(t, u(100), l.TotalSupply())

	require.ErrorIs(t, l.Move("a", "escrow", u(61)), ErrInsufficientShares)
}

func TestShareLedger_BalancesIsolated(t *testing.T) {
	l := NewShareLedger()
	require.NoError(t, l.Mint("a", u(100)))

	snap := l.Balances()
	snap["a"].SetUint64(1) // mutating the copy must not leak back
	require.Equal(t, u(100), l.BalanceOf("a"))
}

func TestRestoreShareLedger(t *testing.T) {
	l := NewShareLedger()
	require.NoError(t, l.Mint("a", u(100)))
	require.NoError(t, l.Mint("b", u(200)))

	restored, err := RestoreShareLedger(l.Balances())
	require.NoError(t, err)
	require.Equal(t, u(300), restored.TotalSupply())
	require.Equal(t, u(100), restored.BalanceOf("a"))
	require.Equal(t, u(200), restored.BalanceOf("b"))
}

func TestRestoreShareLedger_OverflowRejected(t *testing.T) {
	balances := map[asset.Account]*uint256.Int{
		"a": max256(),
		"b": u(1),
	}
	_, err := RestoreShareLedger(balances)
	require.ErrorIs(t, err, ErrOverflow)
}
