package swap

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/unboundlabs/unbound/internal/asset"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func newLocalFixture(t *testing.T, feeBps uint64) (*Local, *asset.Token, *asset.Token) {
	t.Helper()

	wbtc := asset.NewToken("WBTC", 6)
	usdc := asset.NewToken("USDC", 6)

	l := NewLocal("pool", feeBps)
	l.AddToken(wbtc)
	l.AddToken(usdc)
	// 1 wBTC minor unit buys 2 USDC minor units.
	l.SetPrice("WBTC", "USDC", 2, 1)
	l.SetPrice("USDC", "WBTC", 1, 2)

	require.NoError(t, wbtc.Mint("pool", u(10_000_000)))
	require.NoError(t, usdc.Mint("pool", u(10_000_000)))
	return l, wbtc, usdc
}

func TestLocal_QuoteDoesNotMoveFunds(t *testing.T) {
	l, wbtc, usdc := newLocalFixture(t, 0)
	require.NoError(t, wbtc.Mint("user", u(1000)))

	out, err := l.Quote(context.Background(), Request{
		FromToken: "WBTC", ToToken: "USDC", Owner: "user", Amount: u(1000),
	})
	require.NoError(t, err)
	require.Equal(t, u(2000), out)

	require.Equal(t, u(1000), wbtc.BalanceOf("user"))
	require.True(t, usdc.BalanceOf("user").IsZero())
}

func TestLocal_SwapMovesBothLegs(t *testing.T) {
	l, wbtc, usdc := newLocalFixture(t, 0)
	require.NoError(t, wbtc.Mint("user", u(1000)))

	out, err := l.Swap(context.Background(), Request{
		FromToken: "WBTC", ToToken: "USDC", Owner: "user", Amount: u(1000), MinOut: u(2000),
	})
	require.NoError(t, err)
	require.Equal(t, u(2000), out)

	require.True(t, wbtc.BalanceOf("user").IsZero())
	require.Equal(t, u(2000), usdc.BalanceOf("user"))
	require.Equal(t, u(10_001_000), wbtc.BalanceOf("pool"))
	require.Equal(t, u(9_998_000), usdc.BalanceOf("pool"))
}

func TestLocal_FeeReducesOutput(t *testing.T) {
	l, wbtc, _ := newLocalFixture(t, 30) // 30 bps
	require.NoError(t, wbtc.Mint("user", u(10_000)))

	out, err := l.Quote(context.Background(), Request{
		FromToken: "WBTC", ToToken: "USDC", Owner: "user", Amount: u(10_000),
	})
	require.NoError(t, err)
	// 20000 gross minus 0.30% fee.
	require.Equal(t, u(19_940), out)
}

func TestLocal_SlippageFloor(t *testing.T) {
	l, wbtc, usdc := newLocalFixture(t, 0)
	require.NoError(t, wbtc.Mint("user", u(1000)))

	_, err := l.Swap(context.Background(), Request{
		FromToken: "WBTC", ToToken: "USDC", Owner: "user", Amount: u(1000), MinOut: u(2001),
	})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	// Nothing moved.
	require.Equal(t, u(1000), wbtc.BalanceOf("user"))
	require.True(t, usdc.BalanceOf("user").IsZero())
}

func TestLocal_UnsupportedPair(t *testing.T) {
	l, _, _ := newLocalFixture(t, 0)

	_, err := l.Quote(context.Background(), Request{
		FromToken: "USDC", ToToken: "DOGE", Owner: "user", Amount: u(1000),
	})
	require.ErrorIs(t, err, ErrUnsupportedPair)
}

func TestLocal_ZeroOutput(t *testing.T) {
	l, wbtc, _ := newLocalFixture(t, 0)
	require.NoError(t, wbtc.Mint("user", u(1)))

	// 1 USDC minor unit rounds down to 0 wBTC at 1:2.
	_, err := l.Swap(context.Background(), Request{
		FromToken: "USDC", ToToken: "WBTC", Owner: "pool", Amount: u(1),
	})
	require.ErrorIs(t, err, ErrZeroOutput)
}

func TestLocal_InsufficientInputRollsBack(t *testing.T) {
	l, wbtc, usdc := newLocalFixture(t, 0)
	require.NoError(t, wbtc.Mint("user", u(100)))

	_, err := l.Swap(context.Background(), Request{
		FromToken: "WBTC", ToToken: "USDC", Owner: "user", Amount: u(500),
	})
	require.ErrorIs(t, err, asset.ErrInsufficientBalance)
	require.Equal(t, u(100), wbtc.BalanceOf("user"))
	require.True(t, usdc.BalanceOf("user").IsZero())
}
