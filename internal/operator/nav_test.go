package operator

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestReportNAV_EquityPlusReserve(t *testing.T) {
	env := newOpEnv(t)
	ctx := context.Background()
	env.deposit(t, 1_000_000)
	require.NoError(t, env.svc.processDeposits(ctx))
	require.Equal(t, u(1_000_000), env.vault.TotalNAV())

	// Venue made money: equity 0.53, reserve 0.5 wBTC quoted 1:1.
	env.venue.balance.Equity = dec("0.53")
	require.NoError(t, env.svc.reportNAV(ctx))

	require.Equal(t, u(1_030_000), env.vault.TotalNAV())
}

func TestReportNAV_ClampedToChangeCap(t *testing.T) {
	env := newOpEnv(t)
	ctx := context.Background()
	env.deposit(t, 1_000_000)
	require.NoError(t, env.svc.processDeposits(ctx))

	// Equity spiked far past the 500 bps cap; the report lands at the cap
	// instead of being rejected.
	env.venue.balance.Equity = dec("2.0")
	require.NoError(t, env.svc.reportNAV(ctx))
	require.Equal(t, u(1_050_000), env.vault.TotalNAV())
}

func TestReportNAV_SkipsInsideCooldown(t *testing.T) {
	env := newOpEnv(t)
	ctx := context.Background()
	env.deposit(t, 1_000_000)
	require.NoError(t, env.svc.processDeposits(ctx))

	env.venue.balance.Equity = dec("0.51")
	require.NoError(t, env.svc.reportNAV(ctx))
	nav := env.vault.TotalNAV()
	calls := env.venue.balanceCalls

	// Second report lands inside the cooldown window and is skipped without
	// touching the venue.
	require.NoError(t, env.svc.reportNAV(ctx))
	require.Equal(t, nav, env.vault.TotalNAV())
	require.Equal(t, calls, env.venue.balanceCalls)
}

func TestClampNAV(t *testing.T) {
	tests := []struct {
		name    string
		current uint64
		target  uint64
		want    uint64
	}{
		{"inside cap", 1_000_000, 1_030_000, 1_030_000},
		{"up clamped", 1_000_000, 2_000_000, 1_050_000},
		{"down clamped", 1_000_000, 100_000, 950_000},
		{"unchanged", 1_000_000, 1_000_000, 1_000_000},
		{"bootstrap passes through", 0, 5_000_000, 5_000_000},
		{"drain passes through", 1_000_000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampNAV(uint256.NewInt(tt.current), uint256.NewInt(tt.target), 500)
			require.Equal(t, uint256.NewInt(tt.want), got)
		})
	}
}

func TestToMinorUnits(t *testing.T) {
	v, err := toMinorUnits(dec("1.2345678"), 6)
	require.NoError(t, err)
	require.Equal(t, u(1_234_567), v) // floored

	v, err = toMinorUnits(dec("0"), 6)
	require.NoError(t, err)
	require.True(t, v.IsZero())

	_, err = toMinorUnits(dec("-1"), 6)
	require.Error(t, err)

	require.True(t, toDecimal(u(1_500_000), 6).Equal(dec("1.5")))
}
