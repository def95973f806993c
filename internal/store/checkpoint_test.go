package store

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/unboundlabs/unbound/internal/asset"
	"github.com/unboundlabs/unbound/internal/queue"
	"github.com/unboundlabs/unbound/internal/swap"
	"github.com/unboundlabs/unbound/internal/vault"
	"github.com/unboundlabs/unbound/pkg/kv/pebble"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := pebble.New(t.TempDir())
	require.NoError(t, err)
	s := New(db)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSnapshot() vault.Snapshot {
	return vault.Snapshot{
		Owner:    "owner",
		Operator: "operator",
		Guardian: "guardian",
		Paused:   true,
		Params: vault.Params{
			NAVCooldown:     3600,
			MaxNAVChangeBps: 500,
			KeepRatioBps:    5000,
			WithdrawFeeBps:  25,
			FeeRecipient:    "fees",
		},
		Balances: map[asset.Account]*uint256.Int{
			"alice": u(1_000_000),
			"bob":   u(250_000),
			"vault": u(42),
		},
		TotalNAV:     u(1_250_042),
		NAVUpdatedAt: 1_700_000_000,
		Deposits: []queue.DepositRequest{
			{ID: 0, Requester: "alice", Receiver: "alice", Value: u(1_000_000), MinShares: u(0), Timestamp: 100, Processed: true},
			{ID: 1, Requester: "bob", Receiver: "carol", Value: u(250_000), MinShares: u(240_000), Timestamp: 200},
		},
		DepositHead: 1,
		Withdrawals: []queue.WithdrawalRequest{
			{ID: 0, Requester: "alice", Shares: u(100), MinAssets: u(90), SettledValue: u(95), Timestamp: 300, Status: queue.StatusReady},
			{ID: 1, Requester: "bob", Shares: u(50), MinAssets: u(0), SettledValue: u(0), Timestamp: 400, Status: queue.StatusPending},
		},
		WithdrawalHead: 0,
	}
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	snap := sampleSnapshot()

	require.NoError(t, s.SaveCheckpoint(snap))
	got, err := s.LoadCheckpoint()
	require.NoError(t, err)

	require.Equal(t, snap.Owner, got.Owner)
	require.Equal(t, snap.Operator, got.Operator)
	require.Equal(t, snap.Guardian, got.Guardian)
	require.Equal(t, snap.Paused, got.Paused)
	require.Equal(t, snap.Params, got.Params)
	require.Equal(t, snap.Balances, got.Balances)
	require.Equal(t, snap.TotalNAV, got.TotalNAV)
	require.Equal(t, snap.NAVUpdatedAt, got.NAVUpdatedAt)
	require.Equal(t, snap.Deposits, got.Deposits)
	require.Equal(t, snap.DepositHead, got.DepositHead)
	require.Equal(t, snap.Withdrawals, got.Withdrawals)
	require.Equal(t, snap.WithdrawalHead, got.WithdrawalHead)
}

func TestCheckpoint_Empty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadCheckpoint()
	require.ErrorIs(t, err, ErrNoCheckpoint)
}

func TestCheckpoint_OverwriteDropsStaleBalances(t *testing.T) {
	s := newTestStore(t)
	snap := sampleSnapshot()
	require.NoError(t, s.SaveCheckpoint(snap))

	// Bob fully exits; his balance key must not survive the next checkpoint.
	delete(snap.Balances, "bob")
	snap.Balances["alice"] = u(900_000)
	require.NoError(t, s.SaveCheckpoint(snap))

	got, err := s.LoadCheckpoint()
	require.NoError(t, err)
	require.NotContains(t, got.Balances, asset.Account("bob"))
	require.Equal(t, u(900_000), got.Balances["alice"])
}

func TestCheckpoint_QueueGrowth(t *testing.T) {
	s := newTestStore(t)
	snap := sampleSnapshot()
	require.NoError(t, s.SaveCheckpoint(snap))

	snap.Deposits = append(snap.Deposits, queue.DepositRequest{
		ID: 2, Requester: "carol", Receiver: "carol", Value: u(10), MinShares: u(0), Timestamp: 500,
	})
	snap.Deposits[1].Processed = true
	snap.DepositHead = 2
	require.NoError(t, s.SaveCheckpoint(snap))

	got, err := s.LoadCheckpoint()
	require.NoError(t, err)
	require.Len(t, got.Deposits, 3)
	require.True(t, got.Deposits[1].Processed)
	require.Equal(t, uint64(2), got.DepositHead)
}

func TestCheckpoint_RestoresWorkingVault(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveCheckpoint(sampleSnapshot()))

	got, err := s.LoadCheckpoint()
	require.NoError(t, err)

	// The loaded snapshot must satisfy the vault's restore path.
	wbtc := asset.NewToken("WBTC", 6)
	usdc := asset.NewToken("USDC", 6)
	v, err := vault.Restore(vault.Config{
		DepositAsset:    wbtc,
		SettlementAsset: usdc,
		Swapper:         nopSwapper{},
	}, got)
	require.NoError(t, err)
	require.Equal(t, u(1_250_042), v.TotalSupply())
	require.Equal(t, u(1_250_042), v.TotalNAV())
	require.Equal(t, u(1_000_000), v.BalanceOf("alice"))
	require.True(t, v.Paused())
}

type nopSwapper struct{}

func (nopSwapper) Quote(_ context.Context, req swap.Request) (*uint256.Int, error) {
	return req.Amount.Clone(), nil
}

func (nopSwapper) Swap(_ context.Context, req swap.Request) (*uint256.Int, error) {
	return req.Amount.Clone(), nil
}

func TestCheckpoint_ClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.SaveCheckpoint(sampleSnapshot()), ErrStoreClosed)
	_, err := s.LoadCheckpoint()
	require.ErrorIs(t, err, ErrStoreClosed)
}

func TestDecodeMeta_Corrupt(t *testing.T) {
	_, err := decodeMeta([]byte{metaVersion, 0xff})
	require.ErrorIs(t, err, ErrCorruptRecord)

	_, err = decodeMeta([]byte{99})
	require.ErrorIs(t, err, ErrCorruptRecord)
}
