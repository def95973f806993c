package queue

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/unboundlabs/unbound/internal/asset"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func depositReq(requester asset.Account, value uint64) DepositRequest {
	return DepositRequest{
		Requester: requester,
		Receiver:  requester,
		Value:     u(value),
		MinShares: u(0),
		Timestamp: 1000,
	}
}

func TestDepositQueue_IDsAreDense(t *testing.T) {
	q := NewDepositQueue()
	for i := uint64(0); i < 5; i++ {
		require.Equal(t, i, q.Enqueue(depositReq("a", 100)))
	}
	require.Equal(t, uint64(0), q.Head())
	require.Equal(t, uint64(5), q.Tail())
	require.Equal(t, uint64(5), q.PendingCount())
}

func TestDepositQueue_GetUnknown(t *testing.T) {
	q := NewDepositQueue()
	_, err := q.Get(0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDepositQueue_GetReturnsCopy(t *testing.T) {
	q := NewDepositQueue()
	id := q.Enqueue(depositReq("a", 100))

	got, err := q.Get(id)
	require.NoError(t, err)
	got.Value.SetUint64(999)

	again, err := q.Get(id)
	require.NoError(t, err)
	require.Equal(t, u(100), again.Value)
}

func TestDepositQueue_MarkProcessedOnce(t *testing.T) {
	q := NewDepositQueue()
	id := q.Enqueue(depositReq("a", 100))

	require.NoError(t, q.MarkProcessed(id))
	require.ErrorIs(t, q.MarkProcessed(id), ErrAlreadyProcessed)
	require.ErrorIs(t, q.MarkProcessed(99), ErrNotFound)

	got, err := q.Get(id)
	require.NoError(t, err)
	require.True(t, got.Processed)
}

func TestDepositQueue_ScanWindow(t *testing.T) {
	q := NewDepositQueue()
	for i := 0; i < 10; i++ {
		q.Enqueue(depositReq("a", uint64(i)))
	}

	got := q.Scan(3, 4)
	require.Len(t, got, 4)
	require.Equal(t, uint64(3), got[0].ID)
	require.Equal(t, uint64(6), got[3].ID)

	// Past the tail and empty windows.
	require.Nil(t, q.Scan(10, 4))
	require.Nil(t, q.Scan(0, 0))

	// Clamped at the tail.
	got = q.Scan(8, 100)
	require.Len(t, got, 2)
}

func TestDepositQueue_HeadMonotonic(t *testing.T) {
	q := NewDepositQueue()
	for i := 0; i < 5; i++ {
		q.Enqueue(depositReq("a", 100))
	}

	q.SetHead(3)
	require.Equal(t, uint64(3), q.Head())

	// Never backwards.
	q.SetHead(1)
	require.Equal(t, uint64(3), q.Head())

	// Never past the tail.
	q.SetHead(100)
	require.Equal(t, uint64(5), q.Head())
	require.Equal(t, uint64(0), q.PendingCount())
}

func TestDepositQueue_PendingSkipsProcessed(t *testing.T) {
	q := NewDepositQueue()
	for i := 0; i < 4; i++ {
		q.Enqueue(depositReq("a", 100))
	}
	require.NoError(t, q.MarkProcessed(1))
	require.Equal(t, uint64(3), q.PendingCount())

	q.SetHead(2)
	require.Equal(t, uint64(2), q.PendingCount())
}

func TestRestoreDepositQueue(t *testing.T) {
	q := NewDepositQueue()
	for i := 0; i < 3; i++ {
		q.Enqueue(depositReq("a", uint64(100+i)))
	}
	require.NoError(t, q.MarkProcessed(0))
	q.SetHead(1)

	restored := RestoreDepositQueue(q.Scan(0, int(q.Tail())), q.Head())
	require.Equal(t, q.Head(), restored.Head())
	require.Equal(t, q.Tail(), restored.Tail())
	require.Equal(t, q.PendingCount(), restored.PendingCount())

	got, err := restored.Get(0)
	require.NoError(t, err)
	require.True(t, got.Processed)
	got, err = restored.Get(2)
	require.NoError(t, err)
	require.Equal(t, u(102), got.Value)
}
