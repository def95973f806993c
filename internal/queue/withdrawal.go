package queue

import (
	"github.com/holiman/uint256"

	"github.com/unboundlabs/unbound/internal/asset"
)

// Status is the withdrawal request lifecycle state.
//
//	PENDING    -> PROCESSING | READY | CANCELLED
//	PROCESSING -> READY
//	READY      -> COMPLETED
//
// COMPLETED and CANCELLED are terminal. Exactly one of them is reached by
// any request that leaves PENDING.
type Status uint8

const (
	StatusPending Status = iota
	StatusProcessing
	StatusReady
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusReady:
		return "ready"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// WithdrawalRequest records an exit intent. Shares are escrowed by the vault
// for the whole PENDING/PROCESSING/READY window. SettledValue is the
// settlement-asset amount the operator realized externally for this request;
// it is zero until the request is marked ready.
type WithdrawalRequest struct {
	ID           uint64
	Requester    asset.Account
	Shares       *uint256.Int
	MinAssets    *uint256.Int
	SettledValue *uint256.Int
	Timestamp    uint64
	Status       Status
}

func (r WithdrawalRequest) clone() WithdrawalRequest {
	r.Shares = r.Shares.Clone()
	r.MinAssets = r.MinAssets.Clone()
	r.SettledValue = r.SettledValue.Clone()
	return r
}

// WithdrawalQueue is not internally synchronized; the vault controller owns
// it and serializes all access.
type WithdrawalQueue struct {
	entries []WithdrawalRequest
	head    uint64
	byUser  map[asset.Account][]uint64
}

func NewWithdrawalQueue() *WithdrawalQueue {
	return &WithdrawalQueue{byUser: make(map[asset.Account][]uint64)}
}

// Enqueue appends a new PENDING request and returns its id.
func (q *WithdrawalQueue) Enqueue(req WithdrawalRequest) uint64 {
	req.ID = uint64(len(q.entries))
	req.Status = StatusPending
	if req.SettledValue == nil {
		req.SettledValue = new(uint256.Int)
	}
	q.entries = append(q.entries, req.clone())
	q.byUser[req.Requester] = append(q.byUser[req.Requester], req.ID)
	return req.ID
}

// Get returns a copy of the request with the given id.
func (q *WithdrawalQueue) Get(id uint64) (WithdrawalRequest, error) {
	if id >= uint64(len(q.entries)) {
		return WithdrawalRequest{}, ErrNotFound
	}
	return q.entries[id].clone(), nil
}

// ByUser returns the ids of all requests ever made by the account, oldest
// first.
func (q *WithdrawalQueue) ByUser(account asset.Account) []uint64 {
	ids := q.byUser[account]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// Scan returns copies of up to max entries starting at from.
func (q *WithdrawalQueue) Scan(from uint64, max int) []WithdrawalRequest {
	tail := uint64(len(q.entries))
	if from >= tail || max <= 0 {
		return nil
	}
	out := make([]WithdrawalRequest, 0, max)
	for id := from; id < tail && len(out) < max; id++ {
		out = append(out, q.entries[id].clone())
	}
	return out
}

// MarkProcessing moves PENDING -> PROCESSING.
func (q *WithdrawalQueue) MarkProcessing(id uint64) error {
	return q.transition(id, StatusProcessing, StatusPending)
}

// MarkReady moves PENDING or PROCESSING -> READY and records the settled
// value realized for the request.
func (q *WithdrawalQueue) MarkReady(id uint64, settled *uint256.Int) error {
	if err := q.transition(id, StatusReady, StatusPending, StatusProcessing); err != nil {
		return err
	}
	q.entries[id].SettledValue = settled.Clone()
	return nil
}

// Complete moves READY -> COMPLETED.
func (q *WithdrawalQueue) Complete(id uint64) error {
	return q.transition(id, StatusCompleted, StatusReady)
}

// Cancel moves PENDING -> CANCELLED.
func (q *WithdrawalQueue) Cancel(id uint64) error {
	return q.transition(id, StatusCancelled, StatusPending)
}

func (q *WithdrawalQueue) transition(id uint64, to Status, from ...Status) error {
	if id >= uint64(len(q.entries)) {
		return ErrNotFound
	}
	cur := q.entries[id].Status
	for _, s := range from {
		if cur == s {
			q.entries[id].Status = to
			q.advanceHead()
			return nil
		}
	}
	return ErrWrongStatus
}

// advanceHead walks the head cursor past terminal entries so the depth
// reported to the operator stays approximately tail - head.
func (q *WithdrawalQueue) advanceHead() {
	for q.head < uint64(len(q.entries)) && q.entries[q.head].Status.Terminal() {
		q.head++
	}
}

func (q *WithdrawalQueue) Head() uint64 { return q.head }

func (q *WithdrawalQueue) Tail() uint64 { return uint64(len(q.entries)) }

// PendingCount is the number of non-terminal requests at or after head.
func (q *WithdrawalQueue) PendingCount() uint64 {
	var n uint64
	for id := q.head; id < uint64(len(q.entries)); id++ {
		if !q.entries[id].Status.Terminal() {
			n++
		}
	}
	return n
}

// RestoreWithdrawalQueue rebuilds the queue from persisted entries. Entries
// must be dense and ordered by id from 0.
func RestoreWithdrawalQueue(entries []WithdrawalRequest, head uint64) *WithdrawalQueue {
	q := NewWithdrawalQueue()
	for _, e := range entries {
		q.entries = append(q.entries, e.clone())
		q.byUser[e.Requester] = append(q.byUser[e.Requester], e.ID)
	}
	q.head = head
	q.advanceHead()
	return q
}
