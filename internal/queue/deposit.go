// Package queue holds the vault's two request logs. Both are append-only
// arenas indexed by dense, monotonically increasing ids starting at 0, with a
// separate head cursor; entries are never removed, so the full request
// history stays auditable.
package queue

import (
	"github.com/holiman/uint256"

	"github.com/unboundlabs/unbound/internal/asset"
)

// DepositRequest is a deposit intent awaiting settlement. Value is the total
// deposit value in settlement-asset units (kept portion plus converted
// portion). The only mutation a request ever sees is Processed flipping to
// true.
type DepositRequest struct {
	ID        uint64
	Requester asset.Account
	Receiver  asset.Account
	Value     *uint256.Int
	MinShares *uint256.Int
	Timestamp uint64
	Processed bool
}

func (r DepositRequest) clone() DepositRequest {
	r.Value = r.Value.Clone()
	r.MinShares = r.MinShares.Clone()
	return r
}

// DepositQueue is not internally synchronized; the vault controller owns it
// and serializes all access.
type DepositQueue struct {
	entries []DepositRequest
	head    uint64
}

func NewDepositQueue() *DepositQueue {
	return &DepositQueue{}
}

// Enqueue assigns the next id and appends the request. The passed request's
// ID field is overwritten.
func (q *DepositQueue) Enqueue(req DepositRequest) uint64 {
	req.ID = uint64(len(q.entries))
	req.Processed = false
	q.entries = append(q.entries, req.clone())
	return req.ID
}

// Get returns a copy of the request with the given id.
func (q *DepositQueue) Get(id uint64) (DepositRequest, error) {
	if id >= uint64(len(q.entries)) {
		return DepositRequest{}, ErrNotFound
	}
	return q.entries[id].clone(), nil
}

// Scan returns copies of up to max entries starting at from, processed or
// not. Used by batch processing and by the operator's polling reads.
func (q *DepositQueue) Scan(from uint64, max int) []DepositRequest {
	tail := uint64(len(q.entries))
	if from >= tail || max <= 0 {
		return nil
	}
	out := make([]DepositRequest, 0, max)
	for id := from; id < tail && len(out) < max; id++ {
		out = append(out, q.entries[id].clone())
	}
	return out
}

// MarkProcessed flips the processed flag exactly once.
func (q *DepositQueue) MarkProcessed(id uint64) error {
	if id >= uint64(len(q.entries)) {
		return ErrNotFound
	}
	if q.entries[id].Processed {
		return ErrAlreadyProcessed
	}
	q.entries[id].Processed = true
	return nil
}

// SetHead advances the head cursor. The head may skip over entries that were
// already processed; it never moves backwards or past the tail.
func (q *DepositQueue) SetHead(head uint64) {
	if head > uint64(len(q.entries)) {
		head = uint64(len(q.entries))
	}
	if head > q.head {
		q.head = head
	}
}

func (q *DepositQueue) Head() uint64 { return q.head }

func (q *DepositQueue) Tail() uint64 { return uint64(len(q.entries)) }

// PendingCount is the number of unprocessed entries at or after head.
func (q *DepositQueue) PendingCount() uint64 {
	var n uint64
	for id := q.head; id < uint64(len(q.entries)); id++ {
		if !q.entries[id].Processed {
			n++
		}
	}
	return n
}

// RestoreDepositQueue rebuilds the queue from persisted entries. Entries
// must be dense and ordered by id from 0.
func RestoreDepositQueue(entries []DepositRequest, head uint64) *DepositQueue {
	q := &DepositQueue{entries: make([]DepositRequest, 0, len(entries))}
	for _, e := range entries {
		q.entries = append(q.entries, e.clone())
	}
	q.SetHead(head)
	return q
}
