package store

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/holiman/uint256"

	"github.com/unboundlabs/unbound/internal/asset"
	"github.com/unboundlabs/unbound/internal/queue"
	"github.com/unboundlabs/unbound/internal/vault"
	"github.com/unboundlabs/unbound/pkg/kv"
	"github.com/unboundlabs/unbound/pkg/kv/pebble"
)

var (
	ErrNoCheckpoint = errors.New("store: no checkpoint present")
	ErrStoreClosed  = errors.New("store: closed")
)

const metaVersion byte = 1

// Store manages vault state persistence over a key-value store.
type Store struct {
	db     kv.Store
	closed atomic.Bool
}

func New(db kv.Store) *Store {
	return &Store{db: db}
}

// SaveCheckpoint writes a full vault snapshot atomically. Share balance keys
// that dropped out of the snapshot are removed in the same batch, so a
// drained account does not resurrect on restore.
func (s *Store) SaveCheckpoint(snap vault.Snapshot) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Put(makeKey(prefixMeta, nil), encodeMeta(snap)); err != nil {
		return fmt.Errorf("store meta: %w", err)
	}

	stale, err := s.staleBalanceKeys(snap.Balances)
	if err != nil {
		return err
	}
	for _, key := range stale {
		if err := batch.Delete(key); err != nil {
			return fmt.Errorf("delete stale balance: %w", err)
		}
	}
	for acct, bal := range snap.Balances {
		if err := batch.Put(makeKey(prefixShareBalance, []byte(acct)), appendU256(nil, bal)); err != nil {
			return fmt.Errorf("store balance: %w", err)
		}
	}

	for _, req := range snap.Deposits {
		if err := batch.Put(makeKey(prefixDeposit, uint64Key(req.ID)), encodeDeposit(req)); err != nil {
			return fmt.Errorf("store deposit %d: %w", req.ID, err)
		}
	}
	for _, req := range snap.Withdrawals {
		if err := batch.Put(makeKey(prefixWithdrawal, uint64Key(req.ID)), encodeWithdrawal(req)); err != nil {
			return fmt.Errorf("store withdrawal %d: %w", req.ID, err)
		}
	}

	if err := batch.Put(makeKey(prefixCursor, []byte{cursorDeposits}), appendUint64(nil, snap.DepositHead)); err != nil {
		return fmt.Errorf("store deposit cursor: %w", err)
	}
	if err := batch.Put(makeKey(prefixCursor, []byte{cursorWithdrawals}), appendUint64(nil, snap.WithdrawalHead)); err != nil {
		return fmt.Errorf("store withdrawal cursor: %w", err)
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads the latest snapshot. Returns ErrNoCheckpoint when the
// store has never been written.
func (s *Store) LoadCheckpoint() (vault.Snapshot, error) {
	if s.closed.Load() {
		return vault.Snapshot{}, ErrStoreClosed
	}

	metaBytes, err := s.db.Get(makeKey(prefixMeta, nil))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return vault.Snapshot{}, ErrNoCheckpoint
		}
		return vault.Snapshot{}, fmt.Errorf("get meta: %w", err)
	}
	snap, err := decodeMeta(metaBytes)
	if err != nil {
		return vault.Snapshot{}, err
	}

	snap.Balances = make(map[asset.Account]*uint256.Int)
	if err := s.loadBalances(&snap); err != nil {
		return vault.Snapshot{}, err
	}
	if snap.Deposits, err = s.loadDeposits(); err != nil {
		return vault.Snapshot{}, err
	}
	if snap.Withdrawals, err = s.loadWithdrawals(); err != nil {
		return vault.Snapshot{}, err
	}
	if snap.DepositHead, err = s.loadCursor(cursorDeposits); err != nil {
		return vault.Snapshot{}, err
	}
	if snap.WithdrawalHead, err = s.loadCursor(cursorWithdrawals); err != nil {
		return vault.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) staleBalanceKeys(current map[asset.Account]*uint256.Int) ([][]byte, error) {
	iter, err := s.db.NewIterator([]byte{prefixShareBalance}, []byte{prefixShareBalance + 1})
	if err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	defer iter.Close()

	var stale [][]byte
	for iter.Next() {
		key := iter.Key()
		acct := asset.Account(key[1:])
		if _, ok := current[acct]; !ok {
			cp := make([]byte, len(key))
			copy(cp, key)
			stale = append(stale, cp)
		}
	}
	return stale, nil
}

func (s *Store) loadBalances(snap *vault.Snapshot) error {
	iter, err := s.db.NewIterator([]byte{prefixShareBalance}, []byte{prefixShareBalance + 1})
	if err != nil {
		return fmt.Errorf("iterate balances: %w", err)
	}
	defer iter.Close()

	for iter.Next() {
		value, err := iter.Value()
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		r := &reader{buf: value}
		bal := r.u256()
		if err := r.done(); err != nil {
			return fmt.Errorf("balance %q: %w", iter.Key()[1:], err)
		}
		snap.Balances[asset.Account(iter.Key()[1:])] = bal
	}
	return nil
}

func (s *Store) loadDeposits() ([]queue.DepositRequest, error) {
	iter, err := s.db.NewIterator([]byte{prefixDeposit}, []byte{prefixDeposit + 1})
	if err != nil {
		return nil, fmt.Errorf("iterate deposits: %w", err)
	}
	defer iter.Close()

	// Big-endian id keys iterate in id order, so the slice comes back dense.
	var out []queue.DepositRequest
	for iter.Next() {
		value, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("read deposit: %w", err)
		}
		req, err := decodeDeposit(value)
		if err != nil {
			return nil, err
		}
		r := &reader{buf: iter.Key()[1:]}
		req.ID = r.uint64()
		out = append(out, req)
	}
	return out, nil
}

func (s *Store) loadWithdrawals() ([]queue.WithdrawalRequest, error) {
	iter, err := s.db.NewIterator([]byte{prefixWithdrawal}, []byte{prefixWithdrawal + 1})
	if err != nil {
		return nil, fmt.Errorf("iterate withdrawals: %w", err)
	}
	defer iter.Close()

	var out []queue.WithdrawalRequest
	for iter.Next() {
		value, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("read withdrawal: %w", err)
		}
		req, err := decodeWithdrawal(value)
		if err != nil {
			return nil, err
		}
		r := &reader{buf: iter.Key()[1:]}
		req.ID = r.uint64()
		out = append(out, req)
	}
	return out, nil
}

func (s *Store) loadCursor(which byte) (uint64, error) {
	value, err := s.db.Get(makeKey(prefixCursor, []byte{which}))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get cursor %d: %w", which, err)
	}
	r := &reader{buf: value}
	head := r.uint64()
	if err := r.done(); err != nil {
		return 0, err
	}
	return head, nil
}

// Close closes the store and the underlying database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func encodeMeta(snap vault.Snapshot) []byte {
	b := []byte{metaVersion}
	b = appendString(b, string(snap.Owner))
	b = appendString(b, string(snap.Operator))
	b = appendString(b, string(snap.Guardian))
	b = appendBool(b, snap.Paused)
	b = appendUint64(b, snap.Params.NAVCooldown)
	b = appendUint64(b, snap.Params.MaxNAVChangeBps)
	b = appendUint64(b, snap.Params.KeepRatioBps)
	b = appendUint64(b, snap.Params.WithdrawFeeBps)
	b = appendString(b, string(snap.Params.FeeRecipient))
	b = appendU256(b, snap.TotalNAV)
	b = appendUint64(b, snap.NAVUpdatedAt)
	return b
}

func decodeMeta(buf []byte) (vault.Snapshot, error) {
	r := &reader{buf: buf}
	if v := r.byte(); v != metaVersion {
		return vault.Snapshot{}, fmt.Errorf("meta version %d: %w", v, ErrCorruptRecord)
	}
	snap := vault.Snapshot{
		Owner:    asset.Account(r.str()),
		Operator: asset.Account(r.str()),
		Guardian: asset.Account(r.str()),
		Paused:   r.bool(),
	}
	snap.Params.NAVCooldown = r.uint64()
	snap.Params.MaxNAVChangeBps = r.uint64()
	snap.Params.KeepRatioBps = r.uint64()
	snap.Params.WithdrawFeeBps = r.uint64()
	snap.Params.FeeRecipient = asset.Account(r.str())
	snap.TotalNAV = r.u256()
	snap.NAVUpdatedAt = r.uint64()
	if err := r.done(); err != nil {
		return vault.Snapshot{}, fmt.Errorf("meta: %w", err)
	}
	return snap, nil
}

func encodeDeposit(req queue.DepositRequest) []byte {
	var b []byte
	b = appendString(b, string(req.Requester))
	b = appendString(b, string(req.Receiver))
	b = appendU256(b, req.Value)
	b = appendU256(b, req.MinShares)
	b = appendUint64(b, req.Timestamp)
	b = appendBool(b, req.Processed)
	return b
}

func decodeDeposit(buf []byte) (queue.DepositRequest, error) {
	r := &reader{buf: buf}
	req := queue.DepositRequest{
		Requester: asset.Account(r.str()),
		Receiver:  asset.Account(r.str()),
		Value:     r.u256(),
		MinShares: r.u256(),
		Timestamp: r.uint64(),
		Processed: r.bool(),
	}
	if err := r.done(); err != nil {
		return queue.DepositRequest{}, fmt.Errorf("deposit: %w", err)
	}
	return req, nil
}

func encodeWithdrawal(req queue.WithdrawalRequest) []byte {
	var b []byte
	b = appendString(b, string(req.Requester))
	b = appendU256(b, req.Shares)
	b = appendU256(b, req.MinAssets)
	b = appendU256(b, req.SettledValue)
	b = appendUint64(b, req.Timestamp)
	b = append(b, byte(req.Status))
	return b
}

func decodeWithdrawal(buf []byte) (queue.WithdrawalRequest, error) {
	r := &reader{buf: buf}
	req := queue.WithdrawalRequest{
		Requester:    asset.Account(r.str()),
		Shares:       r.u256(),
		MinAssets:    r.u256(),
		SettledValue: r.u256(),
		Timestamp:    r.uint64(),
		Status:       queue.Status(r.byte()),
	}
	if err := r.done(); err != nil {
		return queue.WithdrawalRequest{}, fmt.Errorf("withdrawal: %w", err)
	}
	return req, nil
}
