package store

import (
	"errors"
	"fmt"

	"github.com/unboundlabs/unbound/internal/asset"
	"github.com/unboundlabs/unbound/internal/vault"
	"github.com/unboundlabs/unbound/pkg/kv/pebble"
)

// JournalEntry is a persisted vault event with its journal sequence number.
type JournalEntry struct {
	Seq   uint64
	Event vault.Event
}

// AppendEvent adds an event to the journal under the next sequence number.
// Not safe for concurrent appenders; the node funnels all events through the
// vault's synchronous sink.
func (s *Store) AppendEvent(e vault.Event) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	seq, err := s.nextEventSeq()
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Put(makeKey(prefixEvent, uint64Key(seq)), encodeEvent(e)); err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	if err := batch.Put(makeKey(prefixEventSeq, nil), appendUint64(nil, seq+1)); err != nil {
		return fmt.Errorf("store event seq: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// Events returns up to max journal entries with sequence >= from, in order.
func (s *Store) Events(from uint64, max int) ([]JournalEntry, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if max <= 0 {
		return nil, nil
	}

	iter, err := s.db.NewIterator(makeKey(prefixEvent, uint64Key(from)), []byte{prefixEvent + 1})
	if err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	defer iter.Close()

	var out []JournalEntry
	for iter.Next() && len(out) < max {
		value, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		e, err := decodeEvent(value)
		if err != nil {
			return nil, err
		}
		r := &reader{buf: iter.Key()[1:]}
		out = append(out, JournalEntry{Seq: r.uint64(), Event: e})
	}
	return out, nil
}

// EventCount is the next sequence number, i.e. the number of events appended.
func (s *Store) EventCount() (uint64, error) {
	if s.closed.Load() {
		return 0, ErrStoreClosed
	}
	return s.nextEventSeq()
}

func (s *Store) nextEventSeq() (uint64, error) {
	value, err := s.db.Get(makeKey(prefixEventSeq, nil))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get event seq: %w", err)
	}
	r := &reader{buf: value}
	seq := r.uint64()
	if err := r.done(); err != nil {
		return 0, err
	}
	return seq, nil
}

// Nil amount fields are encoded through a presence bitmask.
const (
	eventHasAmount byte = 1 << iota
	eventHasShares
	eventHasOldNAV
	eventHasNewNAV
)

func encodeEvent(e vault.Event) []byte {
	var mask byte
	if e.Amount != nil {
		mask |= eventHasAmount
	}
	if e.Shares != nil {
		mask |= eventHasShares
	}
	if e.OldNAV != nil {
		mask |= eventHasOldNAV
	}
	if e.NewNAV != nil {
		mask |= eventHasNewNAV
	}

	b := []byte{byte(e.Kind), mask}
	b = appendUint64(b, e.RequestID)
	b = appendString(b, string(e.Account))
	if e.Amount != nil {
		b = appendU256(b, e.Amount)
	}
	if e.Shares != nil {
		b = appendU256(b, e.Shares)
	}
	if e.OldNAV != nil {
		b = appendU256(b, e.OldNAV)
	}
	if e.NewNAV != nil {
		b = appendU256(b, e.NewNAV)
	}
	b = appendUint64(b, e.Timestamp)
	return b
}

func decodeEvent(buf []byte) (vault.Event, error) {
	r := &reader{buf: buf}
	e := vault.Event{Kind: vault.EventKind(r.byte())}
	mask := r.byte()
	e.RequestID = r.uint64()
	e.Account = asset.Account(r.str())
	if mask&eventHasAmount != 0 {
		e.Amount = r.u256()
	}
	if mask&eventHasShares != 0 {
		e.Shares = r.u256()
	}
	if mask&eventHasOldNAV != 0 {
		e.OldNAV = r.u256()
	}
	if mask&eventHasNewNAV != 0 {
		e.NewNAV = r.u256()
	}
	e.Timestamp = r.uint64()
	if err := r.done(); err != nil {
		return vault.Event{}, fmt.Errorf("event: %w", err)
	}
	return e, nil
}
