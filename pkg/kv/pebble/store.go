package pebble

import (
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/unboundlabs/unbound/pkg/kv"
)

// Store is a pebble-backed kv.Store. All writes are synced; the vault's
// durable state is small and write rates are low, so durability wins over
// throughput here.
type Store struct {
	db     *pebble.DB
	closed atomic.Bool
}

func New(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(32 * 1024 * 1024),
		MemTableSize: 16 * 1024 * 1024,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	value, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (s *Store) Has(key []byte) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}

	_, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func (s *Store) Put(key, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Set(key, value, pebble.Sync)
}

func (s *Store) Delete(key []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Delete(key, pebble.Sync)
}

func (s *Store) NewBatch() kv.Batch {
	return &Batch{batch: s.db.NewBatch()}
}

func (s *Store) NewIterator(start, end []byte) (kv.Iterator, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, err
	}
	return &Iterator{iter: iter}, nil
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
