package pebble

import (
	"github.com/cockroachdb/pebble"
)

type Iterator struct {
	iter       *pebble.Iterator
	positioned bool
}

func (it *Iterator) Next() bool {
	// The first call positions the iterator at the start of the range. Using
	// Valid here instead would rewind an exhausted iterator.
	if !it.positioned {
		it.positioned = true
		return it.iter.First()
	}
	return it.iter.Next()
}

func (it *Iterator) Key() []byte {
	key := it.iter.Key()
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.iter.Valid() {
		return nil, ErrIterInvalid
	}

	val, err := it.iter.ValueAndErr()
	if err != nil {
		return nil, err
	}

	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *Iterator) Valid() bool {
	return it.iter.Valid()
}

func (it *Iterator) Close() error {
	return it.iter.Close()
}
