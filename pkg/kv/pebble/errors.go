package pebble

import "errors"

var (
	ErrClosed      = errors.New("kv: store is closed")
	ErrNotFound    = errors.New("kv: key not found")
	ErrBatchDone   = errors.New("kv: batch already committed or closed")
	ErrIterInvalid = errors.New("kv: iterator is not positioned on a valid entry")
)
