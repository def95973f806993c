package store

import (
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"
)

// ErrCorruptRecord is returned when a stored record does not decode cleanly.
var ErrCorruptRecord = errors.New("store: corrupt record")

func appendUint64(b []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(b, v)
}

func appendU256(b []byte, v *uint256.Int) []byte {
	if v == nil {
		v = new(uint256.Int)
	}
	buf := v.Bytes32()
	return append(b, buf[:]...)
}

func appendString(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

func uint64Key(id uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, id)
}

// reader decodes the layouts above with a sticky error, so call sites can
// decode a whole record and check once.
type reader struct {
	buf []byte
	err error
}

func (r *reader) fail() {
	if r.err == nil {
		r.err = ErrCorruptRecord
	}
}

func (r *reader) uint64() uint64 {
	if r.err != nil || len(r.buf) < 8 {
		r.fail()
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf)
	r.buf = r.buf[8:]
	return v
}

func (r *reader) u256() *uint256.Int {
	if r.err != nil || len(r.buf) < 32 {
		r.fail()
		return new(uint256.Int)
	}
	v := new(uint256.Int).SetBytes(r.buf[:32])
	r.buf = r.buf[32:]
	return v
}

func (r *reader) str() string {
	if r.err != nil {
		return ""
	}
	n, read := binary.Uvarint(r.buf)
	if read <= 0 || uint64(len(r.buf)-read) < n {
		r.fail()
		return ""
	}
	s := string(r.buf[read : read+int(n)])
	r.buf = r.buf[read+int(n):]
	return s
}

func (r *reader) byte() byte {
	if r.err != nil || len(r.buf) < 1 {
		r.fail()
		return 0
	}
	v := r.buf[0]
	r.buf = r.buf[1:]
	return v
}

func (r *reader) bool() bool {
	return r.byte() == 1
}

// done reports the sticky error, failing if trailing bytes remain.
func (r *reader) done() error {
	if r.err == nil && len(r.buf) != 0 {
		r.fail()
	}
	return r.err
}
