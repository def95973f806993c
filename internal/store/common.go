// Package store persists the vault's durable state in a key-value store:
// periodic full checkpoints of the vault snapshot, and an append-only event
// journal. Records use a fixed binary layout; keys are a one-byte prefix
// followed by the record identifier.
package store

// Prefix constants for all record types.
const (
	prefixMeta byte = iota + 1
	prefixShareBalance
	prefixDeposit
	prefixWithdrawal
	prefixCursor
	prefixEvent
	prefixEventSeq
)

const (
	cursorDeposits    byte = 1
	cursorWithdrawals byte = 2
)

// PrefixToString converts a prefix byte to a string.
func PrefixToString(p byte) string {
	switch p {
	case prefixMeta:
		return "meta"
	case prefixShareBalance:
		return "shareBalance"
	case prefixDeposit:
		return "deposit"
	case prefixWithdrawal:
		return "withdrawal"
	case prefixCursor:
		return "cursor"
	case prefixEvent:
		return "event"
	case prefixEventSeq:
		return "eventSeq"
	default:
		return "unknown"
	}
}

// makeKey creates a key from a prefix and an identifier.
func makeKey(prefix byte, id []byte) []byte {
	key := make([]byte, 1+len(id))
	key[0] = prefix
	copy(key[1:], id)
	return key
}
