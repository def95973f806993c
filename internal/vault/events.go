package vault

import (
	"github.com/holiman/uint256"

	"github.com/unboundlabs/unbound/internal/asset"
)

type EventKind uint8

const (
	EventDepositQueued EventKind = iota
	EventDepositProcessed
	EventWithdrawalRequested
	EventWithdrawalProcessing
	EventWithdrawalReady
	EventWithdrawalCompleted
	EventWithdrawalCancelled
	EventNAVUpdated
	EventPaused
	EventUnpaused
)

func (k EventKind) String() string {
	switch k {
	case EventDepositQueued:
		return "deposit_queued"
	case EventDepositProcessed:
		return "deposit_processed"
	case EventWithdrawalRequested:
		return "withdrawal_requested"
	case EventWithdrawalProcessing:
		return "withdrawal_processing"
	case EventWithdrawalReady:
		return "withdrawal_ready"
	case EventWithdrawalCompleted:
		return "withdrawal_completed"
	case EventWithdrawalCancelled:
		return "withdrawal_cancelled"
	case EventNAVUpdated:
		return "nav_updated"
	case EventPaused:
		return "paused"
	case EventUnpaused:
		return "unpaused"
	default:
		return "unknown"
	}
}

// Event is a notification for external observers. Amount fields are nil when
// not applicable to the kind.
type Event struct {
	Kind      EventKind
	RequestID uint64
	Account   asset.Account
	Amount    *uint256.Int // asset value in settlement units, payout, etc.
	Shares    *uint256.Int
	OldNAV    *uint256.Int
	NewNAV    *uint256.Int
	Timestamp uint64
}

// EventSink receives vault events synchronously, while the vault lock is
// held. Sinks must not call back into the vault.
type EventSink func(Event)
