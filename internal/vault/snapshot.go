package vault

import (
	"github.com/holiman/uint256"

	"github.com/unboundlabs/unbound/internal/asset"
	"github.com/unboundlabs/unbound/internal/nav"
	"github.com/unboundlabs/unbound/internal/queue"
)

// Snapshot is a deep copy of everything the vault owns, suitable for
// checkpointing to durable storage and restoring at boot.
type Snapshot struct {
	Owner    asset.Account
	Operator asset.Account
	Guardian asset.Account
	Paused   bool
	Params   Params

	Balances map[asset.Account]*uint256.Int

	TotalNAV     *uint256.Int
	NAVUpdatedAt uint64

	Deposits    []queue.DepositRequest
	DepositHead uint64

	Withdrawals    []queue.WithdrawalRequest
	WithdrawalHead uint64
}

// Snapshot captures current state under the read lock.
func (v *Vault) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	depHead, depTail := v.deposits.Head(), v.deposits.Tail()
	wdHead, wdTail := v.withdrawals.Head(), v.withdrawals.Tail()

	return Snapshot{
		Owner:          v.owner,
		Operator:       v.operator,
		Guardian:       v.guardian,
		Paused:         v.paused,
		Params:         v.params,
		Balances:       v.ledger.Balances(),
		TotalNAV:       v.nav.Value(),
		NAVUpdatedAt:   v.nav.LastUpdate(),
		Deposits:       v.deposits.Scan(0, int(depTail)),
		DepositHead:    depHead,
		Withdrawals:    v.withdrawals.Scan(0, int(wdTail)),
		WithdrawalHead: wdHead,
	}
}

// Restore builds a vault from a checkpoint. The collaborators (assets,
// swapper, sinks, clock) come from cfg; roles, params and all owned state
// come from the snapshot.
func Restore(cfg Config, snap Snapshot) (*Vault, error) {
	cfg.Owner = snap.Owner
	cfg.Operator = snap.Operator
	cfg.Guardian = snap.Guardian
	cfg.Params = snap.Params

	v, err := New(cfg)
	if err != nil {
		return nil, err
	}

	v.paused = snap.Paused
	if snap.TotalNAV == nil {
		snap.TotalNAV = new(uint256.Int)
	}
	if v.ledger, err = RestoreShareLedger(snap.Balances); err != nil {
		return nil, err
	}
	v.nav = nav.Restore(snap.Params.NAVCooldown, snap.Params.MaxNAVChangeBps, snap.TotalNAV, snap.NAVUpdatedAt)
	v.deposits = queue.RestoreDepositQueue(snap.Deposits, snap.DepositHead)
	v.withdrawals = queue.RestoreWithdrawalQueue(snap.Withdrawals, snap.WithdrawalHead)
	return v, nil
}
