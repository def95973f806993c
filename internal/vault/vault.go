// Package vault implements the tokenized vault core: share accounting with
// inflation-attack-resistant conversion math, the deposit and withdrawal
// request queues, and the rate-limited NAV ledger, all orchestrated behind a
// single-writer controller.
package vault

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"

	"github.com/unboundlabs/unbound/internal/asset"
	"github.com/unboundlabs/unbound/internal/nav"
	"github.com/unboundlabs/unbound/internal/queue"
	"github.com/unboundlabs/unbound/internal/swap"
)

// Params are the owner-tunable economics.
type Params struct {
	// NAVCooldown is the minimum gap between operator NAV updates, seconds.
	NAVCooldown uint64
	// MaxNAVChangeBps caps a single NAV update, basis points of current.
	MaxNAVChangeBps uint64
	// KeepRatioBps is the fraction of each deposit kept in the deposit
	// asset; the rest is converted to the settlement asset. Must be below
	// 10000 so every deposit can be valued through the swap.
	KeepRatioBps uint64
	// WithdrawFeeBps is deducted from withdrawal payouts to FeeRecipient.
	WithdrawFeeBps uint64
	FeeRecipient   asset.Account
}

func DefaultParams() Params {
	return Params{
		NAVCooldown:     3600,
		MaxNAVChangeBps: 500,
		KeepRatioBps:    5000,
	}
}

// Config wires a vault instance. Every collaborator is explicit so multiple
// independent vaults can coexist and tests can isolate one.
type Config struct {
	Owner    asset.Account
	Operator asset.Account
	Guardian asset.Account
	// Account is the vault's own ledger identity, holding the deposit-asset
	// reserve, swap proceeds and escrowed shares.
	Account asset.Account

	DepositAsset     asset.Transfer
	DepositSymbol    string
	SettlementAsset  asset.Transfer
	SettlementSymbol string
	Swapper          swap.Executor

	Params Params
	Events EventSink
	// Now returns unix seconds; defaults to the wall clock.
	Now func() uint64
}

// Vault exclusively owns the share ledger, the NAV ledger and both queues;
// nothing else mutates them. Mutating operations are single-writer: a CAS
// guard rejects overlapping entries (including callbacks from the swap or
// asset collaborators re-entering mid-operation) with ErrReentrancy, and the
// RWMutex keeps the read surface race-free.
type Vault struct {
	mu   sync.RWMutex
	busy atomic.Bool

	owner    asset.Account
	operator asset.Account
	guardian asset.Account
	account  asset.Account
	paused   bool

	ledger      *ShareLedger
	nav         *nav.Ledger
	deposits    *queue.DepositQueue
	withdrawals *queue.WithdrawalQueue

	depositAsset     asset.Transfer
	depositSymbol    string
	settlementAsset  asset.Transfer
	settlementSymbol string
	swapper          swap.Executor

	params Params
	events EventSink
	now    func() uint64
}

func New(cfg Config) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	v := &Vault{
		owner:            cfg.Owner,
		operator:         cfg.Operator,
		guardian:         cfg.Guardian,
		account:          cfg.Account,
		ledger:           NewShareLedger(),
		nav:              nav.New(cfg.Params.NAVCooldown, cfg.Params.MaxNAVChangeBps),
		deposits:         queue.NewDepositQueue(),
		withdrawals:      queue.NewWithdrawalQueue(),
		depositAsset:     cfg.DepositAsset,
		depositSymbol:    cfg.DepositSymbol,
		settlementAsset:  cfg.SettlementAsset,
		settlementSymbol: cfg.SettlementSymbol,
		swapper:          cfg.Swapper,
		params:           cfg.Params,
		events:           cfg.Events,
		now:              cfg.Now,
	}
	if v.account == "" {
		v.account = "vault"
	}
	if v.events == nil {
		v.events = func(Event) {}
	}
	if v.now == nil {
		v.now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return v, nil
}

func validateConfig(cfg Config) error {
	if cfg.Owner == "" {
		return fmt.Errorf("vault: owner account required")
	}
	if cfg.DepositAsset == nil || cfg.SettlementAsset == nil {
		return fmt.Errorf("vault: both asset ledgers required")
	}
	if cfg.Swapper == nil {
		return fmt.Errorf("vault: swap executor required")
	}
	if cfg.Params.KeepRatioBps >= 10_000 {
		return fmt.Errorf("vault: keep ratio must be below 10000 bps")
	}
	return nil
}

// acquire is the writer guard. The CAS runs before the lock so a reentrant
// callback on the same goroutine fails fast instead of deadlocking; a
// concurrent writer losing the CAS gets the same retriable error, which is
// the intended single-writer-at-a-time model.
func (v *Vault) acquire() (release func(), err error) {
	if !v.busy.CompareAndSwap(false, true) {
		return nil, ErrReentrancy
	}
	v.mu.Lock()
	return func() {
		v.mu.Unlock()
		v.busy.Store(false)
	}, nil
}

// --- user operations ---

// Deposit pulls amount of the deposit asset from caller, converts the
// to-convert fraction to the settlement asset through the swap collaborator,
// and queues a request valued at the full deposit (kept plus converted
// portions). Shares are minted later by ProcessDeposits; minShares is
// enforced there against the conversion rate at processing time.
func (v *Vault) Deposit(ctx context.Context, caller, receiver asset.Account, amount, minShares *uint256.Int, route []byte) (uint64, error) {
	release, err := v.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	if v.paused {
		return 0, ErrPaused
	}
	if amount == nil || amount.IsZero() {
		return 0, ErrZeroAmount
	}
	if receiver == "" {
		receiver = caller
	}
	if minShares == nil {
		minShares = new(uint256.Int)
	}

	if err := v.depositAsset.Transfer(caller, v.account, amount); err != nil {
		return 0, fmt.Errorf("pull deposit: %w", err)
	}

	keep := uint256.NewInt(v.params.KeepRatioBps)
	kept, _ := applyBps(amount, keep)
	toConvert := new(uint256.Int).Sub(amount, kept)

	out, err := v.swapper.Swap(ctx, swap.Request{
		FromToken: v.depositSymbol,
		ToToken:   v.settlementSymbol,
		Owner:     v.account,
		Amount:    toConvert,
		MinOut:    new(uint256.Int),
		Route:     route,
	})
	if err != nil || out == nil || out.IsZero() {
		// Compensate the pull so the caller is made whole before the error
		// surfaces.
		if rbErr := v.depositAsset.Transfer(v.account, caller, amount); rbErr != nil {
			return 0, fmt.Errorf("swap failed (%v) and refund failed: %w", err, rbErr)
		}
		if err != nil {
			return 0, fmt.Errorf("convert deposit: %w", err)
		}
		return 0, ErrSwapFailed
	}

	// Total request value: the converted output grossed up for the kept
	// fraction, so the share price reflects the full deposit, not just the
	// converted half. For the default 50/50 split this is exactly 2x.
	value, ok := grossUp(out, v.params.KeepRatioBps)
	if !ok {
		return 0, ErrOverflow
	}

	nowTS := v.now()
	id := v.deposits.Enqueue(queue.DepositRequest{
		Requester: caller,
		Receiver:  receiver,
		Value:     value,
		MinShares: minShares,
		Timestamp: nowTS,
	})

	v.events(Event{
		Kind:      EventDepositQueued,
		RequestID: id,
		Account:   receiver,
		Amount:    value.Clone(),
		Timestamp: nowTS,
	})
	return id, nil
}

// grossUp scales a converted value to the full deposit value given the kept
// fraction in basis points: total = converted * 10000 / (10000 - keepBps).
func grossUp(converted *uint256.Int, keepBps uint64) (*uint256.Int, bool) {
	return mulDiv(converted, uint256.NewInt(10_000), uint256.NewInt(10_000-keepBps))
}

// RequestWithdraw escrows the caller's shares with the vault and queues a
// PENDING withdrawal. The shares stay part of the supply until completion.
func (v *Vault) RequestWithdraw(caller asset.Account, shares, minAssets *uint256.Int) (uint64, error) {
	release, err := v.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	if v.paused {
		return 0, ErrPaused
	}
	if shares == nil || shares.IsZero() {
		return 0, ErrZeroShares
	}
	if minAssets == nil {
		minAssets = new(uint256.Int)
	}

	if err := v.ledger.Move(caller, v.account, shares); err != nil {
		return 0, err
	}

	nowTS := v.now()
	id := v.withdrawals.Enqueue(queue.WithdrawalRequest{
		Requester: caller,
		Shares:    shares,
		MinAssets: minAssets,
		Timestamp: nowTS,
	})

	v.events(Event{
		Kind:      EventWithdrawalRequested,
		RequestID: id,
		Account:   caller,
		Shares:    shares.Clone(),
		Timestamp: nowTS,
	})
	return id, nil
}

// CancelWithdraw returns the escrowed shares verbatim. Only the requester
// may cancel, and only while the request is still PENDING; once the operator
// has picked it up, funds may already be in flight externally.
func (v *Vault) CancelWithdraw(caller asset.Account, id uint64) error {
	release, err := v.acquire()
	if err != nil {
		return err
	}
	defer release()

	req, err := v.withdrawals.Get(id)
	if err != nil {
		return err
	}
	if req.Requester != caller {
		return ErrNotRequester
	}
	if err := v.withdrawals.Cancel(id); err != nil {
		return err
	}
	if err := v.ledger.Move(v.account, caller, req.Shares); err != nil {
		// The escrow invariant guarantees the vault holds these shares;
		// failing here means internal state corruption.
		return fmt.Errorf("return escrow: %w", err)
	}

	v.events(Event{
		Kind:      EventWithdrawalCancelled,
		RequestID: id,
		Account:   caller,
		Shares:    req.Shares.Clone(),
		Timestamp: v.now(),
	})
	return nil
}

// CompleteWithdraw pays out a READY request to its requester. The payout is
// the requester's pro-rata slice of the vault's deposit-asset reserve plus
// the settled value swapped back into the deposit asset. The slippage floor
// is checked against a quote before any state changes, so a failing check
// leaves the request READY and retriable.
func (v *Vault) CompleteWithdraw(ctx context.Context, caller asset.Account, id uint64, route []byte) (*uint256.Int, error) {
	release, err := v.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := v.withdrawals.Get(id)
	if err != nil {
		return nil, err
	}
	if req.Requester != caller {
		return nil, ErrNotRequester
	}
	if req.Status != queue.StatusReady {
		return nil, queue.ErrWrongStatus
	}

	supply := v.ledger.TotalSupply()
	// Supply still includes the escrowed shares; they burn only below.
	userBps, ok := ratioBps(req.Shares, supply)
	if !ok {
		return nil, ErrOverflow
	}

	reserve := v.depositAsset.BalanceOf(v.account)
	reservePart, ok := applyBps(reserve, userBps)
	if !ok {
		return nil, ErrOverflow
	}

	swapReq := swap.Request{
		FromToken: v.settlementSymbol,
		ToToken:   v.depositSymbol,
		Owner:     v.account,
		Amount:    req.SettledValue,
		MinOut:    new(uint256.Int),
		Route:     route,
	}

	expectedOut := new(uint256.Int)
	if !req.SettledValue.IsZero() {
		expectedOut, err = v.swapper.Quote(ctx, swapReq)
		if err != nil {
			return nil, fmt.Errorf("quote settlement swap: %w", err)
		}
	}

	total := new(uint256.Int).Add(reservePart, expectedOut)
	fee, _ := applyBps(total, uint256.NewInt(v.params.WithdrawFeeBps))
	net := new(uint256.Int).Sub(total, fee)
	if net.Lt(req.MinAssets) {
		return nil, ErrSlippageExceeded
	}
	// Completion debits NAV by the settled value. A markdown reported since
	// the request went ready can leave NAV short of it; checked here, before
	// anything irreversible, so the escrow survives and the request stays
	// retriable.
	if v.nav.Value().Lt(req.SettledValue) {
		return nil, ErrNAVDepleted
	}

	// All checks passed; irreversible effects only from here on. The
	// executor enforces the quoted output as the floor, so a worse fill
	// aborts before any vault state changed.
	actualOut := new(uint256.Int)
	if !req.SettledValue.IsZero() {
		swapReq.MinOut = expectedOut
		actualOut, err = v.swapper.Swap(ctx, swapReq)
		if err != nil {
			return nil, fmt.Errorf("execute settlement swap: %w", err)
		}
	}

	total = new(uint256.Int).Add(reservePart, actualOut)
	fee, _ = applyBps(total, uint256.NewInt(v.params.WithdrawFeeBps))
	net = new(uint256.Int).Sub(total, fee)

	if err := v.ledger.Burn(v.account, req.Shares); err != nil {
		return nil, fmt.Errorf("burn escrow: %w", err)
	}
	if err := v.nav.Debit(req.SettledValue); err != nil {
		return nil, fmt.Errorf("debit nav: %w", err)
	}
	if err := v.withdrawals.Complete(id); err != nil {
		return nil, err
	}
	if err := v.depositAsset.Transfer(v.account, caller, net); err != nil {
		return nil, fmt.Errorf("pay out: %w", err)
	}
	if !fee.IsZero() && v.params.FeeRecipient != "" {
		if err := v.depositAsset.Transfer(v.account, v.params.FeeRecipient, fee); err != nil {
			return nil, fmt.Errorf("pay fee: %w", err)
		}
	}

	v.events(Event{
		Kind:      EventWithdrawalCompleted,
		RequestID: id,
		Account:   caller,
		Amount:    net.Clone(),
		Shares:    req.Shares.Clone(),
		Timestamp: v.now(),
	})
	return net, nil
}

// --- operator operations ---

// ProcessDeposits mints shares for up to maxCount queued entries starting at
// the head cursor. The whole batch is simulated against evolving totals
// before anything commits: one entry failing its min-shares floor aborts the
// batch with no state change. On commit the converted settlement value of
// each entry is released to the operator for venue margin.
func (v *Vault) ProcessDeposits(caller asset.Account, maxCount int) ([]uint64, error) {
	release, err := v.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := v.requireOperator(caller); err != nil {
		return nil, err
	}
	if maxCount <= 0 {
		return nil, nil
	}

	head := v.deposits.Head()
	scanned := v.deposits.Scan(head, maxCount)
	if len(scanned) == 0 {
		return nil, nil
	}

	type mint struct {
		id       uint64
		receiver asset.Account
		shares   *uint256.Int
		value    *uint256.Int
		released *uint256.Int
	}

	// Phase 1: simulate. Totals evolve entry by entry so later entries in
	// the batch price against the state the earlier ones will have created.
	supply := v.ledger.TotalSupply()
	navValue := v.nav.Value()
	releasedTotal := new(uint256.Int)
	var mints []mint

	for _, req := range scanned {
		if req.Processed {
			continue
		}
		shares, ok := ToShares(req.Value, supply, navValue)
		if !ok {
			return nil, ErrOverflow
		}
		if shares.Lt(req.MinShares) {
			return nil, fmt.Errorf("deposit %d: %w", req.ID, ErrSlippageExceeded)
		}

		var overflow bool
		if supply, overflow = new(uint256.Int).AddOverflow(supply, shares); overflow {
			return nil, ErrOverflow
		}
		if navValue, overflow = new(uint256.Int).AddOverflow(navValue, req.Value); overflow {
			return nil, ErrOverflow
		}

		released, ok := releasedValue(req.Value, v.params.KeepRatioBps)
		if !ok {
			return nil, ErrOverflow
		}
		releasedTotal.Add(releasedTotal, released)

		mints = append(mints, mint{
			id:       req.ID,
			receiver: req.Receiver,
			shares:   shares,
			value:    req.Value,
			released: released,
		})
	}

	// The converted portion must be coverable before anything commits.
	if v.settlementAsset.BalanceOf(v.account).Lt(releasedTotal) {
		return nil, fmt.Errorf("settlement reserve short of %s: %w", releasedTotal.Dec(), asset.ErrInsufficientBalance)
	}

	// Phase 2: commit.
	nowTS := v.now()
	processed := make([]uint64, 0, len(mints))
	for _, m := range mints {
		if err := v.ledger.Mint(m.receiver, m.shares); err != nil {
			return processed, fmt.Errorf("mint for deposit %d: %w", m.id, err)
		}
		if err := v.nav.Credit(m.value); err != nil {
			return processed, fmt.Errorf("credit nav for deposit %d: %w", m.id, err)
		}
		if err := v.deposits.MarkProcessed(m.id); err != nil {
			return processed, err
		}
		if !m.released.IsZero() && v.operator != "" {
			if err := v.settlementAsset.Transfer(v.account, v.operator, m.released); err != nil {
				return processed, fmt.Errorf("release settlement for deposit %d: %w", m.id, err)
			}
		}
		processed = append(processed, m.id)
		v.events(Event{
			Kind:      EventDepositProcessed,
			RequestID: m.id,
			Account:   m.receiver,
			Amount:    m.value.Clone(),
			Shares:    m.shares.Clone(),
			Timestamp: nowTS,
		})
	}

	// Head moves past the scanned range whether or not every entry in it
	// was unprocessed.
	v.deposits.SetHead(head + uint64(len(scanned)))
	return processed, nil
}

// releasedValue is the converted (settlement-asset) portion of a total
// deposit value: value * (10000 - keepBps) / 10000. Floored, so it never
// exceeds what the deposit-time swap actually produced.
func releasedValue(value *uint256.Int, keepBps uint64) (*uint256.Int, bool) {
	return mulDiv(value, uint256.NewInt(10_000-keepBps), uint256.NewInt(10_000))
}

// MarkWithdrawalProcessing flags a PENDING request while the operator closes
// the external position. Optional step; MarkWithdrawalReady accepts both.
func (v *Vault) MarkWithdrawalProcessing(caller asset.Account, id uint64) error {
	release, err := v.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := v.requireOperator(caller); err != nil {
		return err
	}
	if err := v.withdrawals.MarkProcessing(id); err != nil {
		return err
	}

	v.events(Event{
		Kind:      EventWithdrawalProcessing,
		RequestID: id,
		Timestamp: v.now(),
	})
	return nil
}

// MarkWithdrawalReady records the settlement value realized externally for a
// PENDING or PROCESSING request and pulls that value from the operator into
// the vault, making it available for completion.
func (v *Vault) MarkWithdrawalReady(caller asset.Account, id uint64, settled *uint256.Int) error {
	release, err := v.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := v.requireOperator(caller); err != nil {
		return err
	}
	if settled == nil {
		settled = new(uint256.Int)
	}

	req, err := v.withdrawals.Get(id)
	if err != nil {
		return err
	}
	if req.Status != queue.StatusPending && req.Status != queue.StatusProcessing {
		return queue.ErrWrongStatus
	}

	if !settled.IsZero() {
		if err := v.settlementAsset.Transfer(caller, v.account, settled); err != nil {
			return fmt.Errorf("pull settled value: %w", err)
		}
	}
	if err := v.withdrawals.MarkReady(id, settled); err != nil {
		return err
	}

	v.events(Event{
		Kind:      EventWithdrawalReady,
		RequestID: id,
		Account:   req.Requester,
		Amount:    settled.Clone(),
		Timestamp: v.now(),
	})
	return nil
}

// UpdateNAV applies an operator-reported NAV through the rate limiter.
func (v *Vault) UpdateNAV(caller asset.Account, newNAV *uint256.Int) error {
	release, err := v.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := v.requireOperator(caller); err != nil {
		return err
	}

	nowTS := v.now()
	old, err := v.nav.Update(newNAV, nowTS)
	if err != nil {
		return err
	}

	v.events(Event{
		Kind:      EventNAVUpdated,
		OldNAV:    old,
		NewNAV:    newNAV.Clone(),
		Timestamp: nowTS,
	})
	return nil
}

// --- governance ---

// Pause blocks new deposits and withdrawal requests. Owner or guardian.
// Completion and cancellation of existing withdrawals stay available so exit
// liveness is never governed.
func (v *Vault) Pause(caller asset.Account) error {
	release, err := v.acquire()
	if err != nil {
		return err
	}
	defer release()

	if caller != v.owner && (v.guardian == "" || caller != v.guardian) {
		return ErrNotGuardian
	}
	if v.paused {
		return nil
	}
	v.paused = true
	v.events(Event{Kind: EventPaused, Account: caller, Timestamp: v.now()})
	return nil
}

// Unpause re-enables deposits and withdrawal requests. Owner only; a
// guardian can stop the vault but not restart it.
func (v *Vault) Unpause(caller asset.Account) error {
	release, err := v.acquire()
	if err != nil {
		return err
	}
	defer release()

	if caller != v.owner {
		return ErrNotOwner
	}
	if !v.paused {
		return nil
	}
	v.paused = false
	v.events(Event{Kind: EventUnpaused, Account: caller, Timestamp: v.now()})
	return nil
}

func (v *Vault) SetOperator(caller, operator asset.Account) error {
	release, err := v.acquire()
	if err != nil {
		return err
	}
	defer release()

	if caller != v.owner {
		return ErrNotOwner
	}
	v.operator = operator
	return nil
}

func (v *Vault) SetGuardian(caller, guardian asset.Account) error {
	release, err := v.acquire()
	if err != nil {
		return err
	}
	defer release()

	if caller != v.owner {
		return ErrNotOwner
	}
	v.guardian = guardian
	return nil
}

// SetFeeParams adjusts the withdrawal fee. Capped at 10% so a compromised
// owner key cannot confiscate exits outright.
func (v *Vault) SetFeeParams(caller asset.Account, feeBps uint64, recipient asset.Account) error {
	release, err := v.acquire()
	if err != nil {
		return err
	}
	defer release()

	if caller != v.owner {
		return ErrNotOwner
	}
	if feeBps > 1000 {
		return fmt.Errorf("vault: withdraw fee above 1000 bps")
	}
	v.params.WithdrawFeeBps = feeBps
	v.params.FeeRecipient = recipient
	return nil
}

func (v *Vault) requireOperator(caller asset.Account) error {
	if caller == v.owner {
		return nil
	}
	if v.operator != "" && caller == v.operator {
		return nil
	}
	return ErrNotOperator
}

// --- read surface ---

func (v *Vault) TotalSupply() *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.TotalSupply()
}

func (v *Vault) TotalNAV() *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.nav.Value()
}

func (v *Vault) NAVLastUpdate() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.nav.LastUpdate()
}

func (v *Vault) BalanceOf(account asset.Account) *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.BalanceOf(account)
}

func (v *Vault) Paused() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.paused
}

func (v *Vault) Owner() asset.Account {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.owner
}

func (v *Vault) Operator() asset.Account {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.operator
}

func (v *Vault) GetParams() Params {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.params
}

// PreviewDeposit converts an asset value to shares at current totals.
func (v *Vault) PreviewDeposit(assets *uint256.Int) (*uint256.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	shares, ok := ToShares(assets, v.ledger.TotalSupply(), v.nav.Value())
	if !ok {
		return nil, ErrOverflow
	}
	return shares, nil
}

// PreviewRedeem converts shares to an asset value at current totals.
func (v *Vault) PreviewRedeem(shares *uint256.Int) (*uint256.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	assets, ok := ToAssets(shares, v.ledger.TotalSupply(), v.nav.Value())
	if !ok {
		return nil, ErrOverflow
	}
	return assets, nil
}

func (v *Vault) PendingDepositCount() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.deposits.PendingCount()
}

func (v *Vault) DepositRequest(id uint64) (queue.DepositRequest, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.deposits.Get(id)
}

// PendingDeposits returns up to max unprocessed deposits from the head
// cursor, for the operator's polling loop.
func (v *Vault) PendingDeposits(max int) []queue.DepositRequest {
	v.mu.RLock()
	defer v.mu.RUnlock()

	scanned := v.deposits.Scan(v.deposits.Head(), max)
	out := scanned[:0]
	for _, req := range scanned {
		if !req.Processed {
			out = append(out, req)
		}
	}
	return out
}

func (v *Vault) PendingWithdrawalCount() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.withdrawals.PendingCount()
}

func (v *Vault) WithdrawalRequest(id uint64) (queue.WithdrawalRequest, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.withdrawals.Get(id)
}

// PendingWithdrawals returns up to max non-terminal withdrawals from the
// head cursor.
func (v *Vault) PendingWithdrawals(max int) []queue.WithdrawalRequest {
	v.mu.RLock()
	defer v.mu.RUnlock()

	scanned := v.withdrawals.Scan(v.withdrawals.Head(), max)
	out := scanned[:0]
	for _, req := range scanned {
		if !req.Status.Terminal() {
			out = append(out, req)
		}
	}
	return out
}

func (v *Vault) UserWithdrawals(account asset.Account) []uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.withdrawals.ByUser(account)
}

func (v *Vault) DepositQueueBounds() (head, tail uint64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.deposits.Head(), v.deposits.Tail()
}

func (v *Vault) WithdrawalQueueBounds() (head, tail uint64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.withdrawals.Head(), v.withdrawals.Tail()
}
