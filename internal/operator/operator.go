// Package operator runs the node's background loops: processing deposit and
// withdrawal queues against the external venue, reporting NAV, and keeping
// the hedge position sized to the vault. Each loop polls on its own interval
// and survives individual cycle failures.
package operator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/unboundlabs/unbound/internal/asset"
	"github.com/unboundlabs/unbound/internal/exchange"
	"github.com/unboundlabs/unbound/internal/swap"
	"github.com/unboundlabs/unbound/internal/vault"
	"github.com/unboundlabs/unbound/pkg/log"
)

// Venue is the surface of the exchange client the operator consumes.
type Venue interface {
	Balance(ctx context.Context) (exchange.Balance, error)
	Position(ctx context.Context, market string) (exchange.Position, error)
	MarketStats(ctx context.Context, market string) (exchange.MarketStats, error)
	OpenShort(ctx context.Context, market string, size decimal.Decimal) (exchange.Order, error)
	CloseShort(ctx context.Context, market string, size decimal.Decimal) (exchange.Order, error)
	Withdraw(ctx context.Context, amount decimal.Decimal, destination string) (exchange.Withdrawal, error)
}

// Config wires the operator service.
type Config struct {
	Vault *vault.Vault
	Venue Venue
	// Swapper values the vault's deposit-asset reserve for NAV reports.
	Swapper swap.Executor

	// Account is the operator's own ledger identity; ProcessDeposits releases
	// converted funds here and MarkWithdrawalReady pulls settled funds back.
	Account asset.Account
	// VenueFunding is the ledger identity of the venue bridge. Funds sent
	// there are considered deposited as margin.
	VenueFunding asset.Account
	// WithdrawAddress is the destination the venue pays withdrawals to.
	WithdrawAddress string
	// VaultAccount is the vault's ledger identity, holding the deposit-asset
	// reserve valued by the NAV reporter.
	VaultAccount asset.Account

	DepositAsset       asset.Transfer
	SettlementAsset    asset.Transfer
	SettlementDecimals uint8
	DepositAssetSymbol string
	SettlementSymbol   string

	Market string

	DepositInterval    time.Duration
	WithdrawalInterval time.Duration
	NAVInterval        time.Duration
	PositionInterval   time.Duration

	// BatchSize bounds queue scans per cycle.
	BatchSize int

	// RebalanceThresholdBps is the position drift tolerated before the hedge
	// is resized.
	RebalanceThresholdBps uint64
	// MarginRatioLimit triggers deleveraging when exceeded.
	MarginRatioLimit decimal.Decimal
}

func (c *Config) applyDefaults() {
	if c.DepositInterval == 0 {
		c.DepositInterval = 30 * time.Second
	}
	if c.WithdrawalInterval == 0 {
		c.WithdrawalInterval = 30 * time.Second
	}
	if c.NAVInterval == 0 {
		c.NAVInterval = time.Hour
	}
	if c.PositionInterval == 0 {
		c.PositionInterval = 5 * time.Minute
	}
	if c.BatchSize == 0 {
		c.BatchSize = 50
	}
	if c.RebalanceThresholdBps == 0 {
		c.RebalanceThresholdBps = 500
	}
	if c.MarginRatioLimit.IsZero() {
		c.MarginRatioLimit = decimal.RequireFromString("0.8")
	}
}

// LoopStatus is one loop's last-cycle outcome, for the status API.
type LoopStatus struct {
	Name    string    `json:"name"`
	LastRun time.Time `json:"lastRun"`
	Runs    uint64    `json:"runs"`
	LastErr string    `json:"lastError,omitempty"`
}

// Service owns the four loops and their shared state.
type Service struct {
	cfg    Config
	logger zerolog.Logger

	wg sync.WaitGroup

	mu       sync.Mutex
	statuses map[string]*LoopStatus
	// inflight tracks withdrawal requests whose venue withdrawal was issued
	// but whose funds have not yet settled, by request id.
	inflight map[uint64]decimal.Decimal
}

func New(cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		cfg:      cfg,
		logger:   log.Operator,
		statuses: make(map[string]*LoopStatus),
		inflight: make(map[uint64]decimal.Decimal),
	}
}

// Start launches all loops. They stop when ctx is cancelled; Wait blocks
// until they have drained.
func (s *Service) Start(ctx context.Context) {
	s.run(ctx, "deposits", s.cfg.DepositInterval, s.processDeposits)
	s.run(ctx, "withdrawals", s.cfg.WithdrawalInterval, s.processWithdrawals)
	s.run(ctx, "nav", s.cfg.NAVInterval, s.reportNAV)
	s.run(ctx, "position", s.cfg.PositionInterval, s.managePosition)
}

func (s *Service) Wait() {
	s.wg.Wait()
}

// Statuses returns a snapshot of every loop's last outcome.
func (s *Service) Statuses() []LoopStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LoopStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, *st)
	}
	return out
}

// InflightWithdrawals returns the ids currently awaiting venue settlement.
func (s *Service) InflightWithdrawals() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]uint64, 0, len(s.inflight))
	for id := range s.inflight {
		out = append(out, id)
	}
	return out
}

// run executes one cycle immediately, then on every interval tick. A failed
// cycle is logged and recorded; it never stops the loop.
func (s *Service) run(ctx context.Context, name string, interval time.Duration, cycle func(context.Context) error) {
	s.mu.Lock()
	s.statuses[name] = &LoopStatus{Name: name}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			s.runOnce(ctx, name, cycle)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Service) runOnce(ctx context.Context, name string, cycle func(context.Context) error) {
	err := cycle(ctx)

	s.mu.Lock()
	st := s.statuses[name]
	st.LastRun = time.Now()
	st.Runs++
	if err != nil {
		st.LastErr = err.Error()
	} else {
		st.LastErr = ""
	}
	s.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Str("loop", name).Msg("cycle failed")
	}
}
