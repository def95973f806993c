package operator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/unboundlabs/unbound/internal/queue"
)

// processWithdrawals walks the live part of the withdrawal queue. PENDING
// requests get their hedge slice closed and a venue withdrawal issued;
// PROCESSING requests are completed once the settled funds have arrived on
// the operator account.
func (s *Service) processWithdrawals(ctx context.Context) error {
	reqs := s.cfg.Vault.PendingWithdrawals(s.cfg.BatchSize)

	var errs []error
	for _, req := range reqs {
		var err error
		switch req.Status {
		case queue.StatusPending:
			err = s.beginWithdrawal(ctx, req)
		case queue.StatusProcessing:
			err = s.settleWithdrawal(req)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("withdrawal %d: %w", req.ID, err))
		}
	}
	return errors.Join(errs...)
}

// beginWithdrawal closes the request's proportional hedge and asks the venue
// to pay the settled value out.
func (s *Service) beginWithdrawal(ctx context.Context, req queue.WithdrawalRequest) error {
	settled, err := s.settledValueFor(req)
	if err != nil {
		return err
	}

	if err := s.cfg.Vault.MarkWithdrawalProcessing(s.cfg.Account, req.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if settled.IsPositive() {
		stats, err := s.cfg.Venue.MarketStats(ctx, s.cfg.Market)
		if err != nil {
			return fmt.Errorf("market stats: %w", err)
		}
		if stats.MarkPrice.IsPositive() {
			size := settled.Div(stats.MarkPrice)
			if _, err := s.cfg.Venue.CloseShort(ctx, s.cfg.Market, size); err != nil {
				return fmt.Errorf("close short: %w", err)
			}
		}
		if _, err := s.cfg.Venue.Withdraw(ctx, settled, s.cfg.WithdrawAddress); err != nil {
			return fmt.Errorf("venue withdrawal: %w", err)
		}
	}

	s.mu.Lock()
	s.inflight[req.ID] = settled
	s.mu.Unlock()

	s.logger.Info().
		Uint64("id", req.ID).
		Str("settled", settled.String()).
		Msg("withdrawal in flight")
	return nil
}

// settleWithdrawal marks a request READY once the operator account holds the
// settled funds. A PROCESSING request unknown to the in-flight map (node
// restart) is re-tracked from the queue state; its venue withdrawal may
// arrive without being re-issued.
func (s *Service) settleWithdrawal(req queue.WithdrawalRequest) error {
	s.mu.Lock()
	settled, ok := s.inflight[req.ID]
	s.mu.Unlock()

	if !ok {
		var err error
		if settled, err = s.settledValueFor(req); err != nil {
			return err
		}
		s.mu.Lock()
		s.inflight[req.ID] = settled
		s.mu.Unlock()
		s.logger.Warn().Uint64("id", req.ID).Msg("recovered in-flight withdrawal")
	}

	available := toDecimal(s.cfg.SettlementAsset.BalanceOf(s.cfg.Account), s.cfg.SettlementDecimals)
	if available.LessThan(settled) {
		// Funds still crossing; try again next cycle.
		return nil
	}

	settledMinor, err := toMinorUnits(settled, s.cfg.SettlementDecimals)
	if err != nil {
		return err
	}
	if err := s.cfg.Vault.MarkWithdrawalReady(s.cfg.Account, req.ID, settledMinor); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	s.mu.Lock()
	delete(s.inflight, req.ID)
	s.mu.Unlock()

	s.logger.Info().Uint64("id", req.ID).Str("settled", settled.String()).Msg("withdrawal ready")
	return nil
}

// settledValueFor is the venue-side slice of a withdrawal: the redeem value
// of the shares minus the fraction covered by the vault's deposit-asset
// reserve.
func (s *Service) settledValueFor(req queue.WithdrawalRequest) (decimal.Decimal, error) {
	assets, err := s.cfg.Vault.PreviewRedeem(req.Shares)
	if err != nil {
		return decimal.Zero, fmt.Errorf("preview redeem: %w", err)
	}
	keepBps := s.cfg.Vault.GetParams().KeepRatioBps

	value := toDecimal(assets, s.cfg.SettlementDecimals)
	converted := value.
		Mul(decimal.NewFromInt(int64(10_000 - keepBps))).
		Div(decimal.NewFromInt(10_000))
	// Floor to whole minor units so the venue is never asked for more than
	// the vault will pull.
	return converted.Shift(int32(s.cfg.SettlementDecimals)).Floor().Shift(-int32(s.cfg.SettlementDecimals)), nil
}
