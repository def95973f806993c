package operator

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// processDeposits drains the vault's deposit queue, then moves the released
// settlement funds to the venue as margin and sizes the short up to match.
func (s *Service) processDeposits(ctx context.Context) error {
	v := s.cfg.Vault
	if v.PendingDepositCount() == 0 {
		return nil
	}

	processed, err := v.ProcessDeposits(s.cfg.Account, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("process deposit queue: %w", err)
	}
	if len(processed) == 0 {
		return nil
	}
	s.logger.Info().Ints64("ids", toInt64s(processed)).Msg("deposits processed")

	// Everything on the operator account beyond what in-flight withdrawals
	// will claim is fresh margin.
	margin := toDecimal(s.cfg.SettlementAsset.BalanceOf(s.cfg.Account), s.cfg.SettlementDecimals)
	margin = margin.Sub(s.reservedInflight())
	if !margin.IsPositive() {
		return nil
	}

	stats, err := s.cfg.Venue.MarketStats(ctx, s.cfg.Market)
	if err != nil {
		return fmt.Errorf("market stats: %w", err)
	}
	if !stats.MarkPrice.IsPositive() {
		return fmt.Errorf("mark price %s for %s", stats.MarkPrice, s.cfg.Market)
	}

	marginMinor, err := toMinorUnits(margin, s.cfg.SettlementDecimals)
	if err != nil {
		return err
	}
	if err := s.cfg.SettlementAsset.Transfer(s.cfg.Account, s.cfg.VenueFunding, marginMinor); err != nil {
		return fmt.Errorf("fund venue: %w", err)
	}

	size := margin.Div(stats.MarkPrice)
	order, err := s.cfg.Venue.OpenShort(ctx, s.cfg.Market, size)
	if err != nil {
		return fmt.Errorf("open short: %w", err)
	}

	s.logger.Info().
		Str("margin", margin.String()).
		Str("size", size.String()).
		Str("order_id", order.ID).
		Msg("hedge increased")
	return nil
}

func (s *Service) reservedInflight() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, settled := range s.inflight {
		total = total.Add(settled)
	}
	return total
}

func toInt64s(ids []uint64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
