package operator

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// deleverageFraction of the short is closed when the margin ratio breaches
// the configured limit.
var deleverageFraction = decimal.RequireFromString("0.25")

// managePosition keeps the hedge healthy: deleverages on margin pressure,
// exits entirely while funding is negative, and resizes the short back to
// venue equity when it has drifted past the threshold.
func (s *Service) managePosition(ctx context.Context) error {
	pos, err := s.cfg.Venue.Position(ctx, s.cfg.Market)
	if err != nil {
		return fmt.Errorf("position: %w", err)
	}
	if pos.Size.IsZero() {
		return nil
	}

	bal, err := s.cfg.Venue.Balance(ctx)
	if err != nil {
		return fmt.Errorf("venue balance: %w", err)
	}
	stats, err := s.cfg.Venue.MarketStats(ctx, s.cfg.Market)
	if err != nil {
		return fmt.Errorf("market stats: %w", err)
	}

	if bal.MarginRatio.GreaterThan(s.cfg.MarginRatioLimit) {
		size := pos.Size.Mul(deleverageFraction)
		if _, err := s.cfg.Venue.CloseShort(ctx, s.cfg.Market, size); err != nil {
			return fmt.Errorf("deleverage: %w", err)
		}
		s.logger.Warn().
			Str("margin_ratio", bal.MarginRatio.String()).
			Str("closed", size.String()).
			Msg("margin limit breached, hedge reduced")
		return nil
	}

	// A short earns positive funding; while funding is negative the hedge
	// pays to exist, so it is taken off entirely.
	if stats.FundingRate.IsNegative() {
		if _, err := s.cfg.Venue.CloseShort(ctx, s.cfg.Market, pos.Size); err != nil {
			return fmt.Errorf("funding close: %w", err)
		}
		s.logger.Warn().
			Str("funding_rate", stats.FundingRate.String()).
			Msg("negative funding, hedge closed")
		return nil
	}

	return s.rebalance(ctx, pos.Value.Abs(), bal.Equity, stats.MarkPrice)
}

// rebalance resizes the short toward target notional equal to venue equity
// when the drift exceeds the configured basis points.
func (s *Service) rebalance(ctx context.Context, posValue, target, markPrice decimal.Decimal) error {
	if !target.IsPositive() || !markPrice.IsPositive() {
		return nil
	}

	drift := posValue.Sub(target).Abs().
		Mul(decimal.NewFromInt(10_000)).
		Div(target)
	if drift.LessThanOrEqual(decimal.NewFromInt(int64(s.cfg.RebalanceThresholdBps))) {
		return nil
	}

	diffSize := posValue.Sub(target).Div(markPrice)
	if diffSize.IsPositive() {
		if _, err := s.cfg.Venue.CloseShort(ctx, s.cfg.Market, diffSize); err != nil {
			return fmt.Errorf("rebalance close: %w", err)
		}
	} else {
		if _, err := s.cfg.Venue.OpenShort(ctx, s.cfg.Market, diffSize.Neg()); err != nil {
			return fmt.Errorf("rebalance open: %w", err)
		}
	}

	s.logger.Info().
		Str("position_value", posValue.String()).
		Str("target", target.String()).
		Str("drift_bps", drift.StringFixed(0)).
		Msg("hedge rebalanced")
	return nil
}
