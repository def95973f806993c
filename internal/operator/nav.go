package operator

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/unboundlabs/unbound/internal/swap"
)

// reportNAV pushes venue equity plus the valued deposit-asset reserve into
// the vault's NAV ledger. Reports inside the cooldown window are skipped;
// reports beyond the change cap are clamped to it and the remainder carries
// into the next cycle.
func (s *Service) reportNAV(ctx context.Context) error {
	v := s.cfg.Vault

	params := v.GetParams()
	last := v.NAVLastUpdate()
	if last != 0 && uint64(time.Now().Unix()) < last+params.NAVCooldown {
		return nil
	}

	bal, err := s.cfg.Venue.Balance(ctx)
	if err != nil {
		return fmt.Errorf("venue balance: %w", err)
	}
	equity, err := toMinorUnits(bal.Equity, s.cfg.SettlementDecimals)
	if err != nil {
		return fmt.Errorf("venue equity: %w", err)
	}

	reserveValue, err := s.reserveValue(ctx)
	if err != nil {
		return err
	}

	nav := new(uint256.Int).Add(equity, reserveValue)
	target := clampNAV(v.TotalNAV(), nav, params.MaxNAVChangeBps)

	if err := v.UpdateNAV(s.cfg.Account, target); err != nil {
		return fmt.Errorf("update nav: %w", err)
	}

	ev := s.logger.Info().
		Str("equity", equity.Dec()).
		Str("reserve_value", reserveValue.Dec()).
		Str("nav", target.Dec())
	if !target.Eq(nav) {
		ev = ev.Str("unclamped", nav.Dec())
	}
	ev.Msg("nav reported")
	return nil
}

// reserveValue quotes the vault's kept deposit-asset balance into settlement
// units through the swap aggregator.
func (s *Service) reserveValue(ctx context.Context) (*uint256.Int, error) {
	reserve := s.cfg.DepositAsset.BalanceOf(s.cfg.VaultAccount)
	if reserve.IsZero() {
		return new(uint256.Int), nil
	}

	value, err := s.cfg.Swapper.Quote(ctx, swap.Request{
		FromToken: s.cfg.DepositAssetSymbol,
		ToToken:   s.cfg.SettlementSymbol,
		Owner:     s.cfg.VaultAccount,
		Amount:    reserve,
	})
	if err != nil {
		return nil, fmt.Errorf("quote reserve: %w", err)
	}
	return value, nil
}

// clampNAV limits the reported value to at most maxBps away from current, so
// a large legitimate move lands over several cycles instead of being
// rejected outright. Zero-involved transitions pass through untouched.
func clampNAV(current, target *uint256.Int, maxBps uint64) *uint256.Int {
	if current.IsZero() || target.IsZero() {
		return target.Clone()
	}

	limit := new(uint256.Int).Div(current, uint256.NewInt(10_000))
	limit.Mul(limit, uint256.NewInt(maxBps))

	if target.Gt(current) {
		diff := new(uint256.Int).Sub(target, current)
		if diff.Gt(limit) {
			return new(uint256.Int).Add(current, limit)
		}
	} else {
		diff := new(uint256.Int).Sub(current, target)
		if diff.Gt(limit) {
			return new(uint256.Int).Sub(current, limit)
		}
	}
	return target.Clone()
}
