// Package exchange is the REST client for the external perpetuals venue
// where the operator hedges the vault's converted balance. Quantities and
// prices cross the venue API as decimal strings and are handled as decimals
// throughout; they convert to minor units only at the vault boundary.
package exchange

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrVenue          = errors.New("exchange: venue rejected request")
	ErrOrderNotFilled = errors.New("exchange: order not filled")
)

// Side of a position or order.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Balance is the venue account's margin state.
type Balance struct {
	Equity                 decimal.Decimal `json:"equity"`
	Balance                decimal.Decimal `json:"balance"`
	UnrealisedPnl          decimal.Decimal `json:"unrealisedPnl"`
	AvailableForTrade      decimal.Decimal `json:"availableForTrade"`
	AvailableForWithdrawal decimal.Decimal `json:"availableForWithdrawal"`
	MarginRatio            decimal.Decimal `json:"marginRatio"`
}

// Position is one open position on the venue.
type Position struct {
	Market        string          `json:"market"`
	Side          Side            `json:"side"`
	Size          decimal.Decimal `json:"size"`
	Value         decimal.Decimal `json:"value"`
	EntryPrice    decimal.Decimal `json:"openPrice"`
	MarkPrice     decimal.Decimal `json:"markPrice"`
	Leverage      decimal.Decimal `json:"leverage"`
	UnrealisedPnl decimal.Decimal `json:"unrealisedPnl"`
}

// MarketStats is the subset of venue market data the operator consumes.
type MarketStats struct {
	Market      string          `json:"market"`
	MarkPrice   decimal.Decimal `json:"markPrice"`
	FundingRate decimal.Decimal `json:"fundingRate"`
}

// Order is the venue's view of a placed order.
type Order struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"externalId"`
	Market     string          `json:"market"`
	Side       Side            `json:"side"`
	Size       decimal.Decimal `json:"qty"`
	FilledSize decimal.Decimal `json:"filledQty"`
	Status     string          `json:"status"`
}

// Filled reports whether the order is completely executed.
func (o Order) Filled() bool {
	return o.Status == "FILLED"
}

// Withdrawal is a requested transfer out of the venue account.
type Withdrawal struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"externalId"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
}
