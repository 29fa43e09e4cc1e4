package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Signal is an ephemeral trade intent produced by one evaluation tick.
// It is never stored; the execution guard consumes it exactly once.
type Signal struct {
	Kind   Side
	Symbol string
	Reason string
}

// Tick is a single streamed price observation.
type Tick struct {
	Symbol string
	Price  decimal.Decimal
	Time   time.Time
}

// Ticker is a pull-based market snapshot entry for one trading pair.
type Ticker struct {
	Symbol      string
	LastPrice   decimal.Decimal
	QuoteVolume decimal.Decimal
}

// Position is an open holding. PeakPrice starts at EntryPrice and only
// rises while the position is held.
type Position struct {
	Symbol     string
	Qty        decimal.Decimal
	EntryPrice decimal.Decimal
	PeakPrice  decimal.Decimal
	OpenedAt   time.Time
}

// Trade is an immutable history record. Sell trades additionally carry
// the entry and peak of the closed position and the realized profit.
type Trade struct {
	ID         string          `json:"id"`
	Kind       Side            `json:"kind"`
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Qty        decimal.Decimal `json:"qty"`
	Notional   decimal.Decimal `json:"notional"`
	Time       time.Time       `json:"time"`
	Reason     string          `json:"reason"`
	EntryPrice decimal.Decimal `json:"entry_price,omitempty"`
	PeakPrice  decimal.Decimal `json:"peak_price,omitempty"`
	Profit     decimal.Decimal `json:"profit,omitempty"`
	ProfitPct  decimal.Decimal `json:"profit_pct,omitempty"`
}

// OrderAck is the exchange acknowledgement of a placed market order.
type OrderAck struct {
	OrderID string
	Symbol  string
	Side    Side
	Qty     decimal.Decimal
}

// Fill is an executed trade as reported by the exchange, used by the
// transport-fault reconciliation step.
type Fill struct {
	Symbol string
	Side   Side
	Price  decimal.Decimal
	Qty    decimal.Decimal
	Time   time.Time
}
