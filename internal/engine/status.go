package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
	"github.com/emma2tony07-spec/ProbeBot/internal/ledger"
	"github.com/emma2tony07-spec/ProbeBot/internal/market"
)

// Status is a read-only snapshot of the whole session.
type Status struct {
	Mode                  string
	State                 string
	Paused                bool
	StartedAt             time.Time
	ReconnectAttempts     int
	Monitored             int
	PendingReconciliation []string
	Account               ledger.Summary
}

// PositionReport is one open position priced at the current market.
type PositionReport struct {
	Position        core.Position
	CurrentPrice    decimal.Decimal
	UnrealizedPnL   decimal.Decimal
	DropFromPeakPct decimal.Decimal
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	state := c.state
	paused := c.paused
	startedAt := c.startedAt
	attempts := c.reconnectAttempts
	c.mu.Unlock()
	return Status{
		Mode:                  c.Mode,
		State:                 state,
		Paused:                paused,
		StartedAt:             startedAt,
		ReconnectAttempts:     attempts,
		Monitored:             len(c.Tracker.Instruments()),
		PendingReconciliation: c.Guard.PendingReconciliation(),
		Account:               c.Ledger.Summary(c.Tracker),
	}
}

// PositionReports values every open position at the tracked price. A
// position with no tracked price reports zero current price and PnL.
func (c *Controller) PositionReports() []PositionReport {
	positions := c.Ledger.Positions()
	reports := make([]PositionReport, 0, len(positions))
	hundred := decimal.NewFromInt(100)
	for _, pos := range positions {
		report := PositionReport{Position: pos}
		if price, ok := c.Tracker.CurrentPrice(pos.Symbol); ok {
			report.CurrentPrice = price
			report.UnrealizedPnL = price.Sub(pos.EntryPrice).Mul(pos.Qty)
			if pos.PeakPrice.Cmp(decimal.Zero) > 0 {
				report.DropFromPeakPct = pos.PeakPrice.Sub(price).Div(pos.PeakPrice).Mul(hundred)
			}
		}
		reports = append(reports, report)
	}
	return reports
}

func (c *Controller) Instruments() []market.Instrument {
	return c.Tracker.Instruments()
}

func (c *Controller) TradeHistory(limit int) []core.Trade {
	return c.Ledger.History(limit)
}
