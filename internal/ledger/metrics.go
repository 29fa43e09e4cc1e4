package ledger

import "github.com/shopspring/decimal"

// Summary is a read-only snapshot of the account for the presentation
// boundary.
type Summary struct {
	Balance        decimal.Decimal
	InitialBalance decimal.Decimal
	TotalValue     decimal.Decimal
	ProfitLoss     decimal.Decimal
	ROIPct         decimal.Decimal
	WinRatePct     decimal.Decimal
	OpenPositions  int
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
}

// TotalValue is the balance plus every open position valued at its
// current market price. A position whose price is unavailable contributes
// zero rather than failing the valuation.
func (l *Ledger) TotalValue(valuer Valuer) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := l.balance
	if valuer == nil {
		return total
	}
	for symbol, pos := range l.positions {
		price, ok := valuer.CurrentPrice(symbol)
		if !ok || price.Cmp(decimal.Zero) <= 0 {
			continue
		}
		total = total.Add(pos.Qty.Mul(price))
	}
	return total
}

func (l *Ledger) ProfitLoss(valuer Valuer) decimal.Decimal {
	return l.TotalValue(valuer).Sub(l.initialBalance)
}

func (l *Ledger) ROIPct(valuer Valuer) decimal.Decimal {
	if l.initialBalance.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero
	}
	return l.ProfitLoss(valuer).Div(l.initialBalance).Mul(decimal.NewFromInt(100))
}

// WinRatePct is winningTrades over totalTrades, zero when no trades closed.
func (l *Ledger) WinRatePct() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.totalTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(l.winningTrades)).
		Div(decimal.NewFromInt(int64(l.totalTrades))).
		Mul(decimal.NewFromInt(100))
}

func (l *Ledger) Summary(valuer Valuer) Summary {
	total := l.TotalValue(valuer)
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Summary{
		Balance:        l.balance,
		InitialBalance: l.initialBalance,
		TotalValue:     total,
		ProfitLoss:     total.Sub(l.initialBalance),
		OpenPositions:  len(l.positions),
		TotalTrades:    l.totalTrades,
		WinningTrades:  l.winningTrades,
		LosingTrades:   l.losingTrades,
	}
	if l.initialBalance.Cmp(decimal.Zero) > 0 {
		s.ROIPct = s.ProfitLoss.Div(l.initialBalance).Mul(decimal.NewFromInt(100))
	}
	if l.totalTrades > 0 {
		s.WinRatePct = decimal.NewFromInt(int64(l.winningTrades)).
			Div(decimal.NewFromInt(int64(l.totalTrades))).
			Mul(decimal.NewFromInt(100))
	}
	return s
}
