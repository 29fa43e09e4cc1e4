package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

// ExtremaResetter collapses the tracked price extrema for a symbol after
// a trade, so later signal evaluation measures from the post-trade price.
type ExtremaResetter interface {
	ResetExtrema(symbol string)
}

// Valuer supplies current market prices for open-position valuation.
type Valuer interface {
	CurrentPrice(symbol string) (decimal.Decimal, bool)
}

// Limits are the business-rule bounds the ledger enforces on buys. The
// ledger is the final authority; callers may pre-check but the ledger
// re-validates every mutation.
type Limits struct {
	MaxPositions int
	MinNotional  decimal.Decimal
}

// Ledger owns the balance, the open positions and the trade history.
// Balance changes by exactly the trade notional on every successful buy
// or sell, and can never go negative: a buy that would overdraw is
// rejected before any state changes.
type Ledger struct {
	mu             sync.Mutex
	balance        decimal.Decimal
	initialBalance decimal.Decimal
	positions      map[string]*core.Position
	history        []core.Trade // newest first
	limits         Limits

	totalTrades   int
	winningTrades int
	losingTrades  int

	resetter ExtremaResetter
	newID    func() string
	now      func() time.Time
}

func New(initialBalance decimal.Decimal, limits Limits, resetter ExtremaResetter) *Ledger {
	return &Ledger{
		balance:        initialBalance,
		initialBalance: initialBalance,
		positions:      make(map[string]*core.Position),
		limits:         limits,
		resetter:       resetter,
		newID:          newTradeID,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (l *Ledger) SetLimits(limits Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits = limits
}

// Buy debits the notional, opens a position with peak = entry and appends
// a buy trade. The position peak starts at the entry price by definition.
func (l *Ledger) Buy(symbol string, price, qty decimal.Decimal, reason string) (core.Trade, error) {
	if price.Cmp(decimal.Zero) <= 0 || qty.Cmp(decimal.Zero) <= 0 {
		return core.Trade{}, fmt.Errorf("buy %s: price and qty must be > 0", symbol)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[symbol]; ok {
		return core.Trade{}, fmt.Errorf("buy %s: %w", symbol, core.ErrPositionOpen)
	}
	if l.limits.MaxPositions > 0 && len(l.positions) >= l.limits.MaxPositions {
		return core.Trade{}, fmt.Errorf("buy %s: %w (open=%d)", symbol, core.ErrMaxPositionsReached, len(l.positions))
	}
	notional := price.Mul(qty)
	if l.limits.MinNotional.Cmp(decimal.Zero) > 0 && notional.Cmp(l.limits.MinNotional) < 0 {
		return core.Trade{}, fmt.Errorf("buy %s: %w (notional=%s min=%s)", symbol, core.ErrBelowMinNotional, notional, l.limits.MinNotional)
	}
	if notional.Cmp(l.balance) > 0 {
		return core.Trade{}, fmt.Errorf("buy %s: %w (notional=%s balance=%s)", symbol, core.ErrInsufficientBalance, notional, l.balance)
	}

	now := l.now()
	l.balance = l.balance.Sub(notional)
	l.positions[symbol] = &core.Position{
		Symbol:     symbol,
		Qty:        qty,
		EntryPrice: price,
		PeakPrice:  price,
		OpenedAt:   now,
	}
	trade := core.Trade{
		ID:       l.newID(),
		Kind:     core.Buy,
		Symbol:   symbol,
		Price:    price,
		Qty:      qty,
		Notional: notional,
		Time:     now,
		Reason:   reason,
	}
	l.appendTradeLocked(trade)
	l.totalTrades++
	if l.resetter != nil {
		l.resetter.ResetExtrema(symbol)
	}
	return trade, nil
}

// Sell closes the full position at the given price, credits the proceeds
// and appends a sell trade carrying realized profit. Zero profit counts
// as a losing trade.
func (l *Ledger) Sell(symbol string, price decimal.Decimal, reason string) (core.Trade, error) {
	if price.Cmp(decimal.Zero) <= 0 {
		return core.Trade{}, fmt.Errorf("sell %s: price must be > 0", symbol)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return core.Trade{}, fmt.Errorf("sell %s: %w", symbol, core.ErrNoPosition)
	}
	proceeds := price.Mul(pos.Qty)
	cost := pos.EntryPrice.Mul(pos.Qty)
	profit := proceeds.Sub(cost)
	profitPct := decimal.Zero
	if cost.Cmp(decimal.Zero) > 0 {
		profitPct = profit.Div(cost).Mul(decimal.NewFromInt(100))
	}

	l.balance = l.balance.Add(proceeds)
	delete(l.positions, symbol)
	trade := core.Trade{
		ID:         l.newID(),
		Kind:       core.Sell,
		Symbol:     symbol,
		Price:      price,
		Qty:        pos.Qty,
		Notional:   proceeds,
		Time:       l.now(),
		Reason:     reason,
		EntryPrice: pos.EntryPrice,
		PeakPrice:  pos.PeakPrice,
		Profit:     profit,
		ProfitPct:  profitPct,
	}
	l.appendTradeLocked(trade)
	l.totalTrades++
	if profit.Sign() > 0 {
		l.winningTrades++
	} else {
		l.losingTrades++
	}
	if l.resetter != nil {
		l.resetter.ResetExtrema(symbol)
	}
	return trade, nil
}

// RaisePeak lifts the position peak to the given price if it is higher
// and returns the effective peak. The peak never decreases while held.
func (l *Ledger) RaisePeak(symbol string, price decimal.Decimal) (decimal.Decimal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return decimal.Zero, false
	}
	if price.Cmp(pos.PeakPrice) > 0 {
		pos.PeakPrice = price
	}
	return pos.PeakPrice, true
}

func (l *Ledger) Position(symbol string) (core.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return core.Position{}, false
	}
	return *pos, true
}

// Positions returns a snapshot sorted by symbol, so callers can iterate
// while trades complete concurrently.
func (l *Ledger) Positions() []core.Position {
	l.mu.Lock()
	out := make([]core.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (l *Ledger) OpenPositionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.positions)
}

func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

func (l *Ledger) InitialBalance() decimal.Decimal {
	return l.initialBalance
}

// History returns the most recent trades, newest first. limit <= 0 means all.
func (l *Ledger) History(limit int) []core.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]core.Trade, n)
	copy(out, l.history[:n])
	return out
}

func (l *Ledger) Counters() (total, winning, losing int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalTrades, l.winningTrades, l.losingTrades
}

func (l *Ledger) appendTradeLocked(trade core.Trade) {
	l.history = append([]core.Trade{trade}, l.history...)
}
