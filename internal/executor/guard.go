package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/alert"
	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

// OrderPlacer places one market order. The guard treats it as
// non-idempotent: at most one call per execution, never retried.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, symbol string, side core.Side, qty decimal.Decimal) (core.OrderAck, error)
}

// FillQuerier is the optional reconciliation hook consulted after a
// transport fault to learn whether the order executed anyway.
type FillQuerier interface {
	LastFill(ctx context.Context, symbol string) (core.Fill, bool, error)
}

type PriceView interface {
	CurrentPrice(symbol string) (decimal.Decimal, bool)
}

type LedgerOps interface {
	Buy(symbol string, price, qty decimal.Decimal, reason string) (core.Trade, error)
	Sell(symbol string, price decimal.Decimal, reason string) (core.Trade, error)
	Position(symbol string) (core.Position, bool)
	Positions() []core.Position
	Balance() decimal.Decimal
}

// Config carries the sizing rules, injected explicitly like the signal
// engine config.
type Config struct {
	TradeAmountPct decimal.Decimal
	MinTradeAmount decimal.Decimal
	QuoteCurrency  string
}

// Guard converts one signal into at most one exchange call and at most
// one ledger mutation. A per-symbol in-flight marker rejects duplicate
// concurrent executions; the marker is released on every exit path.
type Guard struct {
	mu     sync.RWMutex
	cfg    Config
	orders OrderPlacer
	fills  FillQuerier
	ledger LedgerOps
	prices PriceView

	inflight *InflightSet

	pendingMu sync.Mutex
	pending   map[string]time.Time

	alerter alert.Alerter
}

func NewGuard(cfg Config, orders OrderPlacer, ledger LedgerOps, prices PriceView) *Guard {
	return &Guard{
		cfg:      cfg,
		orders:   orders,
		ledger:   ledger,
		prices:   prices,
		inflight: NewInflightSet(),
		pending:  make(map[string]time.Time),
	}
}

// SetFillQuerier enables the transport-fault reconciliation step.
func (g *Guard) SetFillQuerier(fills FillQuerier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fills = fills
}

func (g *Guard) SetAlerter(alerter alert.Alerter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.alerter = alerter
}

func (g *Guard) UpdateConfig(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
}

func (g *Guard) configSnapshot() Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// Execute runs one signal. If a prior execution for the same symbol has
// not completed it returns OutcomeAlreadyExecuting without contacting the
// exchange or touching the ledger. The in-flight marker is released
// unconditionally, including on panic in the collaborator.
func (g *Guard) Execute(ctx context.Context, sig core.Signal) Result {
	if !g.inflight.TryAcquire(sig.Symbol) {
		return Result{Signal: sig, Outcome: OutcomeAlreadyExecuting, Err: fmt.Errorf("%s: %w", sig.Symbol, core.ErrAlreadyExecuting)}
	}
	defer g.inflight.Release(sig.Symbol)

	switch sig.Kind {
	case core.Buy:
		return g.buy(ctx, sig)
	case core.Sell:
		return g.sell(ctx, sig)
	default:
		return rejected(sig, fmt.Errorf("unknown signal kind %q", sig.Kind))
	}
}

func (g *Guard) buy(ctx context.Context, sig core.Signal) Result {
	cfg := g.configSnapshot()
	price, ok := g.prices.CurrentPrice(sig.Symbol)
	if !ok || price.Cmp(decimal.Zero) <= 0 {
		return rejected(sig, fmt.Errorf("buy %s: %w", sig.Symbol, core.ErrPriceUnavailable))
	}
	notional := g.ledger.Balance().Mul(cfg.TradeAmountPct).Div(decimal.NewFromInt(100))
	if cfg.MinTradeAmount.Cmp(decimal.Zero) > 0 && notional.Cmp(cfg.MinTradeAmount) < 0 {
		return rejected(sig, fmt.Errorf("buy %s: %w (notional=%s min=%s)", sig.Symbol, core.ErrBelowMinNotional, notional, cfg.MinTradeAmount))
	}
	qty := notional.Div(price)

	ack, err := g.orders.PlaceOrder(ctx, core.PairSymbol(sig.Symbol, cfg.QuoteCurrency), core.Buy, qty)
	if err != nil {
		return g.orderFailure(ctx, sig, core.Buy, price, qty, err)
	}

	trade, err := g.ledger.Buy(sig.Symbol, price, qty, sig.Reason)
	if err != nil {
		// Exchange accepted but the ledger declined: state now diverges
		// from the exchange until an operator intervenes.
		g.alertImportant("ledger_rejected_after_fill", map[string]string{
			"symbol":   sig.Symbol,
			"side":     string(core.Buy),
			"order_id": ack.OrderID,
			"err":      err.Error(),
		})
		return rejected(sig, err)
	}
	g.logExecuted(trade, ack.OrderID)
	return Result{Signal: sig, Outcome: OutcomeFilled, Trade: trade}
}

func (g *Guard) sell(ctx context.Context, sig core.Signal) Result {
	cfg := g.configSnapshot()
	pos, ok := g.ledger.Position(sig.Symbol)
	if !ok {
		return rejected(sig, fmt.Errorf("sell %s: %w", sig.Symbol, core.ErrNoPosition))
	}
	price, ok := g.prices.CurrentPrice(sig.Symbol)
	if !ok || price.Cmp(decimal.Zero) <= 0 {
		return rejected(sig, fmt.Errorf("sell %s: %w", sig.Symbol, core.ErrPriceUnavailable))
	}

	// Full position close; partial sells are not supported.
	ack, err := g.orders.PlaceOrder(ctx, core.PairSymbol(sig.Symbol, cfg.QuoteCurrency), core.Sell, pos.Qty)
	if err != nil {
		return g.orderFailure(ctx, sig, core.Sell, price, pos.Qty, err)
	}

	trade, err := g.ledger.Sell(sig.Symbol, price, sig.Reason)
	if err != nil {
		g.alertImportant("ledger_rejected_after_fill", map[string]string{
			"symbol":   sig.Symbol,
			"side":     string(core.Sell),
			"order_id": ack.OrderID,
			"err":      err.Error(),
		})
		return rejected(sig, err)
	}
	g.logExecuted(trade, ack.OrderID)
	return Result{Signal: sig, Outcome: OutcomeFilled, Trade: trade}
}

// orderFailure classifies a collaborator error. An explicit exchange
// rejection is final and mutates nothing. Anything else is a transport
// fault: the order may have executed remotely, so the guard attempts one
// follow-up fill query and otherwise flags the symbol for manual
// reconciliation.
func (g *Guard) orderFailure(ctx context.Context, sig core.Signal, side core.Side, price, qty decimal.Decimal, err error) Result {
	if errors.Is(err, core.ErrOrderRejected) || errors.Is(err, core.ErrInsufficientBalance) {
		return Result{Signal: sig, Outcome: OutcomeExchangeRejected, Err: err}
	}
	if res, ok := g.reconcileFault(ctx, sig, side, err); ok {
		return res
	}
	g.markPending(sig.Symbol)
	g.alertImportant("order_transport_fault", map[string]string{
		"symbol": sig.Symbol,
		"side":   string(side),
		"price":  price.String(),
		"qty":    qty.String(),
		"err":    err.Error(),
		"action": "manual_reconcile_required",
	})
	return Result{Signal: sig, Outcome: OutcomeTransportFault, Err: err}
}

// reconcileFault asks the optional fill querier whether the unconfirmed
// order actually executed. A confirmed matching fill is applied to the
// ledger so internal state follows the exchange.
func (g *Guard) reconcileFault(ctx context.Context, sig core.Signal, side core.Side, cause error) (Result, bool) {
	g.mu.RLock()
	fills := g.fills
	cfg := g.cfg
	g.mu.RUnlock()
	if fills == nil {
		return Result{}, false
	}
	fill, ok, err := fills.LastFill(ctx, core.PairSymbol(sig.Symbol, cfg.QuoteCurrency))
	if err != nil || !ok || fill.Side != side {
		return Result{}, false
	}
	if time.Since(fill.Time) > time.Minute {
		return Result{}, false
	}
	var trade core.Trade
	switch side {
	case core.Buy:
		trade, err = g.ledger.Buy(sig.Symbol, fill.Price, fill.Qty, sig.Reason)
	case core.Sell:
		trade, err = g.ledger.Sell(sig.Symbol, fill.Price, sig.Reason)
	}
	if err != nil {
		return Result{}, false
	}
	g.alertImportant("order_fault_reconciled", map[string]string{
		"symbol": sig.Symbol,
		"side":   string(side),
		"price":  fill.Price.String(),
		"qty":    fill.Qty.String(),
		"cause":  cause.Error(),
	})
	g.logExecuted(trade, "")
	return Result{Signal: sig, Outcome: OutcomeFilled, Trade: trade}, true
}

// ExecuteAll runs the signals strictly in order, collecting one result
// per signal and continuing past individual failures.
func (g *Guard) ExecuteAll(ctx context.Context, signals []core.Signal) []Result {
	results := make([]Result, 0, len(signals))
	for _, sig := range signals {
		results = append(results, g.Execute(ctx, sig))
	}
	return results
}

// CloseAllPositions sells every open position with reason
// "Emergency close". It iterates a snapshot, so positions closed while
// iterating do not perturb the walk.
func (g *Guard) CloseAllPositions(ctx context.Context) []Result {
	positions := g.ledger.Positions()
	results := make([]Result, 0, len(positions))
	for _, pos := range positions {
		results = append(results, g.Execute(ctx, core.Signal{
			Kind:   core.Sell,
			Symbol: pos.Symbol,
			Reason: "Emergency close",
		}))
	}
	return results
}

// PendingReconciliation lists symbols whose last execution ended in an
// unresolved transport fault.
func (g *Guard) PendingReconciliation() []string {
	g.pendingMu.Lock()
	defer g.pendingMu.Unlock()
	out := make([]string, 0, len(g.pending))
	for sym := range g.pending {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (g *Guard) ClearPending(symbol string) {
	g.pendingMu.Lock()
	defer g.pendingMu.Unlock()
	delete(g.pending, symbol)
}

func (g *Guard) markPending(symbol string) {
	g.pendingMu.Lock()
	defer g.pendingMu.Unlock()
	g.pending[symbol] = time.Now().UTC()
}

func (g *Guard) logExecuted(trade core.Trade, orderID string) {
	log.Printf(
		"level=INFO event=order_executed kind=%q symbol=%q price=%q qty=%q notional=%q order_id=%q reason=%q",
		string(trade.Kind),
		trade.Symbol,
		trade.Price.String(),
		trade.Qty.String(),
		trade.Notional.String(),
		orderID,
		trade.Reason,
	)
}

func (g *Guard) alertImportant(event string, fields map[string]string) {
	g.mu.RLock()
	alerter := g.alerter
	g.mu.RUnlock()
	if alerter == nil {
		return
	}
	alerter.Important(event, fields)
}
