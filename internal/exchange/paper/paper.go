package paper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

// Exchange is an offline fill simulator. Orders fill immediately at the
// last simulated price and ticks are produced by a bounded random walk,
// so the full engine loop can run without credentials or a network.
type Exchange struct {
	mu       sync.Mutex
	prices   map[string]decimal.Decimal
	anchors  map[string]decimal.Decimal
	stepPct  decimal.Decimal
	interval time.Duration
	orderSeq int64
	rng      *rand.Rand
	now      func() time.Time
}

// Seed maps pair symbols to their starting prices.
type Seed map[string]decimal.Decimal

func New(seed Seed) (*Exchange, error) {
	if len(seed) == 0 {
		return nil, errors.New("at least one seeded symbol required")
	}
	prices := make(map[string]decimal.Decimal, len(seed))
	anchors := make(map[string]decimal.Decimal, len(seed))
	for sym, price := range seed {
		if price.Cmp(decimal.Zero) <= 0 {
			return nil, fmt.Errorf("seed price for %s must be > 0", sym)
		}
		prices[sym] = price
		anchors[sym] = price
	}
	now := time.Now
	return &Exchange{
		prices:   prices,
		anchors:  anchors,
		stepPct:  decimal.NewFromFloat(0.4),
		interval: time.Second,
		rng:      rand.New(rand.NewSource(now().UnixNano())),
		now:      now,
	}, nil
}

func (e *Exchange) Name() string { return "paper" }

// PlaceOrder fills at the last simulated price. Unknown symbols are
// rejected the same way the live venue rejects an unlisted pair.
func (e *Exchange) PlaceOrder(ctx context.Context, symbol string, side core.Side, qty decimal.Decimal) (core.OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return core.OrderAck{}, err
	}
	if qty.Cmp(decimal.Zero) <= 0 {
		return core.OrderAck{}, fmt.Errorf("%w: quantity must be > 0", core.ErrOrderRejected)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.prices[symbol]; !ok {
		return core.OrderAck{}, fmt.Errorf("%w: unknown symbol %s", core.ErrOrderRejected, symbol)
	}
	e.orderSeq++
	return core.OrderAck{
		OrderID: fmt.Sprintf("paper-%d", e.orderSeq),
		Symbol:  symbol,
		Side:    side,
		Qty:     qty,
	}, nil
}

func (e *Exchange) TickerSnapshot(ctx context.Context) ([]core.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	tickers := make([]core.Ticker, 0, len(e.prices))
	for sym, price := range e.prices {
		tickers = append(tickers, core.Ticker{
			Symbol:      sym,
			LastPrice:   price,
			QuoteVolume: price.Mul(decimal.NewFromInt(1000)),
		})
	}
	sort.Slice(tickers, func(i, j int) bool { return tickers[i].Symbol < tickers[j].Symbol })
	return tickers, nil
}

// PercentChange reports movement since the session anchor. The window is
// ignored; a paper session rarely outlives one.
func (e *Exchange) PercentChange(ctx context.Context, symbol string, window time.Duration) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	price, ok := e.prices[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", core.ErrPriceUnavailable, symbol)
	}
	anchor := e.anchors[symbol]
	return price.Sub(anchor).Div(anchor).Mul(decimal.NewFromInt(100)), nil
}

func (e *Exchange) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	price, ok := e.prices[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", core.ErrPriceUnavailable, symbol)
	}
	return price, nil
}

func (e *Exchange) Close() error { return nil }

// Ticks emits random-walk prices for the requested symbols until the
// context ends. The walk is bounded to ±stepPct per step so thresholds
// trip at a believable pace.
func (e *Exchange) Ticks(ctx context.Context, symbols []string) (<-chan core.Tick, <-chan error, error) {
	if len(symbols) == 0 {
		return nil, nil, errors.New("at least one symbol required")
	}
	e.mu.Lock()
	for _, sym := range symbols {
		if _, ok := e.prices[sym]; !ok {
			e.mu.Unlock()
			return nil, nil, fmt.Errorf("%w: %s", core.ErrPriceUnavailable, sym)
		}
	}
	e.mu.Unlock()

	ticks := make(chan core.Tick, 64)
	errs := make(chan error, 1)
	go func() {
		defer close(ticks)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case <-ticker.C:
			}
			for _, sym := range symbols {
				tick := e.step(sym)
				select {
				case ticks <- tick:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()
	return ticks, errs, nil
}

func (e *Exchange) step(symbol string) core.Tick {
	e.mu.Lock()
	defer e.mu.Unlock()
	price := e.prices[symbol]
	// uniform in [-stepPct, +stepPct]
	drift := decimal.NewFromFloat(e.rng.Float64()*2 - 1).Mul(e.stepPct)
	next := price.Mul(decimal.NewFromInt(100).Add(drift)).Div(decimal.NewFromInt(100))
	if next.Cmp(decimal.Zero) <= 0 {
		next = price
	}
	e.prices[symbol] = next
	return core.Tick{Symbol: symbol, Price: next, Time: e.now().UTC()}
}
