package paper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestExchange(t *testing.T) *Exchange {
	t.Helper()
	ex, err := New(Seed{
		"BTCUSDT": dec("65000"),
		"ETHUSDT": dec("3400"),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ex
}

func TestPaperPlaceOrderFillsAtLastPrice(t *testing.T) {
	ex := newTestExchange(t)

	ack, err := ex.PlaceOrder(context.Background(), "BTCUSDT", core.Buy, dec("0.1"))
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if ack.OrderID == "" || ack.Symbol != "BTCUSDT" || ack.Side != core.Buy {
		t.Fatalf("ack = %+v", ack)
	}

	second, err := ex.PlaceOrder(context.Background(), "BTCUSDT", core.Sell, dec("0.1"))
	if err != nil {
		t.Fatalf("PlaceOrder(second) error = %v", err)
	}
	if second.OrderID == ack.OrderID {
		t.Fatalf("order IDs must be unique, both %s", ack.OrderID)
	}
}

func TestPaperPlaceOrderRejectsUnknownSymbolAndBadQty(t *testing.T) {
	ex := newTestExchange(t)

	if _, err := ex.PlaceOrder(context.Background(), "DOGEUSDT", core.Buy, dec("1")); !errors.Is(err, core.ErrOrderRejected) {
		t.Fatalf("PlaceOrder(unknown) error = %v, want ErrOrderRejected", err)
	}
	if _, err := ex.PlaceOrder(context.Background(), "BTCUSDT", core.Buy, decimal.Zero); !errors.Is(err, core.ErrOrderRejected) {
		t.Fatalf("PlaceOrder(zero qty) error = %v, want ErrOrderRejected", err)
	}
}

func TestPaperPercentChangeFromSessionAnchor(t *testing.T) {
	ex := newTestExchange(t)

	change, err := ex.PercentChange(context.Background(), "BTCUSDT", time.Hour)
	if err != nil {
		t.Fatalf("PercentChange() error = %v", err)
	}
	if change.Sign() != 0 {
		t.Fatalf("PercentChange(before any steps) = %s, want 0", change)
	}

	ex.mu.Lock()
	ex.prices["BTCUSDT"] = dec("66300")
	ex.mu.Unlock()
	change, err = ex.PercentChange(context.Background(), "BTCUSDT", time.Hour)
	if err != nil {
		t.Fatalf("PercentChange() error = %v", err)
	}
	if !change.Equal(dec("2")) {
		t.Fatalf("PercentChange() = %s, want 2", change)
	}

	if _, err := ex.PercentChange(context.Background(), "DOGEUSDT", time.Hour); !errors.Is(err, core.ErrPriceUnavailable) {
		t.Fatalf("PercentChange(unknown) error = %v, want ErrPriceUnavailable", err)
	}
}

func TestPaperTickerSnapshotSorted(t *testing.T) {
	ex := newTestExchange(t)
	tickers, err := ex.TickerSnapshot(context.Background())
	if err != nil {
		t.Fatalf("TickerSnapshot() error = %v", err)
	}
	if len(tickers) != 2 || tickers[0].Symbol != "BTCUSDT" || tickers[1].Symbol != "ETHUSDT" {
		t.Fatalf("TickerSnapshot() = %+v, want sorted [BTCUSDT ETHUSDT]", tickers)
	}
}

func TestPaperTicksProduceBoundedWalk(t *testing.T) {
	ex := newTestExchange(t)
	ex.interval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ticks, _, err := ex.Ticks(ctx, []string{"BTCUSDT"})
	if err != nil {
		t.Fatalf("Ticks() error = %v", err)
	}

	prev := dec("65000")
	for i := 0; i < 5; i++ {
		tick, ok := <-ticks
		if !ok {
			t.Fatalf("tick channel closed after %d ticks", i)
		}
		if tick.Symbol != "BTCUSDT" {
			t.Fatalf("tick symbol = %s, want BTCUSDT", tick.Symbol)
		}
		if tick.Price.Cmp(decimal.Zero) <= 0 {
			t.Fatalf("tick price = %s, want > 0", tick.Price)
		}
		stepPct := tick.Price.Sub(prev).Div(prev).Mul(dec("100")).Abs()
		if stepPct.Cmp(dec("0.41")) > 0 {
			t.Fatalf("step %d moved %s%%, want <= 0.4%%", i, stepPct)
		}
		prev = tick.Price
	}
	cancel()
}

func TestPaperTicksRejectsUnknownSymbol(t *testing.T) {
	ex := newTestExchange(t)
	if _, _, err := ex.Ticks(context.Background(), []string{"DOGEUSDT"}); !errors.Is(err, core.ErrPriceUnavailable) {
		t.Fatalf("Ticks(unknown) error = %v, want ErrPriceUnavailable", err)
	}
}
