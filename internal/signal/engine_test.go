package signal

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
	"github.com/emma2tony07-spec/ProbeBot/internal/market"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeLedger struct {
	positions map[string]*core.Position
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{positions: make(map[string]*core.Position)}
}

func (f *fakeLedger) hold(symbol string, entry, peak string) {
	f.positions[symbol] = &core.Position{
		Symbol:     symbol,
		Qty:        dec("1"),
		EntryPrice: dec(entry),
		PeakPrice:  dec(peak),
	}
}

func (f *fakeLedger) Position(symbol string) (core.Position, bool) {
	pos, ok := f.positions[symbol]
	if !ok {
		return core.Position{}, false
	}
	return *pos, true
}

func (f *fakeLedger) OpenPositionCount() int { return len(f.positions) }

func (f *fakeLedger) RaisePeak(symbol string, price decimal.Decimal) (decimal.Decimal, bool) {
	pos, ok := f.positions[symbol]
	if !ok {
		return decimal.Zero, false
	}
	if price.Cmp(pos.PeakPrice) > 0 {
		pos.PeakPrice = price
	}
	return pos.PeakPrice, true
}

func defaultConfig() Config {
	return Config{
		BuyThresholdPct:  dec("2"),
		SellThresholdPct: dec("2"),
		MaxPositions:     4,
	}
}

func TestEvaluateBuyAtExactThreshold(t *testing.T) {
	tracker := market.NewTracker()
	tracker.StartMonitoring("BTC", dec("100"))
	tracker.ObservePrice("BTC", dec("102"))
	eng := NewEngine(defaultConfig(), tracker, newFakeLedger())

	signals := eng.Evaluate()
	if len(signals) != 1 {
		t.Fatalf("Evaluate() = %v, want one buy at exactly 2.00%%", signals)
	}
	if signals[0].Kind != core.Buy || signals[0].Symbol != "BTC" {
		t.Fatalf("signal = %+v, want buy BTC", signals[0])
	}
}

func TestEvaluateNoBuyJustUnderThreshold(t *testing.T) {
	tracker := market.NewTracker()
	tracker.StartMonitoring("BTC", dec("100"))
	tracker.ObservePrice("BTC", dec("101.999"))
	eng := NewEngine(defaultConfig(), tracker, newFakeLedger())

	if signals := eng.Evaluate(); len(signals) != 0 {
		t.Fatalf("Evaluate() = %v, want none at 1.999%%", signals)
	}
}

func TestEvaluateTrailingStopFromPeak(t *testing.T) {
	tracker := market.NewTracker()
	tracker.StartMonitoring("BTC", dec("102"))
	tracker.ObservePrice("BTC", dec("110"))
	led := newFakeLedger()
	led.hold("BTC", "102", "102")
	eng := NewEngine(defaultConfig(), tracker, led)

	// at the new peak the drop is zero
	if signals := eng.Evaluate(); len(signals) != 0 {
		t.Fatalf("Evaluate(at peak) = %v, want none", signals)
	}
	if pos, _ := led.Position("BTC"); !pos.PeakPrice.Equal(dec("110")) {
		t.Fatalf("peak = %s, want raised to 110", pos.PeakPrice)
	}

	// (110 - 106.59) / 110 * 100 = 3.1% >= 2%
	tracker.ObservePrice("BTC", dec("106.59"))
	signals := eng.Evaluate()
	if len(signals) != 1 || signals[0].Kind != core.Sell {
		t.Fatalf("Evaluate(after drop) = %v, want one sell", signals)
	}
}

func TestEvaluatePeakRaisedBeforeDropIsMeasured(t *testing.T) {
	tracker := market.NewTracker()
	tracker.StartMonitoring("BTC", dec("100"))
	tracker.ObservePrice("BTC", dec("200"))
	led := newFakeLedger()
	led.hold("BTC", "100", "100")
	eng := NewEngine(defaultConfig(), tracker, led)

	// the same tick that doubles the price must not also trigger the
	// stop against the stale peak
	if signals := eng.Evaluate(); len(signals) != 0 {
		t.Fatalf("Evaluate() = %v, want none when price and peak move together", signals)
	}
}

func TestEvaluateHeldSymbolNeverSignalsBuy(t *testing.T) {
	tracker := market.NewTracker()
	tracker.StartMonitoring("BTC", dec("100"))
	tracker.ObservePrice("BTC", dec("90"))
	tracker.ObservePrice("BTC", dec("95"))
	led := newFakeLedger()
	led.hold("BTC", "100", "100")
	eng := NewEngine(defaultConfig(), tracker, led)

	for _, sig := range eng.Evaluate() {
		if sig.Kind == core.Buy {
			t.Fatalf("buy signal emitted for held symbol %s", sig.Symbol)
		}
	}
}

func TestEvaluateBuySuppressedAtCapacity(t *testing.T) {
	tracker := market.NewTracker()
	tracker.StartMonitoring("XRP", dec("1"))
	tracker.ObservePrice("XRP", dec("1.05"))
	led := newFakeLedger()
	for _, sym := range []string{"BTC", "ETH", "SOL", "BNB"} {
		led.hold(sym, "10", "10")
	}
	eng := NewEngine(defaultConfig(), tracker, led)

	if signals := eng.Evaluate(); len(signals) != 0 {
		t.Fatalf("Evaluate() = %v, want none at max positions", signals)
	}
}

func TestEvaluateSellStillEmittedAtCapacity(t *testing.T) {
	tracker := market.NewTracker()
	tracker.StartMonitoring("BTC", dec("110"))
	tracker.ObservePrice("BTC", dec("100"))
	led := newFakeLedger()
	for _, sym := range []string{"BTC", "ETH", "SOL", "BNB"} {
		led.hold(sym, "100", "110")
	}
	eng := NewEngine(defaultConfig(), tracker, led)

	signals := eng.Evaluate()
	if len(signals) != 1 || signals[0].Kind != core.Sell || signals[0].Symbol != "BTC" {
		t.Fatalf("Evaluate() = %v, want sell BTC despite full capacity", signals)
	}
}

func TestEvaluateUsesUpdatedConfig(t *testing.T) {
	tracker := market.NewTracker()
	tracker.StartMonitoring("BTC", dec("100"))
	tracker.ObservePrice("BTC", dec("103"))
	eng := NewEngine(defaultConfig(), tracker, newFakeLedger())

	if signals := eng.Evaluate(); len(signals) != 1 {
		t.Fatalf("Evaluate() = %v, want one buy at 3%% rise", signals)
	}

	cfg := defaultConfig()
	cfg.BuyThresholdPct = dec("5")
	eng.UpdateConfig(cfg)
	if signals := eng.Evaluate(); len(signals) != 0 {
		t.Fatalf("Evaluate() = %v, want none after threshold raised to 5%%", signals)
	}
}
