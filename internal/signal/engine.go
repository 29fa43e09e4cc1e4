package signal

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
	"github.com/emma2tony07-spec/ProbeBot/internal/market"
)

// Config carries the trading thresholds. It is passed in explicitly and
// swapped atomically via UpdateConfig; nothing reads ambient process state.
type Config struct {
	BuyThresholdPct  decimal.Decimal
	SellThresholdPct decimal.Decimal
	MaxPositions     int
}

type TrackerView interface {
	Instruments() []market.Instrument
}

type LedgerView interface {
	Position(symbol string) (core.Position, bool)
	OpenPositionCount() int
	RaisePeak(symbol string, price decimal.Decimal) (decimal.Decimal, bool)
}

// Engine derives buy/sell signals from tracked prices and ledger state.
// Each Evaluate call recomputes from scratch; the engine carries no state
// of its own between ticks. It does not know about in-flight orders, so
// the same signal may be re-emitted until the execution guard consumes it.
type Engine struct {
	mu      sync.RWMutex
	cfg     Config
	tracker TrackerView
	ledger  LedgerView
}

func NewEngine(cfg Config, tracker TrackerView, ledger LedgerView) *Engine {
	return &Engine{cfg: cfg, tracker: tracker, ledger: ledger}
}

func (e *Engine) UpdateConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

func (e *Engine) ConfigSnapshot() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Evaluate walks the tracked instruments once and returns the finite set
// of signals for this tick.
//
// Held symbols: the peak is lifted to the current price first, then the
// drop from the running peak is compared against the sell threshold. This
// is a trailing stop from the peak, not from the entry price, so a
// position can be signaled away while still profitable.
//
// Flat symbols: the rise from the tracked low is compared against the buy
// threshold, gated on open positions being under capacity at evaluation
// time. The ledger re-validates capacity at execution.
func (e *Engine) Evaluate() []core.Signal {
	cfg := e.ConfigSnapshot()
	hundred := decimal.NewFromInt(100)
	var signals []core.Signal
	open := e.ledger.OpenPositionCount()
	for _, inst := range e.tracker.Instruments() {
		if inst.Current.Cmp(decimal.Zero) <= 0 {
			continue
		}
		if _, held := e.ledger.Position(inst.Symbol); held {
			peak, ok := e.ledger.RaisePeak(inst.Symbol, inst.Current)
			if !ok || peak.Cmp(decimal.Zero) <= 0 {
				continue
			}
			drop := peak.Sub(inst.Current).Div(peak).Mul(hundred)
			if drop.Cmp(cfg.SellThresholdPct) >= 0 {
				signals = append(signals, core.Signal{
					Kind:   core.Sell,
					Symbol: inst.Symbol,
					Reason: "Down " + drop.StringFixed(2) + "% from peak " + peak.String(),
				})
			}
			continue
		}
		if cfg.MaxPositions > 0 && open >= cfg.MaxPositions {
			continue
		}
		if inst.Lowest.Cmp(decimal.Zero) <= 0 {
			continue
		}
		rise := inst.Current.Sub(inst.Lowest).Div(inst.Lowest).Mul(hundred)
		if rise.Cmp(cfg.BuyThresholdPct) >= 0 {
			signals = append(signals, core.Signal{
				Kind:   core.Buy,
				Symbol: inst.Symbol,
				Reason: "Up " + rise.StringFixed(2) + "% from low " + inst.Lowest.String(),
			})
		}
	}
	return signals
}
