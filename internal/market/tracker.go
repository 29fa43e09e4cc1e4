package market

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Instrument is a read-only snapshot of one tracked symbol.
// Highest >= Current >= Lowest >= 0 holds at all times.
type Instrument struct {
	Symbol    string
	Current   decimal.Decimal
	Highest   decimal.Decimal
	Lowest    decimal.Decimal
	UpdatedAt time.Time
}

// Tracker maintains rolling price extrema per instrument. It is mutated
// from the tick loop and the streaming price callback concurrently, so
// every read-modify-write sequence runs under the mutex.
type Tracker struct {
	mu          sync.Mutex
	instruments map[string]*Instrument
	now         func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		instruments: make(map[string]*Instrument),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// StartMonitoring inserts the symbol with high = low = current. Calling it
// again for a monitored symbol is a no-op.
func (t *Tracker) StartMonitoring(symbol string, price decimal.Decimal) {
	if symbol == "" || price.Cmp(decimal.Zero) <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.instruments[symbol]; ok {
		return
	}
	t.instruments[symbol] = &Instrument{
		Symbol:    symbol,
		Current:   price,
		Highest:   price,
		Lowest:    price,
		UpdatedAt: t.now(),
	}
}

// ObservePrice updates the current price and extends the extrema. Updates
// for symbols that are not monitored are dropped silently.
func (t *Tracker) ObservePrice(symbol string, price decimal.Decimal) {
	if price.Cmp(decimal.Zero) <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.instruments[symbol]
	if !ok {
		return
	}
	inst.Current = price
	if price.Cmp(inst.Highest) > 0 {
		inst.Highest = price
	}
	if price.Cmp(inst.Lowest) < 0 {
		inst.Lowest = price
	}
	inst.UpdatedAt = t.now()
}

// ResetExtrema collapses the extrema to the current price so the next
// evaluation measures movement from the post-trade price. Idempotent.
func (t *Tracker) ResetExtrema(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.instruments[symbol]
	if !ok {
		return
	}
	inst.Highest = inst.Current
	inst.Lowest = inst.Current
	inst.UpdatedAt = t.now()
}

func (t *Tracker) StopMonitoring(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.instruments, symbol)
}

func (t *Tracker) IsMonitored(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.instruments[symbol]
	return ok
}

func (t *Tracker) Instrument(symbol string) (Instrument, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.instruments[symbol]
	if !ok {
		return Instrument{}, false
	}
	return *inst, true
}

// CurrentPrice reports the last observed price for a monitored symbol.
func (t *Tracker) CurrentPrice(symbol string) (decimal.Decimal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.instruments[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return inst.Current, true
}

// Instruments returns a snapshot sorted by symbol.
func (t *Tracker) Instruments() []Instrument {
	t.mu.Lock()
	out := make([]Instrument, 0, len(t.instruments))
	for _, inst := range t.instruments {
		out = append(out, *inst)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
