package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

// Exchange is the full collaborator surface the engine composes against.
// The core packages declare narrower consumer-side interfaces; this one
// exists so main can wire a single implementation per mode.
type Exchange interface {
	Name() string
	PlaceOrder(ctx context.Context, symbol string, side core.Side, qty decimal.Decimal) (core.OrderAck, error)
	TickerSnapshot(ctx context.Context) ([]core.Ticker, error)
	PercentChange(ctx context.Context, symbol string, window time.Duration) (decimal.Decimal, error)
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Close() error
}

// Streamer delivers asynchronous price ticks for the given pair symbols.
// The tick channel closes when the stream dies; the error channel carries
// the terminal cause. Reconnecting is the caller's job.
type Streamer interface {
	Ticks(ctx context.Context, symbols []string) (<-chan core.Tick, <-chan error, error)
}
