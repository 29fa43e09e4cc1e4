package binance

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

const streamReadLimit = 1 << 20

// Ticks subscribes to the combined miniTicker streams for the given pair
// symbols and pushes one Tick per update. The tick channel closes when
// the connection dies; the error channel then carries the cause. The
// caller owns reconnection.
func (c *Client) Ticks(ctx context.Context, symbols []string) (<-chan core.Tick, <-chan error, error) {
	if c.wsBaseURL == "" {
		return nil, nil, errors.New("ws base url required")
	}
	if len(symbols) == 0 {
		return nil, nil, errors.New("at least one symbol required")
	}
	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		streams = append(streams, strings.ToLower(sym)+"@miniTicker")
	}
	endpoint := c.wsBaseURL + "/stream?streams=" + strings.Join(streams, "/")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, nil, err
	}
	conn.SetReadLimit(streamReadLimit)
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	ticks := make(chan core.Tick, 64)
	errs := make(chan error, 1)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(ticks)
		defer conn.Close()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					errs <- ctx.Err()
				} else {
					errs <- err
				}
				return
			}
			var msg combinedStreamMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			if msg.Data.EventType != "24hrMiniTicker" || msg.Data.Symbol == "" {
				continue
			}
			price, err := decimal.NewFromString(msg.Data.Close)
			if err != nil || price.Cmp(decimal.Zero) <= 0 {
				continue
			}
			tick := core.Tick{
				Symbol: msg.Data.Symbol,
				Price:  price,
				Time:   time.UnixMilli(msg.Data.EventTime).UTC(),
			}
			select {
			case ticks <- tick:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return ticks, errs, nil
}
