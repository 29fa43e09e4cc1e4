package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/alert"
	"github.com/emma2tony07-spec/ProbeBot/internal/core"
	"github.com/emma2tony07-spec/ProbeBot/internal/exchange"
	"github.com/emma2tony07-spec/ProbeBot/internal/executor"
	"github.com/emma2tony07-spec/ProbeBot/internal/journal"
	"github.com/emma2tony07-spec/ProbeBot/internal/ledger"
	"github.com/emma2tony07-spec/ProbeBot/internal/market"
	"github.com/emma2tony07-spec/ProbeBot/internal/safety"
	"github.com/emma2tony07-spec/ProbeBot/internal/signal"
)

const maxStreamBackoff = 30 * time.Second

// Controller drives the trading session: it keeps the monitored set in
// sync with the top movers, feeds stream ticks into the tracker, runs
// one evaluate-execute pass per tick interval and journals the fills.
// Dependencies are plain fields; Run owns all goroutines it starts.
type Controller struct {
	Exchange   exchange.Exchange
	Streamer   exchange.Streamer
	Tracker    *market.Tracker
	Ledger     *ledger.Ledger
	Signals    *signal.Engine
	Guard      *executor.Guard
	Journal    *journal.Journal
	Breaker    *safety.Breaker
	Alerts     alert.Alerter
	Mode       string
	Quote      string
	InstanceID string

	TickInterval  time.Duration
	MoversCount   int
	MoversRefresh time.Duration
	MoversWindow  time.Duration
	Heartbeat     time.Duration

	mu                sync.Mutex
	paused            bool
	state             string
	startedAt         time.Time
	reconnectAttempts int
	disconnectedAt    time.Time
	lastError         string

	resub chan struct{}
}

// TradingParams is the runtime-adjustable slice of the configuration.
// Applying it swaps the signal thresholds, the sizing rules and the
// ledger limits together so no component evaluates a mixed config.
type TradingParams struct {
	BuyThresholdPct  decimal.Decimal
	SellThresholdPct decimal.Decimal
	TradeAmountPct   decimal.Decimal
	MinTradeAmount   decimal.Decimal
	MaxPositions     int
}

func (c *Controller) Run(ctx context.Context) (runErr error) {
	if err := c.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.startedAt = time.Now().UTC()
	c.state = "starting"
	c.resub = make(chan struct{}, 1)
	c.mu.Unlock()
	c.persistRuntimeStatus(nil)

	defer func() {
		err := runErr
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		c.setState("stopped")
		c.persistRuntimeStatus(err)
	}()

	if err := c.refreshMovers(ctx); err != nil {
		log.Printf("level=WARN event=movers_initial_refresh_failed err=%q", err.Error())
	}

	var wg sync.WaitGroup
	if c.Streamer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.streamLoop(ctx)
		}()
	}
	defer wg.Wait()

	c.setState("running")
	c.persistRuntimeStatus(nil)
	log.Printf("level=INFO event=controller_started mode=%q quote=%q tick_sec=%d movers=%d",
		c.Mode, c.Quote, int64(c.TickInterval/time.Second), c.MoversCount)

	tick := time.NewTicker(c.TickInterval)
	defer tick.Stop()
	movers := time.NewTicker(c.MoversRefresh)
	defer movers.Stop()
	var heartbeat <-chan time.Time
	if c.Heartbeat > 0 {
		hb := time.NewTicker(c.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	for {
		select {
		case <-tick.C:
			c.evaluateOnce(ctx)
		case <-movers.C:
			if err := c.refreshMovers(ctx); err != nil {
				log.Printf("level=WARN event=movers_refresh_failed err=%q", err.Error())
			}
		case <-heartbeat:
			c.persistRuntimeStatus(nil)
		case <-ctx.Done():
			runErr = ctx.Err()
			return runErr
		}
	}
}

func (c *Controller) validate() error {
	switch {
	case c.Exchange == nil:
		return errors.New("exchange is required")
	case c.Tracker == nil:
		return errors.New("tracker is required")
	case c.Ledger == nil:
		return errors.New("ledger is required")
	case c.Signals == nil:
		return errors.New("signal engine is required")
	case c.Guard == nil:
		return errors.New("execution guard is required")
	case c.Quote == "":
		return errors.New("quote currency is required")
	case c.TickInterval <= 0:
		return errors.New("tick interval must be > 0")
	case c.MoversCount < 1:
		return errors.New("movers count must be >= 1")
	case c.MoversRefresh <= 0:
		return errors.New("movers refresh interval must be > 0")
	case c.MoversWindow <= 0:
		return errors.New("movers window must be > 0")
	}
	return nil
}

// evaluateOnce runs one signal pass and executes the resulting signals
// strictly in order. Fills go to the journal; journal failures are
// logged but never block trading.
func (c *Controller) evaluateOnce(ctx context.Context) {
	if c.Paused() {
		return
	}
	signals := c.Signals.Evaluate()
	if len(signals) == 0 {
		return
	}
	results := c.Guard.ExecuteAll(ctx, signals)
	c.recordResults(results)
}

func (c *Controller) recordResults(results []executor.Result) {
	for _, res := range results {
		switch res.Outcome {
		case executor.OutcomeFilled:
			c.journalTrade(res.Trade)
		case executor.OutcomeAlreadyExecuting:
			log.Printf("level=INFO event=signal_skipped symbol=%q reason=%q", res.Signal.Symbol, "already_executing")
		case executor.OutcomeRejected, executor.OutcomeExchangeRejected:
			log.Printf("level=WARN event=signal_rejected symbol=%q side=%q err=%q", res.Signal.Symbol, res.Signal.Kind, errText(res.Err))
		case executor.OutcomeTransportFault:
			log.Printf("level=ERROR event=order_unconfirmed symbol=%q side=%q err=%q", res.Signal.Symbol, res.Signal.Kind, errText(res.Err))
		}
	}
}

func (c *Controller) journalTrade(trade core.Trade) {
	if c.Journal == nil {
		return
	}
	if err := c.Journal.AppendTrade(trade); err != nil {
		log.Printf("level=WARN event=trade_journal_failed trade_id=%q err=%q", trade.ID, err.Error())
	}
}

// refreshMovers re-ranks the market and reconciles the monitored set:
// new top movers start being tracked, dropped ones stop, and symbols
// with an open position are always retained so their trailing stop
// keeps working.
func (c *Controller) refreshMovers(ctx context.Context) error {
	tickers, err := c.Exchange.TickerSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("ticker snapshot: %w", err)
	}
	ranked := market.RankMovers(ctx, tickers, c.Quote, c.MoversWindow, c.MoversCount, c.Exchange.PercentChange)

	desired := make(map[string]decimal.Decimal, len(ranked))
	for _, mv := range ranked {
		desired[mv.Base] = mv.LastPrice
	}
	for _, pos := range c.Ledger.Positions() {
		if _, ok := desired[pos.Symbol]; !ok {
			desired[pos.Symbol] = decimal.Zero
		}
	}

	changed := false
	for _, inst := range c.Tracker.Instruments() {
		if _, keep := desired[inst.Symbol]; keep {
			delete(desired, inst.Symbol)
			continue
		}
		c.Tracker.StopMonitoring(inst.Symbol)
		changed = true
	}
	for symbol, price := range desired {
		if price.Cmp(decimal.Zero) <= 0 {
			// retained position symbol that fell out of the ranking;
			// already monitored unless the tracker was wiped externally
			if c.Tracker.IsMonitored(symbol) {
				continue
			}
			fetched, err := c.Exchange.TickerPrice(ctx, core.PairSymbol(symbol, c.Quote))
			if err != nil {
				log.Printf("level=WARN event=monitor_price_fetch_failed symbol=%q err=%q", symbol, err.Error())
				continue
			}
			price = fetched
		}
		c.Tracker.StartMonitoring(symbol, price)
		changed = true
	}

	log.Printf("level=INFO event=movers_refreshed ranked=%d monitored=%d", len(ranked), len(c.Tracker.Instruments()))
	if changed {
		c.requestResubscribe()
	}
	return nil
}

func (c *Controller) requestResubscribe() {
	c.mu.Lock()
	resub := c.resub
	c.mu.Unlock()
	if resub == nil {
		return
	}
	select {
	case resub <- struct{}{}:
	default:
	}
}

// streamLoop keeps one price stream alive for the monitored set. On
// failure it backs off exponentially up to maxStreamBackoff, consulting
// the circuit breaker before each redial. Membership changes tear down
// the subscription so the next dial covers the new set.
func (c *Controller) streamLoop(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if c.reconnecting() && c.Breaker != nil {
			if allowErr := c.Breaker.AllowReconnect(); allowErr != nil {
				wait := time.Second
				if rem := c.Breaker.CooldownRemaining(); rem > wait {
					wait = rem
				}
				if !sleepCtx(ctx, wait) {
					return
				}
				continue
			}
		}
		symbols := c.monitoredPairs()
		if len(symbols) == 0 {
			if !c.waitForSymbols(ctx) {
				return
			}
			continue
		}
		if !c.consumeStream(ctx, symbols, &backoff) {
			return
		}
	}
}

// consumeStream dials once and pumps ticks until the stream dies or a
// resubscribe is requested. It returns false only when ctx is done.
func (c *Controller) consumeStream(ctx context.Context, symbols []string, backoff *time.Duration) bool {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ticks, errs, err := c.Streamer.Ticks(subCtx, symbols)
	if err != nil {
		return c.streamFailed(ctx, err, backoff)
	}
	c.streamConnected()
	*backoff = time.Second

	resub := c.resubChan()
	for {
		select {
		case tick, ok := <-ticks:
			if !ok {
				cause := errors.New("price stream closed")
				select {
				case err, ok := <-errs:
					if ok && err != nil {
						cause = err
					}
				default:
				}
				if ctx.Err() != nil {
					return false
				}
				return c.streamFailed(ctx, cause, backoff)
			}
			if base, ok := core.BaseToken(tick.Symbol, c.Quote); ok {
				c.Tracker.ObservePrice(base, tick.Price)
			}
		case <-resub:
			log.Printf("level=INFO event=stream_resubscribe symbols=%d", len(c.monitoredPairs()))
			return true
		case <-ctx.Done():
			return false
		}
	}
}

// streamFailed records one failed attempt and sleeps the backoff. It
// returns false only when ctx is done.
func (c *Controller) streamFailed(ctx context.Context, cause error, backoff *time.Duration) bool {
	c.mu.Lock()
	c.reconnectAttempts++
	attempts := c.reconnectAttempts
	first := c.disconnectedAt.IsZero()
	if first {
		c.disconnectedAt = time.Now().UTC()
	}
	c.lastError = cause.Error()
	c.mu.Unlock()

	log.Printf("level=WARN event=stream_disconnected attempts=%d err=%q", attempts, cause.Error())
	if first {
		c.alertImportant("price_stream_disconnected", map[string]string{
			"reason": cause.Error(),
		})
	}
	c.persistRuntimeStatus(cause)

	var trip error
	if c.Breaker != nil {
		trip = c.Breaker.RecordReconnect(cause)
	}
	wait := *backoff
	if trip != nil && errors.Is(trip, safety.ErrCircuitOpen) && c.Breaker != nil {
		if rem := c.Breaker.CooldownRemaining(); rem > wait {
			wait = rem
		}
	}
	if !sleepCtx(ctx, wait) {
		return false
	}
	if *backoff < maxStreamBackoff {
		*backoff *= 2
		if *backoff > maxStreamBackoff {
			*backoff = maxStreamBackoff
		}
	}
	return true
}

func (c *Controller) streamConnected() {
	c.mu.Lock()
	attempts := c.reconnectAttempts
	downSince := c.disconnectedAt
	c.reconnectAttempts = 0
	c.disconnectedAt = time.Time{}
	c.lastError = ""
	c.mu.Unlock()
	if c.Breaker != nil {
		_ = c.Breaker.RecordReconnect(nil)
	}
	if attempts > 0 && !downSince.IsZero() {
		down := time.Since(downSince).Round(time.Second)
		c.alertImportant("price_stream_reconnected", map[string]string{
			"reconnect_attempts": strconv.Itoa(attempts),
			"down_duration":      down.String(),
		})
		c.persistRuntimeStatus(nil)
	}
}

// waitForSymbols blocks until a resubscribe request or a short poll
// interval elapses. It returns false only when ctx is done.
func (c *Controller) waitForSymbols(ctx context.Context) bool {
	resub := c.resubChan()
	select {
	case <-resub:
		return true
	case <-time.After(5 * time.Second):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Controller) resubChan() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resub
}

func (c *Controller) reconnecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectAttempts > 0
}

func (c *Controller) monitoredPairs() []string {
	insts := c.Tracker.Instruments()
	pairs := make([]string, 0, len(insts))
	for _, inst := range insts {
		pairs = append(pairs, core.PairSymbol(inst.Symbol, c.Quote))
	}
	return pairs
}

// Pause stops signal evaluation; open positions stay open and prices
// keep streaming so extrema remain fresh for Resume.
func (c *Controller) Pause() {
	c.mu.Lock()
	already := c.paused
	c.paused = true
	c.mu.Unlock()
	if !already {
		log.Printf("level=INFO event=controller_paused")
	}
}

func (c *Controller) Resume() {
	c.mu.Lock()
	was := c.paused
	c.paused = false
	c.mu.Unlock()
	if was {
		log.Printf("level=INFO event=controller_resumed")
	}
}

func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// EmergencyClose pauses trading and sells every open position. Results
// are journaled like regular fills.
func (c *Controller) EmergencyClose(ctx context.Context) []executor.Result {
	c.Pause()
	c.alertImportant("emergency_close_started", map[string]string{
		"open_positions": strconv.Itoa(c.Ledger.OpenPositionCount()),
	})
	results := c.Guard.CloseAllPositions(ctx)
	c.recordResults(results)
	c.persistRuntimeStatus(nil)
	return results
}

// ApplyTradingParams swaps thresholds, sizing and ledger limits in one
// step. The quote currency is fixed for the life of the session.
func (c *Controller) ApplyTradingParams(p TradingParams) {
	c.Signals.UpdateConfig(signal.Config{
		BuyThresholdPct:  p.BuyThresholdPct,
		SellThresholdPct: p.SellThresholdPct,
		MaxPositions:     p.MaxPositions,
	})
	c.Guard.UpdateConfig(executor.Config{
		TradeAmountPct: p.TradeAmountPct,
		MinTradeAmount: p.MinTradeAmount,
		QuoteCurrency:  c.Quote,
	})
	c.Ledger.SetLimits(ledger.Limits{
		MaxPositions: p.MaxPositions,
		MinNotional:  p.MinTradeAmount,
	})
	log.Printf("level=INFO event=trading_params_updated buy_pct=%s sell_pct=%s amount_pct=%s max_positions=%d",
		p.BuyThresholdPct, p.SellThresholdPct, p.TradeAmountPct, p.MaxPositions)
}

func (c *Controller) setState(state string) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Controller) persistRuntimeStatus(cause error) {
	if c.Journal == nil {
		return
	}
	c.mu.Lock()
	state := c.state
	startedAt := c.startedAt
	attempts := c.reconnectAttempts
	downSince := c.disconnectedAt
	lastError := c.lastError
	c.mu.Unlock()
	if cause != nil {
		lastError = cause.Error()
	}
	total, _, _ := c.Ledger.Counters()
	status := journal.RuntimeStatus{
		Mode:              c.Mode,
		Quote:             c.Quote,
		InstanceID:        c.InstanceID,
		PID:               os.Getpid(),
		State:             state,
		Balance:           c.Ledger.Balance(),
		TotalValue:        c.Ledger.TotalValue(c.Tracker),
		OpenPositions:     c.Ledger.OpenPositionCount(),
		TotalTrades:       total,
		StartedAt:         startedAt,
		ReconnectAttempts: attempts,
		LastError:         lastError,
	}
	if !downSince.IsZero() {
		status.DisconnectedAt = &downSince
	}
	if err := c.Journal.SaveRuntimeStatus(status); err != nil {
		log.Printf("level=WARN event=runtime_status_persist_failed err=%q", err.Error())
	}
}

func (c *Controller) alertImportant(event string, fields map[string]string) {
	if c.Alerts == nil {
		return
	}
	c.Alerts.Important(event, fields)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
