package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/alert"
	"github.com/emma2tony07-spec/ProbeBot/internal/config"
	"github.com/emma2tony07-spec/ProbeBot/internal/engine"
	"github.com/emma2tony07-spec/ProbeBot/internal/exchange"
	"github.com/emma2tony07-spec/ProbeBot/internal/exchange/binance"
	"github.com/emma2tony07-spec/ProbeBot/internal/exchange/paper"
	"github.com/emma2tony07-spec/ProbeBot/internal/executor"
	"github.com/emma2tony07-spec/ProbeBot/internal/journal"
	"github.com/emma2tony07-spec/ProbeBot/internal/ledger"
	"github.com/emma2tony07-spec/ProbeBot/internal/market"
	"github.com/emma2tony07-spec/ProbeBot/internal/safety"
	"github.com/emma2tony07-spec/ProbeBot/internal/signal"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	alerts := buildAlertManager(cfg)
	if alerts != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := alerts.Close(closeCtx); err != nil {
				fmt.Fprintf(os.Stderr, "close alert manager failed: %v\n", err)
			}
		}()
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stateDir := filepath.Join(cfg.State.Dir, strings.ToLower(string(cfg.Mode)), cfg.QuoteCurrency, cfg.InstanceID)
	jnl, err := journal.New(stateDir)
	if err != nil {
		fatal(err.Error())
	}
	lockTakeover := true
	if cfg.State.LockTakeover != nil {
		lockTakeover = *cfg.State.LockTakeover
	}
	instanceLock, err := journal.AcquireInstanceLock(stateDir, journal.LockOptions{
		TakeoverEnabled: lockTakeover,
		StaleAfter:      time.Duration(cfg.State.LockStaleSec) * time.Second,
	})
	if err != nil {
		fatal(err.Error())
	}
	defer func() {
		if relErr := instanceLock.Release(); relErr != nil {
			fmt.Fprintf(os.Stderr, "release instance lock failed: %v\n", relErr)
		}
	}()

	ex, streamer, err := buildExchange(cfg)
	if err != nil {
		fatal(err.Error())
	}
	defer ex.Close()

	tracker := market.NewTracker()
	book := ledger.New(cfg.Trading.InitialBalance.Decimal, ledger.Limits{
		MaxPositions: cfg.Trading.MaxPositions,
		MinNotional:  cfg.Trading.MinTradeAmount.Decimal,
	}, tracker)
	signals := signal.NewEngine(signal.Config{
		BuyThresholdPct:  cfg.Trading.BuyThresholdPct.Decimal,
		SellThresholdPct: cfg.Trading.SellThresholdPct.Decimal,
		MaxPositions:     cfg.Trading.MaxPositions,
	}, tracker, book)
	guard := executor.NewGuard(executor.Config{
		TradeAmountPct: cfg.Trading.TradeAmountPct.Decimal,
		MinTradeAmount: cfg.Trading.MinTradeAmount.Decimal,
		QuoteCurrency:  cfg.QuoteCurrency,
	}, ex, book, tracker)
	guard.SetAlerter(alerterOf(alerts))
	if client, ok := ex.(*binance.Client); ok {
		guard.SetFillQuerier(client)
	}

	breaker := safety.NewBreaker(cfg.CircuitBreaker.Enabled, cfg.CircuitBreaker.MaxReconnectFailures)
	breaker.SetRecovery(
		time.Duration(cfg.CircuitBreaker.ReconnectCooldownSec)*time.Second,
		cfg.CircuitBreaker.ReconnectProbePasses,
	)
	breaker.SetAlerter(alerterOf(alerts))

	controller := &engine.Controller{
		Exchange:      ex,
		Streamer:      streamer,
		Tracker:       tracker,
		Ledger:        book,
		Signals:       signals,
		Guard:         guard,
		Journal:       jnl,
		Breaker:       breaker,
		Alerts:        alerterOf(alerts),
		Mode:          string(cfg.Mode),
		Quote:         cfg.QuoteCurrency,
		InstanceID:    cfg.InstanceID,
		TickInterval:  time.Duration(cfg.Trading.TickSec) * time.Second,
		MoversCount:   cfg.Movers.Count,
		MoversRefresh: time.Duration(cfg.Movers.RefreshSec) * time.Second,
		MoversWindow:  time.Duration(cfg.Movers.WindowMinutes) * time.Minute,
		Heartbeat:     time.Duration(cfg.Observability.Runtime.HeartbeatSec) * time.Second,
	}
	if err := controller.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fatal(err.Error())
	}
}

func buildExchange(cfg config.Config) (exchange.Exchange, exchange.Streamer, error) {
	if cfg.Mode == config.ModePaper {
		ex, err := paper.New(paperSeed(cfg.QuoteCurrency))
		if err != nil {
			return nil, nil, err
		}
		return ex, ex, nil
	}
	client, err := binance.NewClient(binance.Options{
		APIKey:         cfg.Exchange.APIKey,
		APISecret:      cfg.Exchange.APISecret,
		RestBaseURL:    cfg.Exchange.RestBaseURL,
		WSBaseURL:      cfg.Exchange.WSBaseURL,
		RecvWindowMs:   cfg.Exchange.RecvWindowMs,
		HTTPTimeoutSec: cfg.Exchange.HTTPTimeoutSec,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

func paperSeed(quote string) paper.Seed {
	seed := paper.Seed{}
	for base, price := range map[string]string{
		"BTC":  "65000",
		"ETH":  "3400",
		"SOL":  "150",
		"BNB":  "580",
		"XRP":  "0.52",
		"DOGE": "0.12",
	} {
		seed[base+quote] = decimal.RequireFromString(price)
	}
	return seed
}

func buildAlertManager(cfg config.Config) *alert.Manager {
	tg := cfg.Observability.Telegram
	if !tg.Enabled {
		return nil
	}
	notifier := alert.NewTelegramNotifier(
		tg.BotToken,
		tg.ChatID,
		tg.APIBaseURL,
		time.Duration(tg.TimeoutSec)*time.Second,
	)
	return alert.NewManager(string(cfg.Mode), cfg.QuoteCurrency, notifier)
}

// alerterOf keeps a typed nil *Manager from leaking into an Alerter
// interface value.
func alerterOf(m *alert.Manager) alert.Alerter {
	if m == nil {
		return nil
	}
	return m
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
