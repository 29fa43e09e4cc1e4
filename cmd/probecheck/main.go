package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/emma2tony07-spec/ProbeBot/internal/config"
	"github.com/emma2tony07-spec/ProbeBot/internal/core"
	"github.com/emma2tony07-spec/ProbeBot/internal/exchange/binance"
	"github.com/emma2tony07-spec/ProbeBot/internal/market"
)

type checkStatus string

const (
	statusPass checkStatus = "PASS"
	statusFail checkStatus = "FAIL"
)

type checkResult struct {
	Name       string      `json:"name"`
	Status     checkStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Detail     string      `json:"detail,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Mode       config.Mode   `json:"mode"`
	Quote      string        `json:"quote"`
	Checks     []checkResult `json:"checks"`
}

// probecheck verifies credentials and market-data connectivity before a
// session goes live. It never places orders.
func main() {
	var (
		configPath  string
		timeoutSec  int
		streamWait  int
		outJSONPath string
	)
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.IntVar(&timeoutSec, "timeout-sec", 120, "total timeout seconds")
	flag.IntVar(&streamWait, "stream-wait-sec", 10, "wait seconds for the price stream check")
	flag.StringVar(&outJSONPath, "out-json", "", "optional output report path")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	if cfg.Mode != config.ModeTestnet && cfg.Mode != config.ModeLive {
		fatal("probecheck requires mode=testnet or mode=live")
	}
	if timeoutSec < 30 {
		timeoutSec = 30
	}
	if streamWait < 3 {
		streamWait = 3
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
		fatal(err.Error())
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	rep := report{StartedAt: time.Now().UTC(), Mode: cfg.Mode, Quote: cfg.QuoteCurrency}
	rep.Checks = append(rep.Checks, runCheck("ticker_snapshot", func() (string, error) {
		tickers, err := client.TickerSnapshot(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("tickers=%d", len(tickers)), nil
	}))
	rep.Checks = append(rep.Checks, runCheck("movers_ranking", func() (string, error) {
		tickers, err := client.TickerSnapshot(ctx)
		if err != nil {
			return "", err
		}
		window := time.Duration(cfg.Movers.WindowMinutes) * time.Minute
		ranked := market.RankMovers(ctx, tickers, cfg.QuoteCurrency, window, cfg.Movers.Count, client.PercentChange)
		if len(ranked) == 0 {
			return "", fmt.Errorf("no %s movers ranked", cfg.QuoteCurrency)
		}
		return fmt.Sprintf("ranked=%d top=%s change_pct=%s", len(ranked), ranked[0].Symbol, ranked[0].ChangePct.StringFixed(2)), nil
	}))
	rep.Checks = append(rep.Checks, runCheck("signed_endpoint", func() (string, error) {
		symbol := core.PairSymbol("BTC", cfg.QuoteCurrency)
		_, found, err := client.LastFill(ctx, symbol)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("symbol=%s has_fill=%t", symbol, found), nil
	}))
	rep.Checks = append(rep.Checks, runCheck("price_stream", func() (string, error) {
		streamCtx, cancelStream := context.WithTimeout(ctx, time.Duration(streamWait)*time.Second)
		defer cancelStream()
		symbol := core.PairSymbol("BTC", cfg.QuoteCurrency)
		ticks, errs, err := client.Ticks(streamCtx, []string{symbol})
		if err != nil {
			return "", err
		}
		select {
		case tick, ok := <-ticks:
			if !ok {
				select {
				case err := <-errs:
					return "", err
				default:
					return "", fmt.Errorf("stream closed before first tick")
				}
			}
			return fmt.Sprintf("symbol=%s price=%s", tick.Symbol, tick.Price), nil
		case <-streamCtx.Done():
			return "", fmt.Errorf("no tick within %ds", streamWait)
		}
	}))
	rep.FinishedAt = time.Now().UTC()

	failed := 0
	for _, check := range rep.Checks {
		if check.Status == statusFail {
			failed++
		}
		fmt.Printf("%-16s %s %6dms %s%s\n", check.Name, check.Status, check.DurationMs, check.Detail, errSuffix(check.Error))
	}
	if outJSONPath != "" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			fatal(err.Error())
		}
		if err := os.WriteFile(outJSONPath, data, 0o644); err != nil {
			fatal(err.Error())
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func runCheck(name string, fn func() (string, error)) checkResult {
	start := time.Now()
	detail, err := fn()
	res := checkResult{
		Name:       name,
		Status:     statusPass,
		DurationMs: time.Since(start).Milliseconds(),
		Detail:     detail,
	}
	if err != nil {
		res.Status = statusFail
		res.Error = err.Error()
	}
	return res
}

func errSuffix(msg string) string {
	if msg == "" {
		return ""
	}
	return " err=" + msg
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
