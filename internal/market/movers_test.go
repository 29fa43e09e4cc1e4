package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

func tickerFixture() []core.Ticker {
	return []core.Ticker{
		{Symbol: "BTCUSDT", LastPrice: dec("65000")},
		{Symbol: "ETHUSDT", LastPrice: dec("3400")},
		{Symbol: "SOLUSDT", LastPrice: dec("150")},
		{Symbol: "ETHBTC", LastPrice: dec("0.05")},
		{Symbol: "USDTUSDT", LastPrice: dec("1")},
	}
}

func TestRankMoversFiltersQuotePairs(t *testing.T) {
	changes := map[string]string{
		"BTCUSDT": "1.5",
		"ETHUSDT": "4.2",
		"SOLUSDT": "2.8",
	}
	change := func(ctx context.Context, symbol string, window time.Duration) (decimal.Decimal, error) {
		pct, ok := changes[symbol]
		if !ok {
			t.Fatalf("unexpected change lookup for %s", symbol)
		}
		return dec(pct), nil
	}

	got := RankMovers(context.Background(), tickerFixture(), "USDT", time.Hour, 10, change)
	if len(got) != 3 {
		t.Fatalf("RankMovers() len = %d, want 3", len(got))
	}
	want := []string{"ETHUSDT", "SOLUSDT", "BTCUSDT"}
	for i, mv := range got {
		if mv.Symbol != want[i] {
			t.Fatalf("RankMovers()[%d].Symbol = %s, want %s", i, mv.Symbol, want[i])
		}
	}
	if got[0].Base != "ETH" {
		t.Fatalf("RankMovers()[0].Base = %s, want ETH", got[0].Base)
	}
}

func TestRankMoversTruncatesToCount(t *testing.T) {
	change := func(ctx context.Context, symbol string, window time.Duration) (decimal.Decimal, error) {
		return dec("1"), nil
	}
	got := RankMovers(context.Background(), tickerFixture(), "USDT", time.Hour, 2, change)
	if len(got) != 2 {
		t.Fatalf("RankMovers() len = %d, want 2", len(got))
	}
}

func TestRankMoversBreaksTiesLexically(t *testing.T) {
	change := func(ctx context.Context, symbol string, window time.Duration) (decimal.Decimal, error) {
		return dec("3"), nil
	}
	got := RankMovers(context.Background(), tickerFixture(), "USDT", time.Hour, 10, change)
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	for i, mv := range got {
		if mv.Symbol != want[i] {
			t.Fatalf("tied RankMovers()[%d].Symbol = %s, want %s", i, mv.Symbol, want[i])
		}
	}
}

func TestRankMoversSkipsFailedLookups(t *testing.T) {
	change := func(ctx context.Context, symbol string, window time.Duration) (decimal.Decimal, error) {
		if symbol == "ETHUSDT" {
			return decimal.Decimal{}, errors.New("timeout")
		}
		return dec("1"), nil
	}
	got := RankMovers(context.Background(), tickerFixture(), "USDT", time.Hour, 10, change)
	for _, mv := range got {
		if mv.Symbol == "ETHUSDT" {
			t.Fatalf("RankMovers() included ETHUSDT after lookup failure")
		}
	}
	if len(got) != 2 {
		t.Fatalf("RankMovers() len = %d, want 2", len(got))
	}
}

func TestRankMoversZeroCountOrNilChange(t *testing.T) {
	if got := RankMovers(context.Background(), tickerFixture(), "USDT", time.Hour, 0, nil); got != nil {
		t.Fatalf("RankMovers(count=0) = %v, want nil", got)
	}
}
