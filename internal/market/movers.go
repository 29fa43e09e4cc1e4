package market

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

// Mover is one ranked entry of the top-movers list.
type Mover struct {
	Symbol    string
	Base      string
	LastPrice decimal.Decimal
	ChangePct decimal.Decimal
}

// ChangeFunc reports the percentage price change of a pair symbol over
// the window. Pull-based; how it is fetched is the collaborator's concern.
type ChangeFunc func(ctx context.Context, symbol string, window time.Duration) (decimal.Decimal, error)

// RankMovers computes the change over window for every eligible ticker and
// returns the top count, sorted by change descending. Only quote-denominated
// pairs are eligible, excluding the quote currency traded against itself.
// Ties break on lexical symbol order so rankings are reproducible across runs.
func RankMovers(ctx context.Context, tickers []core.Ticker, quote string, window time.Duration, count int, change ChangeFunc) []Mover {
	if count <= 0 || change == nil {
		return nil
	}
	movers := make([]Mover, 0, len(tickers))
	for _, tk := range tickers {
		base, ok := core.BaseToken(tk.Symbol, quote)
		if !ok {
			continue
		}
		if tk.LastPrice.Cmp(decimal.Zero) <= 0 {
			continue
		}
		pct, err := change(ctx, tk.Symbol, window)
		if err != nil {
			log.Printf("level=WARN event=mover_change_fetch_failed symbol=%q err=%q", tk.Symbol, err.Error())
			continue
		}
		movers = append(movers, Mover{
			Symbol:    tk.Symbol,
			Base:      base,
			LastPrice: tk.LastPrice,
			ChangePct: pct,
		})
	}
	sort.Slice(movers, func(i, j int) bool {
		if c := movers[i].ChangePct.Cmp(movers[j].ChangePct); c != 0 {
			return c > 0
		}
		return movers[i].Symbol < movers[j].Symbol
	})
	if len(movers) > count {
		movers = movers[:count]
	}
	return movers
}
