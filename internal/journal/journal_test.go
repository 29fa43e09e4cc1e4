package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

func TestJournalAppendTradeWritesDailyFile(t *testing.T) {
	j, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	day := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	trades := []core.Trade{
		{ID: "a", Kind: core.Buy, Symbol: "BTC", Price: decimal.NewFromInt(102), Qty: decimal.NewFromInt(25), Time: day},
		{ID: "b", Kind: core.Sell, Symbol: "BTC", Price: decimal.RequireFromString("106.59"), Qty: decimal.NewFromInt(25), Time: day.Add(time.Hour)},
	}
	for _, trade := range trades {
		if err := j.AppendTrade(trade); err != nil {
			t.Fatalf("AppendTrade(%s) error = %v", trade.ID, err)
		}
	}

	path := filepath.Join(j.root, "trades-20250314.jsonl")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open daily file: %v", err)
	}
	defer f.Close()

	var got []core.Trade
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var trade core.Trade
		if err := json.Unmarshal(scanner.Bytes(), &trade); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, trade)
	}
	if len(got) != 2 {
		t.Fatalf("journal lines = %d, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("journal order = [%s %s], want [a b]", got[0].ID, got[1].ID)
	}
	if got[1].Kind != core.Sell || !got[1].Price.Equal(decimal.RequireFromString("106.59")) {
		t.Fatalf("sell trade round trip = %+v", got[1])
	}
}

func TestJournalRuntimeStatusRoundTrip(t *testing.T) {
	j, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	started := time.Now().UTC().Add(-time.Minute)
	disc := time.Now().UTC().Add(-10 * time.Second)
	in := RuntimeStatus{
		Mode:              "testnet",
		Quote:             "USDT",
		InstanceID:        "bot1",
		PID:               1234,
		State:             "degraded",
		Balance:           decimal.NewFromInt(7500),
		OpenPositions:     2,
		TotalTrades:       5,
		StartedAt:         started,
		LastError:         "dial timeout",
		ReconnectAttempts: 2,
		DisconnectedAt:    &disc,
	}
	if err := j.SaveRuntimeStatus(in); err != nil {
		t.Fatalf("SaveRuntimeStatus() error = %v", err)
	}

	out, ok, err := j.LoadRuntimeStatus()
	if err != nil {
		t.Fatalf("LoadRuntimeStatus() error = %v", err)
	}
	if !ok {
		t.Fatalf("LoadRuntimeStatus() ok = false, want true")
	}
	if out.Mode != in.Mode || out.Quote != in.Quote || out.InstanceID != in.InstanceID {
		t.Fatalf("LoadRuntimeStatus() mismatch identity fields: got %+v want %+v", out, in)
	}
	if out.State != in.State || out.PID != in.PID || out.LastError != in.LastError || out.ReconnectAttempts != in.ReconnectAttempts {
		t.Fatalf("LoadRuntimeStatus() mismatch status fields: got %+v want %+v", out, in)
	}
	if !out.Balance.Equal(in.Balance) || out.OpenPositions != 2 || out.TotalTrades != 5 {
		t.Fatalf("LoadRuntimeStatus() mismatch account fields: got %+v", out)
	}
	if out.UpdatedAt.IsZero() {
		t.Fatalf("updated_at should be set")
	}
	if out.DisconnectedAt == nil {
		t.Fatalf("disconnected_at should round trip")
	}
}

func TestJournalLoadRuntimeStatusMissing(t *testing.T) {
	j, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok, err := j.LoadRuntimeStatus(); err != nil || ok {
		t.Fatalf("LoadRuntimeStatus() = (ok=%t, err=%v), want (false, nil)", ok, err)
	}
}

func TestJournalRequiresStateDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("New(\"\") error = nil, want error")
	}
}
