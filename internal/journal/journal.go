package journal

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

// RuntimeStatus is the heartbeat snapshot the engine writes so an
// operator can inspect a running instance from the state directory.
type RuntimeStatus struct {
	Mode              string          `json:"mode"`
	Quote             string          `json:"quote"`
	InstanceID        string          `json:"instance_id"`
	PID               int             `json:"pid"`
	State             string          `json:"state"`
	Balance           decimal.Decimal `json:"balance"`
	TotalValue        decimal.Decimal `json:"total_value"`
	OpenPositions     int             `json:"open_positions"`
	TotalTrades       int             `json:"total_trades"`
	StartedAt         time.Time       `json:"started_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	LastError         string          `json:"last_error,omitempty"`
	ReconnectAttempts int             `json:"reconnect_attempts,omitempty"`
	DisconnectedAt    *time.Time      `json:"disconnected_at,omitempty"`
}

// Journal is an append-only audit trail. Trades go to one JSONL file
// per UTC day; the runtime status is a single atomically replaced JSON
// document. Nothing here is ever read back to drive trading decisions.
type Journal struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

func New(root string) (*Journal, error) {
	if root == "" {
		return nil, errors.New("state dir required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Journal{root: root, now: time.Now}, nil
}

func (j *Journal) AppendTrade(trade core.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	day := trade.Time
	if day.IsZero() {
		day = j.now().UTC()
	}
	path := j.tradesPath(day)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(trade); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (j *Journal) SaveRuntimeStatus(status RuntimeStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = j.now().UTC()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return writeJSONAtomic(j.runtimeStatusPath(), status)
}

func (j *Journal) LoadRuntimeStatus() (RuntimeStatus, bool, error) {
	data, err := os.ReadFile(j.runtimeStatusPath())
	if err != nil {
		if os.IsNotExist(err) {
			return RuntimeStatus{}, false, nil
		}
		return RuntimeStatus{}, false, err
	}
	var status RuntimeStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return RuntimeStatus{}, false, err
	}
	return status, true, nil
}

func (j *Journal) tradesPath(day time.Time) string {
	return filepath.Join(j.root, "trades-"+day.UTC().Format("20060102")+".jsonl")
}

func (j *Journal) runtimeStatusPath() string {
	return filepath.Join(j.root, "runtime_status.json")
}

func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	return fsyncDirBestEffort(dir, path)
}

func fsyncDirBestEffort(dir, path string) error {
	// Best-effort directory fsync to improve rename durability across crashes.
	d, err := os.Open(dir)
	if err != nil {
		log.Printf("level=WARN event=journal_dir_fsync_skipped reason=%q dir=%q target=%q", err.Error(), dir, path)
		return nil
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		log.Printf("level=WARN event=journal_dir_fsync_failed reason=%q dir=%q target=%q", err.Error(), dir, path)
		return nil
	}
	return nil
}
