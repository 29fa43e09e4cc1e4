package journal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInstanceLockExclusive(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireInstanceLock(dir, LockOptions{})
	if err != nil {
		t.Fatalf("AcquireInstanceLock() error = %v", err)
	}
	defer lock.Release()

	if _, err := AcquireInstanceLock(dir, LockOptions{}); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second AcquireInstanceLock() error = %v, want ErrLockHeld", err)
	}
}

func TestInstanceLockReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireInstanceLock(dir, LockOptions{})
	if err != nil {
		t.Fatalf("AcquireInstanceLock() error = %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release(again) error = %v", err)
	}

	second, err := AcquireInstanceLock(dir, LockOptions{})
	if err != nil {
		t.Fatalf("AcquireInstanceLock(after release) error = %v", err)
	}
	defer second.Release()
}

func TestInstanceLockTakeoverOfStaleLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "instance.lock")
	// pid 0 forces the age-based staleness path
	started := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	payload := `{"pid":0,"started_at":"` + started + `"}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write stale lock: %v", err)
	}

	lock, err := AcquireInstanceLock(dir, LockOptions{
		TakeoverEnabled: true,
		StaleAfter:      time.Minute,
	})
	if err != nil {
		t.Fatalf("AcquireInstanceLock(stale takeover) error = %v", err)
	}
	defer lock.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if !strings.Contains(string(data), `"pid":`) {
		t.Fatalf("lock file %q missing pid", string(data))
	}
}

func TestInstanceLockFreshLockNotTakenOver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "instance.lock")
	started := time.Now().UTC().Format(time.RFC3339)
	payload := `{"pid":0,"started_at":"` + started + `"}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fresh lock: %v", err)
	}

	if _, err := AcquireInstanceLock(dir, LockOptions{
		TakeoverEnabled: true,
		StaleAfter:      time.Hour,
	}); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("AcquireInstanceLock(fresh lock) error = %v, want ErrLockHeld", err)
	}
}

func TestInstanceLockLiveOwnerBlocksTakeover(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireInstanceLock(dir, LockOptions{})
	if err != nil {
		t.Fatalf("AcquireInstanceLock() error = %v", err)
	}
	defer lock.Release()

	// this process owns the lock and is definitely alive
	if _, err := AcquireInstanceLock(dir, LockOptions{
		TakeoverEnabled: true,
		StaleAfter:      time.Millisecond,
	}); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("AcquireInstanceLock(live owner) error = %v, want ErrLockHeld", err)
	}
}
