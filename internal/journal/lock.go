package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrLockHeld reports that another live instance owns the state directory.
var ErrLockHeld = errors.New("instance lock held")

const lockFileName = "instance.lock"

// InstanceLock guards a state directory against concurrent engine
// instances. The lock file records the owner pid and start time so a
// crashed owner can be detected and taken over.
type InstanceLock struct {
	path string
}

type LockOptions struct {
	TakeoverEnabled bool
	StaleAfter      time.Duration
	Now             func() time.Time
}

type lockOwner struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

func AcquireInstanceLock(root string, opts LockOptions) (*InstanceLock, error) {
	if root == "" {
		return nil, errors.New("state dir required")
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	path := filepath.Join(root, lockFileName)

	// One retry after a takeover removal covers the common crash case.
	// A second conflict means another instance is racing us; give up.
	for attempt := 0; attempt < 3; attempt++ {
		lock, err := claimLock(path, nowFn().UTC())
		if err == nil {
			return lock, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if !opts.TakeoverEnabled {
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, path)
		}
		owner, readErr := readLockOwner(path)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				continue
			}
			return nil, fmt.Errorf("%w: %s (owner unreadable: %v)", ErrLockHeld, path, readErr)
		}
		reason, stale := ownerStale(owner, nowFn().UTC(), opts.StaleAfter)
		if !stale {
			return nil, fmt.Errorf("%w: %s (%s)", ErrLockHeld, path, reason)
		}
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, rmErr
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLockHeld, path)
}

func claimLock(path string, now time.Time) (*InstanceLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	owner := lockOwner{PID: os.Getpid(), StartedAt: now}
	data, err := json.Marshal(owner)
	if err == nil {
		_, err = f.Write(append(data, '\n'))
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &InstanceLock{path: path}, nil
}

func readLockOwner(path string) (lockOwner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lockOwner{}, err
	}
	var owner lockOwner
	if err := json.Unmarshal(data, &owner); err != nil {
		return lockOwner{}, fmt.Errorf("parse lock owner: %w", err)
	}
	return owner, nil
}

// ownerStale decides whether an existing lock may be broken. A live
// owner pid always wins; without one the lock ages out after staleAfter.
func ownerStale(owner lockOwner, now time.Time, staleAfter time.Duration) (string, bool) {
	if owner.PID > 0 {
		if processAlive(owner.PID) {
			return "owner running", false
		}
		return "owner dead", true
	}
	if owner.StartedAt.IsZero() {
		return "owner unknown", false
	}
	if staleAfter > 0 && now.Sub(owner.StartedAt.UTC()) >= staleAfter {
		return "aged out", true
	}
	return "lock fresh", false
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the pid exists but belongs to another user.
	return errors.Is(err, syscall.EPERM)
}

func (l *InstanceLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	l.path = ""
	return nil
}
