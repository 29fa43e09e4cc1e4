package safety

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/emma2tony07-spec/ProbeBot/internal/alert"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type circuitState string

const (
	circuitClosed   circuitState = "closed"
	circuitOpen     circuitState = "open"
	circuitHalfOpen circuitState = "half_open"
)

const (
	defaultCooldown          = 30 * time.Second
	defaultHalfOpenSuccesses = 1
)

// Breaker guards the stream reconnect loop. Consecutive reconnect
// failures open the circuit; after a cooldown one probe attempt is
// allowed, and enough probe successes close it again. A disabled
// breaker allows everything.
type Breaker struct {
	enabled bool

	mu                sync.Mutex
	maxFailures       int
	failures          int
	state             circuitState
	openedAt          time.Time
	openErr           error
	halfOpenSuccess   int
	cooldown          time.Duration
	halfOpenSuccesses int

	alerter alert.Alerter
}

func NewBreaker(enabled bool, maxFailures int) *Breaker {
	return &Breaker{
		enabled:           enabled,
		maxFailures:       maxFailures,
		state:             circuitClosed,
		cooldown:          defaultCooldown,
		halfOpenSuccesses: defaultHalfOpenSuccesses,
	}
}

func (b *Breaker) SetRecovery(cooldown time.Duration, halfOpenSuccesses int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if halfOpenSuccesses < 1 {
		halfOpenSuccesses = defaultHalfOpenSuccesses
	}
	b.cooldown = cooldown
	b.halfOpenSuccesses = halfOpenSuccesses
}

func (b *Breaker) SetAlerter(alerter alert.Alerter) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerter = alerter
}

// AllowReconnect reports whether a reconnect attempt may proceed. While
// the circuit is open and the cooldown has not elapsed it returns the
// error that opened it; once the cooldown passes the circuit moves to
// half-open and one probe is allowed through.
func (b *Breaker) AllowReconnect() error {
	if b == nil || !b.enabled {
		return nil
	}
	b.mu.Lock()
	if b.state != circuitOpen {
		b.mu.Unlock()
		return nil
	}
	now := time.Now().UTC()
	if b.cooldown > 0 && now.Sub(b.openedAt) < b.cooldown {
		err := b.openErr
		if err == nil {
			err = fmt.Errorf("%w: reconnect circuit is open", ErrCircuitOpen)
		}
		b.mu.Unlock()
		return err
	}
	b.state = circuitHalfOpen
	b.halfOpenSuccess = 0
	b.failures = 0
	b.openErr = nil
	alerter := b.alerter
	cooldownSec := int64(b.cooldown / time.Second)
	b.mu.Unlock()
	log.Printf("level=INFO event=circuit_breaker_half_open action=%q cooldown_sec=%d", "reconnect", cooldownSec)
	if alerter != nil {
		alerter.Important("circuit_breaker_half_open", map[string]string{
			"action":       "reconnect",
			"cooldown_sec": strconv.FormatInt(cooldownSec, 10),
		})
	}
	return nil
}

// RecordReconnect feeds the outcome of a reconnect attempt into the
// circuit. A nil error counts toward recovery; a non-nil error counts
// toward tripping. The returned error is ErrCircuitOpen once the
// failure budget is exhausted.
func (b *Breaker) RecordReconnect(err error) error {
	if b == nil || !b.enabled {
		return nil
	}
	b.mu.Lock()
	if b.maxFailures < 1 {
		b.mu.Unlock()
		return nil
	}
	if err == nil {
		recovered := false
		prevFailures := b.failures
		switch b.state {
		case circuitHalfOpen:
			b.halfOpenSuccess++
			if b.halfOpenSuccess >= b.halfOpenSuccesses {
				recovered = true
				b.state = circuitClosed
				b.failures = 0
				b.openErr = nil
				b.openedAt = time.Time{}
				b.halfOpenSuccess = 0
			}
		case circuitOpen:
			// probes only run through half-open
		case circuitClosed:
			if b.failures > 0 {
				recovered = true
				b.failures = 0
			}
		}
		alerter := b.alerter
		b.mu.Unlock()
		if recovered {
			log.Printf("level=INFO event=circuit_breaker_recovered action=%q previous_consecutive_failures=%d", "reconnect", prevFailures)
			if alerter != nil {
				alerter.Important("circuit_breaker_recovered", map[string]string{
					"action":   "reconnect",
					"failures": strconv.Itoa(prevFailures),
				})
			}
		}
		return nil
	}

	if b.state == circuitHalfOpen {
		b.failures++
		b.trip(err)
		tripped := b.openErr
		alerter := b.alerter
		b.mu.Unlock()
		b.announceTrip(alerter, err)
		return tripped
	}
	b.failures++
	if b.failures >= b.maxFailures && b.state != circuitOpen {
		b.trip(err)
		tripped := b.openErr
		alerter := b.alerter
		b.mu.Unlock()
		b.announceTrip(alerter, err)
		return tripped
	}
	if b.state == circuitOpen {
		open := b.openErr
		b.mu.Unlock()
		return open
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) CooldownRemaining() time.Duration {
	if b == nil || !b.enabled {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != circuitOpen || b.cooldown <= 0 {
		return 0
	}
	elapsed := time.Since(b.openedAt)
	if elapsed >= b.cooldown {
		return 0
	}
	return b.cooldown - elapsed
}

func (b *Breaker) State() string {
	if b == nil || !b.enabled {
		return string(circuitClosed)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.state)
}

// trip requires b.mu held.
func (b *Breaker) trip(cause error) {
	b.state = circuitOpen
	b.openedAt = time.Now().UTC()
	b.openErr = fmt.Errorf("%w: reconnect failed %d times: %v", ErrCircuitOpen, b.failures, cause)
	b.halfOpenSuccess = 0
}

func (b *Breaker) announceTrip(alerter alert.Alerter, cause error) {
	log.Printf("level=ERROR event=circuit_breaker_open action=%q err=%q", "reconnect", cause)
	if alerter != nil {
		alerter.Important("circuit_breaker_open", map[string]string{
			"action": "reconnect",
			"error":  cause.Error(),
		})
	}
}
