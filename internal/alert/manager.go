package alert

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Notifier delivers one rendered message to an external channel.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Alerter is the surface the rest of the engine talks to. Important never
// blocks the caller; delivery is asynchronous and lossy under pressure.
type Alerter interface {
	Important(event string, fields map[string]string)
}

const defaultQueueSize = 128

type Manager struct {
	mode     string
	quote    string
	notifier Notifier
	queue    chan event
	stop     chan struct{}
	done     chan struct{}
	dropped  uint64

	mu     sync.RWMutex
	closed bool
}

type event struct {
	name   string
	fields map[string]string
}

func NewManager(mode, quote string, notifier Notifier) *Manager {
	return NewManagerWithQueue(mode, quote, notifier, defaultQueueSize)
}

func NewManagerWithQueue(mode, quote string, notifier Notifier, queueSize int) *Manager {
	if notifier == nil {
		return nil
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	m := &Manager{
		mode:     mode,
		quote:    quote,
		notifier: notifier,
		queue:    make(chan event, queueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *Manager) Important(name string, fields map[string]string) {
	if m == nil || m.notifier == nil {
		return
	}
	ev := event{name: name, fields: cloneFields(fields)}
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return
	}
	select {
	case m.queue <- ev:
		m.mu.RUnlock()
	default:
		m.mu.RUnlock()
		total := atomic.AddUint64(&m.dropped, 1)
		log.Printf(
			"level=WARN event=alert_queue_dropped target_event=%q dropped_total=%d queue_cap=%d",
			name,
			total,
			cap(m.queue),
		)
	}
}

func (m *Manager) DroppedTotal() uint64 {
	if m == nil {
		return 0
	}
	return atomic.LoadUint64(&m.dropped)
}

// Close drains the queue and stops delivery; further Important calls are
// dropped silently.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.stop)
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case ev := <-m.queue:
			m.send(ev)
		case <-m.stop:
			for {
				select {
				case ev := <-m.queue:
					m.send(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) send(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := m.notifier.Notify(ctx, m.buildMessage(ev.name, ev.fields)); err != nil {
		log.Printf("level=ERROR event=alert_notify_failed target_event=%q err=%q", ev.name, err.Error())
	}
}

func (m *Manager) buildMessage(name string, fields map[string]string) string {
	lines := []string{
		"[probebot] important",
		"time: " + time.Now().UTC().Format(time.RFC3339),
		"mode: " + m.mode,
		"quote: " + m.quote,
		"event: " + name,
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, k+": "+fields[k])
	}
	return strings.Join(lines, "\n")
}

func cloneFields(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
