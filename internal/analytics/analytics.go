// Package analytics counts named UI events on the device and mirrors them into
// a Prometheus counter.
package analytics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/equiptrack/maintsync/internal/kvstore"
)

// Event names tracked by the CLI.
const (
	EventLogin        = "login"
	EventLogout       = "logout"
	EventSync         = "sync"
	EventScan         = "scan"
	EventAppend       = "append_history"
	EventSessionLost  = "session_expired"
	EventLoginPending = "login_pending"
)

// Events lists every event the CLI records, in display order.
var Events = []string{
	EventLogin,
	EventLoginPending,
	EventLogout,
	EventSessionLost,
	EventSync,
	EventScan,
	EventAppend,
}

var eventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "maintsync_events_total",
		Help: "UI events recorded on this device.",
	},
	[]string{"event"},
)

// Tracker increments per-event counters stored under analytics:<event>.
type Tracker struct {
	mu    sync.Mutex
	store kvstore.Store
}

// New creates a tracker over store.
func New(store kvstore.Store) *Tracker {
	return &Tracker{store: store}
}

// Track adds one to the counter of event and returns the new total.
func (t *Tracker) Track(event string) (int, error) {
	event = strings.TrimSpace(event)
	if event == "" {
		return 0, errors.New("event name is empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.count(event)
	if err != nil {
		return 0, err
	}
	n++
	if err := t.store.Set(kvstore.AnalyticsPrefix+event, strconv.Itoa(n)); err != nil {
		return 0, fmt.Errorf("failed to record %s: %w", event, err)
	}
	eventsTotal.WithLabelValues(event).Inc()
	return n, nil
}

// Count returns the stored total for event.
func (t *Tracker) Count(event string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count(strings.TrimSpace(event))
}

func (t *Tracker) count(event string) (int, error) {
	v, err := t.store.GetString(kvstore.AnalyticsPrefix + event)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		// A corrupt counter restarts from zero.
		return 0, nil
	}
	return n, nil
}
