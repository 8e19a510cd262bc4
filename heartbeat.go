package sessiongate

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// heartbeatTimeout bounds the store calls made from a timer goroutine,
// which has no request context to inherit a deadline from.
const heartbeatTimeout = 5 * time.Second

// heartbeatMonitor keeps a cancellable timer per tracked session. Each tick
// re-checks the session against the store: dead sessions are pruned, live
// ones get a best-effort activity touch and the timer is re-armed. A
// separate sweep loop handles sessions created by other processes that no
// local timer covers.
type heartbeatMonitor struct {
	store    *sessionStore
	metrics  *Metrics
	logger   *slog.Logger
	clock    func() time.Time
	interval time.Duration
	sweepGap time.Duration
	onPruned func(sessionID, userID string)

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

func newHeartbeatMonitor(store *sessionStore, metrics *Metrics, logger *slog.Logger, clock func() time.Time, cfg HeartbeatConfig, onPruned func(sessionID, userID string)) *heartbeatMonitor {
	m := &heartbeatMonitor{
		store:    store,
		metrics:  metrics,
		logger:   logger,
		clock:    clock,
		interval: cfg.Interval,
		sweepGap: cfg.SweepInterval,
		onPruned: onPruned,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.sweepLoop()
	return m
}

// Track arms a heartbeat timer for the session. Tracking an already-tracked
// session resets its timer, so repeated calls are harmless.
func (m *heartbeatMonitor) Track(sessionID string) {
	if m == nil || sessionID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if prev, ok := m.timers[sessionID]; ok {
		prev.Stop()
	}
	m.timers[sessionID] = time.AfterFunc(m.interval, func() { m.tick(sessionID) })
}

// Cancel stops and forgets the session's timer. Safe to call for sessions
// that were never tracked.
func (m *heartbeatMonitor) Cancel(sessionID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[sessionID]; ok {
		t.Stop()
		delete(m.timers, sessionID)
	}
}

// Tracked reports how many sessions currently hold an armed timer.
func (m *heartbeatMonitor) Tracked() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// tick runs once per interval for a tracked session. It never holds the
// registry lock across a store call.
func (m *heartbeatMonitor) tick(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), heartbeatTimeout)
	defer cancel()

	sess, err := m.store.peek(ctx, sessionID)
	if err != nil {
		// Transient outage, not a deleted session. Keep the timer so
		// tracking resumes when the store comes back.
		m.logger.LogAttrs(ctx, slog.LevelWarn, "heartbeat check degraded",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		m.rearm(sessionID)
		return
	}
	if sess == nil {
		m.Cancel(sessionID)
		return
	}

	now := m.clock()
	if !sess.IsValid || sess.Expired(now) {
		m.Cancel(sessionID)
		if err := m.store.invalidate(ctx, sessionID); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "heartbeat prune failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
		m.metrics.Inc(MetricHeartbeatPruned)
		if m.onPruned != nil {
			m.onPruned(sessionID, sess.UserID)
		}
		return
	}

	m.store.updateActivity(ctx, sessionID, now)
	m.rearm(sessionID)
}

func (m *heartbeatMonitor) rearm(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, ok := m.timers[sessionID]; !ok {
		// Cancelled between the tick firing and re-arming.
		return
	}
	m.timers[sessionID] = time.AfterFunc(m.interval, func() { m.tick(sessionID) })
}

// sweepLoop periodically evicts expired cache entries and purges expired
// durable records, covering sessions no local timer tracks.
func (m *heartbeatMonitor) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepGap)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *heartbeatMonitor) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), heartbeatTimeout)
	defer cancel()

	cached, durable, err := m.store.sweep(ctx, m.clock())
	if err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "expiry sweep degraded",
			slog.Int("cache_evicted", cached),
			slog.String("error", err.Error()),
		)
		return
	}
	if cached > 0 || durable > 0 {
		m.logger.LogAttrs(ctx, slog.LevelDebug, "expiry sweep",
			slog.Int("cache_evicted", cached),
			slog.Int("durable_purged", durable),
		)
	}
}

// Close stops the sweep loop and every pending timer. Ticks already in
// flight finish, but none re-arm afterwards.
func (m *heartbeatMonitor) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()

	close(m.done)
	m.wg.Wait()
}
