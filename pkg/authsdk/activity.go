package authsdk

import (
	"strconv"
	"sync"
	"time"
)

// Monitor events delivered to On subscribers.
const (
	// EventWarning fires once when the idle time crosses the warning
	// threshold. Cleared by any activity.
	EventWarning = "warning"

	// EventTimeout fires once when the idle time crosses the idle timeout.
	// The session is over; the application should return to its login state.
	EventTimeout = "timeout"

	// EventActivity fires when another client instance reports user
	// activity, so local UI (a countdown dialog, say) can dismiss itself.
	EventActivity = "activity"

	// EventLogout fires when another client instance logs out.
	EventLogout = "logout"
)

// ActivityConfig tunes the ActivityMonitor. Zero values take the defaults.
type ActivityConfig struct {
	// IdleTimeout after which the session is considered over.
	IdleTimeout time.Duration

	// WarningLead is how long before IdleTimeout the warning fires.
	WarningLead time.Duration

	// Debounce bounds how often activity is written to shared storage.
	Debounce time.Duration

	// CheckInterval is how often idle time is evaluated.
	CheckInterval time.Duration
}

const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultWarningLead   = 2 * time.Minute
	DefaultDebounce      = time.Minute
	DefaultCheckInterval = time.Minute
)

func (c *ActivityConfig) applyDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.WarningLead <= 0 {
		c.WarningLead = DefaultWarningLead
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
}

// ActivityMonitor tracks user idle time across every client instance
// sharing a Storage. Local activity is recorded in memory immediately and
// written to storage at most once per debounce window; activity written by
// other instances arrives through the storage watch and resets the local
// timer, so using the app in one window keeps the session alive in all of
// them.
//
// Timeout and logout are one-way: once fired, only a Restart after a new
// login re-arms the monitor.
type ActivityMonitor struct {
	cfg     ActivityConfig
	storage Storage
	clock   Clock

	mu           sync.Mutex
	lastActivity time.Time
	lastWrite    time.Time
	pendingWrite Timer
	ticker       Timer
	warned       bool
	timedOut     bool
	closed       bool

	listeners map[string]map[int]func()
	nextID    int

	cancelWatch func()
}

// NewActivityMonitor builds and starts a monitor. Close it when done.
func NewActivityMonitor(storage Storage, clock Clock, cfg ActivityConfig) *ActivityMonitor {
	cfg.applyDefaults()
	if clock == nil {
		clock = SystemClock
	}

	m := &ActivityMonitor{
		cfg:       cfg,
		storage:   storage,
		clock:     clock,
		listeners: make(map[string]map[int]func()),
	}

	now := clock.Now()
	m.lastActivity = now
	m.cancelWatch = storage.Watch(m.onStorageChange)
	m.scheduleTick()

	return m
}

// On subscribes fn to an event. The returned function unsubscribes.
func (m *ActivityMonitor) On(event string, fn func()) (off func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listeners[event] == nil {
		m.listeners[event] = make(map[int]func())
	}
	id := m.nextID
	m.nextID++
	m.listeners[event][id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners[event], id)
	}
}

// RecordActivity notes user activity. Memory updates immediately; the
// shared-storage write is debounced so a burst of events costs at most one
// write now and one at the end of the window.
func (m *ActivityMonitor) RecordActivity() {
	m.mu.Lock()
	if m.timedOut || m.closed {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	m.lastActivity = now
	m.warned = false

	if now.Sub(m.lastWrite) >= m.cfg.Debounce {
		m.lastWrite = now
		m.mu.Unlock()
		m.writeActivity(now)
		return
	}

	// Inside the debounce window: arm exactly one trailing write so the
	// final burst of activity still reaches the other instances.
	if m.pendingWrite == nil {
		delay := m.cfg.Debounce - now.Sub(m.lastWrite)
		m.pendingWrite = m.clock.AfterFunc(delay, m.flushPendingWrite)
	}
	m.mu.Unlock()
}

// OnVisible re-evaluates idle state immediately. Call it when the client
// regains focus: a machine waking from sleep should time out now, not a
// tick later.
func (m *ActivityMonitor) OnVisible() {
	m.check()
}

// ResetTimer restarts the idle clock, e.g. right after a login or an
// explicit stay-logged-in action. The reset is written straight through to
// shared storage so other instances pick it up immediately, and local
// activity listeners hear it too.
func (m *ActivityMonitor) ResetTimer() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	m.lastActivity = now
	m.warned = false
	m.timedOut = false
	m.lastWrite = now
	if m.pendingWrite != nil {
		m.pendingWrite.Stop()
		m.pendingWrite = nil
	}
	m.mu.Unlock()

	m.writeActivity(now)
	m.emit(EventActivity)
}

// BroadcastLogout signals every other instance to end its session. The
// marker is cleared shortly after so the next session's instances do not
// read a stale logout.
func (m *ActivityMonitor) BroadcastLogout() {
	_ = m.storage.Set(KeyLogout, strconv.FormatInt(m.clock.Now().UnixMilli(), 10))
	m.clock.AfterFunc(time.Second, func() {
		_ = m.storage.Remove(KeyLogout)
	})
}

// Close stops timers and the storage watch. Idempotent.
func (m *ActivityMonitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.ticker != nil {
		m.ticker.Stop()
	}
	if m.pendingWrite != nil {
		m.pendingWrite.Stop()
	}
	cancel := m.cancelWatch
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (m *ActivityMonitor) scheduleTick() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.ticker = m.clock.AfterFunc(m.cfg.CheckInterval, func() {
		m.check()
		m.scheduleTick()
	})
	m.mu.Unlock()
}

// check evaluates idle time against the warning and timeout thresholds.
func (m *ActivityMonitor) check() {
	m.mu.Lock()
	if m.timedOut || m.closed {
		m.mu.Unlock()
		return
	}

	// Another instance may have been active more recently than this one.
	last := m.lastActivity
	if shared, ok := m.readSharedActivity(); ok && shared.After(last) {
		last = shared
		m.lastActivity = shared
		m.warned = false
	}

	idle := m.clock.Now().Sub(last)

	switch {
	case idle >= m.cfg.IdleTimeout:
		m.timedOut = true
		m.mu.Unlock()
		m.emit(EventTimeout)
	case idle >= m.cfg.IdleTimeout-m.cfg.WarningLead && !m.warned:
		m.warned = true
		m.mu.Unlock()
		m.emit(EventWarning)
	default:
		m.mu.Unlock()
	}
}

func (m *ActivityMonitor) flushPendingWrite() {
	m.mu.Lock()
	m.pendingWrite = nil
	if m.timedOut || m.closed {
		m.mu.Unlock()
		return
	}
	at := m.lastActivity
	m.lastWrite = m.clock.Now()
	m.mu.Unlock()
	m.writeActivity(at)
}

func (m *ActivityMonitor) writeActivity(at time.Time) {
	_ = m.storage.Set(KeyLastActivity, strconv.FormatInt(at.UnixMilli(), 10))
}

// onStorageChange handles writes from every instance, including our own;
// the strictly-newer comparison makes self-notification a no-op.
func (m *ActivityMonitor) onStorageChange(key, value string) {
	switch key {
	case KeyLastActivity:
		if value == "" {
			return
		}
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return
		}
		at := time.UnixMilli(ms)

		m.mu.Lock()
		if m.closed || m.timedOut || !at.After(m.lastActivity) {
			m.mu.Unlock()
			return
		}
		m.lastActivity = at
		m.warned = false
		m.mu.Unlock()
		m.emit(EventActivity)

	case KeyLogout:
		if value == "" {
			// Marker cleanup, not a logout.
			return
		}
		m.mu.Lock()
		if m.closed || m.timedOut {
			m.mu.Unlock()
			return
		}
		m.timedOut = true
		m.mu.Unlock()
		m.emit(EventLogout)
	}
}

// emit calls every listener for event. A panicking listener is dropped
// from the call, not allowed to take the monitor down.
func (m *ActivityMonitor) emit(event string) {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.listeners[event]))
	for _, fn := range m.listeners[event] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() { _ = recover() }()
			fn()
		}()
	}
}

// readSharedActivity must be called with mu held.
func (m *ActivityMonitor) readSharedActivity() (time.Time, bool) {
	raw, ok := m.storage.Get(KeyLastActivity)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
