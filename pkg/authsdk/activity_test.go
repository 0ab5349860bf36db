package authsdk

import (
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T, storage Storage, clock Clock) *ActivityMonitor {
	t.Helper()
	m := NewActivityMonitor(storage, clock, ActivityConfig{})
	t.Cleanup(m.Close)
	return m
}

func countEvents(m *ActivityMonitor, event string) *atomic.Int32 {
	var n atomic.Int32
	m.On(event, func() { n.Add(1) })
	return &n
}

func TestActivityMonitorThresholds(t *testing.T) {
	t.Parallel()

	t.Run("warning then timeout", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		m := newTestMonitor(t, NewMemStorage(), clock)

		warnings := countEvents(m, EventWarning)
		timeouts := countEvents(m, EventTimeout)

		clock.Advance(27 * time.Minute)
		require.EqualValues(t, 0, warnings.Load())

		clock.Advance(2 * time.Minute)
		require.EqualValues(t, 1, warnings.Load())
		require.EqualValues(t, 0, timeouts.Load())

		clock.Advance(2 * time.Minute)
		require.EqualValues(t, 1, timeouts.Load())
	})

	t.Run("warning fires once", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		m := newTestMonitor(t, NewMemStorage(), clock)

		warnings := countEvents(m, EventWarning)

		// Sit inside the warning band across several ticks.
		clock.Advance(28*time.Minute + 30*time.Second)
		clock.Advance(time.Minute)
		require.EqualValues(t, 1, warnings.Load())
	})

	t.Run("timeout is terminal", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		m := newTestMonitor(t, NewMemStorage(), clock)

		timeouts := countEvents(m, EventTimeout)

		clock.Advance(31 * time.Minute)
		require.EqualValues(t, 1, timeouts.Load())

		// Activity after timeout changes nothing.
		m.RecordActivity()
		clock.Advance(31 * time.Minute)
		require.EqualValues(t, 1, timeouts.Load())
	})

	t.Run("activity resets the warning", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		m := newTestMonitor(t, NewMemStorage(), clock)

		warnings := countEvents(m, EventWarning)

		clock.Advance(28*time.Minute + 30*time.Second)
		require.EqualValues(t, 1, warnings.Load())

		m.RecordActivity()
		clock.Advance(28*time.Minute + 30*time.Second)
		require.EqualValues(t, 2, warnings.Load())
	})

	t.Run("restart after login re-arms", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		storage := NewMemStorage()
		m := newTestMonitor(t, storage, clock)

		timeouts := countEvents(m, EventTimeout)
		activities := countEvents(m, EventActivity)
		clock.Advance(31 * time.Minute)
		require.EqualValues(t, 1, timeouts.Load())

		m.ResetTimer()

		// The reset writes straight through so other instances see it, and
		// local listeners hear activity so any warning UI dismisses itself.
		raw, ok := storage.Get(KeyLastActivity)
		require.True(t, ok)
		require.Equal(t, strconv.FormatInt(clock.Now().UnixMilli(), 10), raw)
		require.EqualValues(t, 1, activities.Load())

		clock.Advance(31 * time.Minute)
		require.EqualValues(t, 2, timeouts.Load())
	})
}

func TestActivityMonitorDebounce(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	storage := NewMemStorage()

	var writes atomic.Int32
	storage.Watch(func(key, value string) {
		if key == KeyLastActivity {
			writes.Add(1)
		}
	})

	m := newTestMonitor(t, storage, clock)

	// First event writes through immediately.
	clock.Advance(2 * time.Minute)
	m.RecordActivity()
	require.EqualValues(t, 1, writes.Load())

	// A burst inside the window adds no immediate writes.
	for n := 0; n < 10; n++ {
		clock.Advance(time.Second)
		m.RecordActivity()
	}
	require.EqualValues(t, 1, writes.Load())

	// The trailing write flushes once when the window closes.
	clock.Advance(DefaultDebounce)
	require.EqualValues(t, 2, writes.Load())
}

func TestActivityMonitorCrossInstance(t *testing.T) {
	t.Parallel()

	t.Run("activity in one keeps the other alive", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		storage := NewMemStorage()

		active := newTestMonitor(t, storage, clock)
		passive := newTestMonitor(t, storage, clock)

		activityEvents := countEvents(passive, EventActivity)
		timeouts := countEvents(passive, EventTimeout)

		// Keep one instance busy past the other's idle window.
		for n := 0; n < 20; n++ {
			clock.Advance(2 * time.Minute)
			active.RecordActivity()
		}

		require.EqualValues(t, 0, timeouts.Load())
		require.Positive(t, activityEvents.Load())
	})

	t.Run("own writes do not echo", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		m := newTestMonitor(t, NewMemStorage(), clock)

		echoes := countEvents(m, EventActivity)

		clock.Advance(2 * time.Minute)
		m.RecordActivity()
		clock.Advance(DefaultDebounce)

		require.EqualValues(t, 0, echoes.Load())
	})

	t.Run("warning dismissed by remote activity", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		storage := NewMemStorage()

		warned := newTestMonitor(t, storage, clock)
		other := newTestMonitor(t, storage, clock)

		warnings := countEvents(warned, EventWarning)
		activity := countEvents(warned, EventActivity)

		clock.Advance(28*time.Minute + 30*time.Second)
		require.EqualValues(t, 1, warnings.Load())

		other.RecordActivity()
		require.Positive(t, activity.Load())

		// The shared activity pushed the idle clock back; no timeout at the
		// original deadline.
		timeouts := countEvents(warned, EventTimeout)
		clock.Advance(2 * time.Minute)
		require.EqualValues(t, 0, timeouts.Load())
	})

	t.Run("stay-logged-in in one postpones the other's timeout", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		storage := NewMemStorage()

		dialog := newTestMonitor(t, storage, clock)
		background := newTestMonitor(t, storage, clock)

		timeouts := countEvents(background, EventTimeout)
		activity := countEvents(background, EventActivity)

		// One instance into the warning band, then the user confirms they
		// want to stay.
		clock.Advance(29 * time.Minute)
		dialog.ResetTimer()
		require.Positive(t, activity.Load())

		clock.Advance(2 * time.Minute)
		require.EqualValues(t, 0, timeouts.Load())
	})

	t.Run("logout broadcast reaches every instance", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		storage := NewMemStorage()

		leaving := newTestMonitor(t, storage, clock)
		staying := newTestMonitor(t, storage, clock)

		logouts := countEvents(staying, EventLogout)

		leaving.BroadcastLogout()
		require.EqualValues(t, 1, logouts.Load())

		// The marker is cleaned up and the cleanup is not a second logout.
		clock.Advance(2 * time.Second)
		_, found := storage.Get(KeyLogout)
		require.False(t, found)
		require.EqualValues(t, 1, logouts.Load())
	})
}

func TestActivityMonitorOnVisible(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	m := NewActivityMonitor(NewMemStorage(), clock, ActivityConfig{
		// Long check interval: only OnVisible can catch the timeout here.
		CheckInterval: time.Hour,
	})
	t.Cleanup(m.Close)

	timeouts := countEvents(m, EventTimeout)

	// Simulate a laptop lid close: time passes without any tick.
	clock.mu.Lock()
	clock.now = clock.now.Add(45 * time.Minute)
	clock.mu.Unlock()

	require.EqualValues(t, 0, timeouts.Load())
	m.OnVisible()
	require.EqualValues(t, 1, timeouts.Load())
}

func TestActivityMonitorListenerPanic(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	m := newTestMonitor(t, NewMemStorage(), clock)

	var called atomic.Bool
	m.On(EventWarning, func() { panic("listener bug") })
	m.On(EventWarning, func() { called.Store(true) })

	clock.Advance(29 * time.Minute)
	require.True(t, called.Load())
}
