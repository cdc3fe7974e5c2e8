package metrics

import (
	"sync"
	"time"

	"mergetool/logger"
)

// Event names a counted occurrence
type Event string

const (
	EventDiffComputed  Event = "diff_computed"
	EventDiffTruncated Event = "diff_truncated"
	EventSessionOpened Event = "session_opened"
	EventSessionClosed Event = "session_closed"
	EventBlockResolved Event = "block_resolved"
	EventBlockDropped  Event = "block_dropped"
	EventRequestFailed Event = "request_failed"
)

// Tracker counts what the daemon has done since it started. It never leaves
// the process; mergetool_stats reads it.
type Tracker struct {
	mu          sync.Mutex
	startedAt   time.Time
	counts      map[Event]int
	resolutions map[string]int // by action name
	diffTime    time.Duration
}

func NewTracker() *Tracker {
	return &Tracker{
		startedAt:   time.Now(),
		counts:      make(map[Event]int),
		resolutions: make(map[string]int),
	}
}

// Track records n occurrences of event
func (t *Tracker) Track(event Event, n int) {
	if t == nil || n == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[event] += n
	logger.Debug("metrics: %s +%d", event, n)
}

// TrackDiff records one diff computation
func (t *Tracker) TrackDiff(elapsed time.Duration, truncated bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[EventDiffComputed]++
	t.diffTime += elapsed
	if truncated {
		t.counts[EventDiffTruncated]++
	}
}

// TrackResolution records a block resolved with the named action
func (t *Tracker) TrackResolution(action string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[EventBlockResolved]++
	t.resolutions[action]++
}

// Summary is a point-in-time copy of the counters
type Summary struct {
	Uptime      time.Duration
	Counts      map[Event]int
	Resolutions map[string]int
	DiffTime    time.Duration
}

func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		Uptime:      time.Since(t.startedAt),
		Counts:      make(map[Event]int, len(t.counts)),
		Resolutions: make(map[string]int, len(t.resolutions)),
		DiffTime:    t.diffTime,
	}
	for k, v := range t.counts {
		s.Counts[k] = v
	}
	for k, v := range t.resolutions {
		s.Resolutions[k] = v
	}
	return s
}

// Count returns the counter for event
func (s Summary) Count(event Event) int {
	return s.Counts[event]
}

// ToLuaFormat converts the summary to a map for Lua consumption
func (s Summary) ToLuaFormat() map[string]any {
	counts := make(map[string]any, len(s.Counts))
	for k, v := range s.Counts {
		counts[string(k)] = v
	}
	resolutions := make(map[string]any, len(s.Resolutions))
	for k, v := range s.Resolutions {
		resolutions[k] = v
	}
	return map[string]any{
		"uptime_ms":    s.Uptime.Milliseconds(),
		"diff_time_ms": s.DiffTime.Milliseconds(),
		"counts":       counts,
		"resolutions":  resolutions,
	}
}
