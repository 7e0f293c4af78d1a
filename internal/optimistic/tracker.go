package optimistic

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"chub/internal/observability"
)

// ErrPending is returned when a toggle is started while another on the same
// resource has not settled.
var ErrPending = errors.New("toggle already in flight")

// Relationship names used in resource keys.
const (
	RelLike = "like"
	RelSave = "save"
)

// ResourceKey names one relationship of one resource, e.g. "post:42:like".
func ResourceKey(kind string, id uint, rel string) string {
	return fmt.Sprintf("%s:%d:%s", kind, id, rel)
}

func relationship(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}

type tracked struct {
	toggle  Toggle
	settled uint64 // sequence at settle time, 0 while pending
}

// Tracker holds in-flight and recently settled toggles so that data read from
// the cache can be overlaid with them. A response from a fetch that started
// before a toggle settled must not overwrite the toggle's values.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*tracked
	seq     uint64
	enabled func() bool
}

// NewTracker returns an empty Tracker. enabled reports whether optimistic
// display is on; nil means always on.
func NewTracker(enabled func() bool) *Tracker {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Tracker{entries: make(map[string]*tracked), enabled: enabled}
}

// Optimistic reports whether pending toggles are shown before confirmation.
func (t *Tracker) Optimistic() bool {
	return t.enabled()
}

// Begin starts a toggle on key from the given settled values.
func (t *Tracker) Begin(key string, flag bool, count int, counted bool) (Toggle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[key]; ok && e.toggle.State.Pending() {
		observability.OptimisticToggles.WithLabelValues(relationship(key), "rejected").Inc()
		return e.toggle, ErrPending
	}
	tg := Begin(flag, count, counted)
	t.entries[key] = &tracked{toggle: tg}
	observability.OptimisticToggles.WithLabelValues(relationship(key), "begin").Inc()
	return tg, nil
}

// Settle resolves the pending toggle on key. ok is false when nothing was pending.
func (t *Tracker) Settle(key string, out Outcome) (Toggle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok || !e.toggle.State.Pending() {
		return Toggle{}, false
	}
	e.toggle = Settle(e.toggle, out)
	t.seq++
	e.settled = t.seq

	outcome := "confirmed"
	if out.Err != nil {
		outcome = "reverted"
	}
	observability.OptimisticToggles.WithLabelValues(relationship(key), outcome).Inc()
	return e.toggle, true
}

// Mark returns a sequence number to capture when a fetch starts and pass to
// Apply with the fetched data.
func (t *Tracker) Mark() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Current returns the tracked toggle for key.
func (t *Tracker) Current(key string) (Toggle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return Toggle{}, false
	}
	return e.toggle, true
}

// Apply overlays the tracked toggle for key onto values read by a fetch that
// began at mark. Toggles settled at or before mark are already reflected in
// the fetched data and are left out. count may be nil for uncounted
// relationships. Nothing is forgotten: other readers of older data may still
// need the entry.
func (t *Tracker) Apply(key string, mark uint64, flag *bool, count *int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok || (e.settled != 0 && e.settled <= mark) {
		return
	}
	t.overlayLocked(e, flag, count)
}

// Overlay is Apply for values whose fetch mark is unknown. Every tracked
// toggle is shown.
func (t *Tracker) Overlay(key string, flag *bool, count *int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[key]; ok {
		t.overlayLocked(e, flag, count)
	}
}

func (t *Tracker) overlayLocked(e *tracked, flag *bool, count *int) {
	if e.toggle.State.Pending() && !t.enabled() {
		return
	}
	if flag != nil {
		*flag = e.toggle.State.Flag()
	}
	if count != nil && e.toggle.Counted {
		*count = e.toggle.Count
	}
}

// Prune forgets toggles settled at or before floor, the oldest mark any
// cached or in-flight data still carries. It returns how many were dropped.
func (t *Tracker) Prune(floor uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, e := range t.entries {
		if e.settled != 0 && e.settled <= floor {
			delete(t.entries, k)
			n++
		}
	}
	return n
}

// Forget drops the entry for key if it is settled.
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[key]; ok && !e.toggle.State.Pending() {
		delete(t.entries, key)
	}
}

// Reset drops every settled entry. Pending entries survive until they settle.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, e := range t.entries {
		if !e.toggle.State.Pending() {
			delete(t.entries, k)
		}
	}
}
