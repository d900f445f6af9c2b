package automod

import (
	"time"

	"gopkg.in/oleiade/lane.v1"
)

// idle windows are dropped once their newest entry is this much older than the interval
const windowMargin = time.Second

type windowEntry struct {
	at     time.Time
	weight int
	key    string
}

// Window counts weighted events in a trailing time interval.
// Entries are kept sorted by time in a deque, so each Record only touches
// the entries falling out of the interval. Not safe for concurrent use.
type Window struct {
	entries *lane.Deque
	sum     int
	newest  time.Time
}

func NewWindow() *Window {
	return &Window{entries: lane.NewDeque()}
}

// Record adds $weight at $at and reports whether the weight inside
// [at - interval, at] reached $required. A triggered window is cleared
// and the keys of its entries are returned.
func (w *Window) Record(key string, at time.Time, weight int, interval time.Duration, required int) (bool, []string) {
	if weight <= 0 {
		return false, nil
	}
	// late events are counted at the newest time seen
	if at.Before(w.newest) {
		at = w.newest
	}
	w.newest = at

	w.entries.Append(&windowEntry{at: at, weight: weight, key: key})
	w.sum += weight
	w.prune(at.Add(-interval))

	if required <= 0 || w.sum < required {
		return false, nil
	}
	return true, w.Clear()
}

func (w *Window) prune(cutoff time.Time) {
	for !w.entries.Empty() {
		first := w.entries.First().(*windowEntry)
		if !first.at.Before(cutoff) {
			return
		}
		w.entries.Shift()
		w.sum -= first.weight
	}
}

// Sum returns the weight currently in the window
func (w *Window) Sum() int {
	return w.sum
}

// Len returns the number of entries currently in the window
func (w *Window) Len() int {
	return w.entries.Size()
}

// Idle reports whether nothing was recorded within $interval plus a margin before $now
func (w *Window) Idle(now time.Time, interval time.Duration) bool {
	return w.newest.Before(now.Add(-interval - windowMargin))
}

// Clear empties the window and returns the distinct keys it held, oldest first
func (w *Window) Clear() []string {
	keys := make([]string, 0)
	seen := make(map[string]bool)
	for !w.entries.Empty() {
		entry := w.entries.Shift().(*windowEntry)
		if entry.key == "" || seen[entry.key] {
			continue
		}
		seen[entry.key] = true
		keys = append(keys, entry.key)
	}
	w.sum = 0
	return keys
}
