package ratelimits

import (
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
)

// How long an unused limiter is kept
const SLOWMODE_IDLE_TTL = 10 * time.Minute

type slowmodeEntry struct {
	limiter  *slidingwindow.Limiter
	stop     slidingwindow.StopFunc
	messages int
	interval time.Duration
	lastUsed time.Time
}

// SlowmodeContainer holds one sliding window limiter per guild member
type SlowmodeContainer struct {
	sync.RWMutex

	// Maps guild:user to limiters
	limiters map[string]*slowmodeEntry
}

func NewSlowmodeContainer() *SlowmodeContainer {
	return &SlowmodeContainer{limiters: make(map[string]*slowmodeEntry)}
}

func localWindow() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

// Allow reports whether $userID may send another message in $guildID at $now,
// allowing $messages per $interval
func (b *SlowmodeContainer) Allow(guildID, userID string, messages int, interval time.Duration, now time.Time) bool {
	if messages <= 0 || interval <= 0 {
		return true
	}
	key := guildID + ":" + userID

	b.Lock()
	entry, ok := b.limiters[key]
	if !ok || entry.messages != messages || entry.interval != interval {
		if ok {
			entry.stop()
		}
		limiter, stop := slidingwindow.NewLimiter(interval, int64(messages), localWindow)
		entry = &slowmodeEntry{
			limiter:  limiter,
			stop:     stop,
			messages: messages,
			interval: interval,
		}
		b.limiters[key] = entry
	}
	entry.lastUsed = now
	b.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// Prune drops limiters unused since $now - SLOWMODE_IDLE_TTL
func (b *SlowmodeContainer) Prune(now time.Time) int {
	b.Lock()
	defer b.Unlock()

	var pruned int
	for key, entry := range b.limiters {
		if now.Sub(entry.lastUsed) > SLOWMODE_IDLE_TTL {
			entry.stop()
			delete(b.limiters, key)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of tracked members
func (b *SlowmodeContainer) Len() int {
	b.RLock()
	defer b.RUnlock()

	return len(b.limiters)
}
