package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/domain"
)

// RoomRateLimiter caps how many messages one user may publish per interval,
// counted across all of that user's connections.
type RoomRateLimiter struct {
	mu       sync.Mutex
	windows  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRoomRateLimiter(limit int, interval time.Duration) *RoomRateLimiter {
	return &RoomRateLimiter{
		windows:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow records a hit for uid and reports whether it fits in the window.
// Rejected hits are not recorded.
func (rl *RoomRateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	hits := trimBefore(rl.windows[uid], now.Add(-rl.interval))
	if len(hits) >= rl.limit {
		rl.windows[uid] = hits
		return false
	}
	rl.windows[uid] = append(hits, now)
	return true
}

// Sweep forgets users with no hit inside the current window and returns
// how many are still tracked.
func (rl *RoomRateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.interval)
	for uid, hits := range rl.windows {
		if hits = trimBefore(hits, cutoff); len(hits) == 0 {
			delete(rl.windows, uid)
			continue
		}
		rl.windows[uid] = hits
	}
	return len(rl.windows)
}

// trimBefore drops the leading hits at or before cutoff. Hits are
// appended in time order so the first one inside the window ends the scan.
func trimBefore(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
