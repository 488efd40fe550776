package policy

import (
	"fmt"
	"sync"
	"time"
)

// quotaWindow is the sliding window for the per-user delete quota.
const quotaWindow = 24 * time.Hour

type deleteRecord struct {
	timestamp time.Time
	path      string
	userID    string
}

// rateLimiter tracks accepted deletes per user over a sliding 24-hour
// window. Records live only in process memory; a restart resets the
// quota. The mutex serializes the check-then-record sequence so two
// concurrent deletes from the same user cannot both slip under the cap.
type rateLimiter struct {
	mu      sync.Mutex
	max     int
	now     func() time.Time
	records []deleteRecord
}

func newRateLimiter(maxPerDay int, now func() time.Time) *rateLimiter {
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{max: maxPerDay, now: now}
}

// check prunes expired records and rejects the user if they are at the
// cap. It does not record the delete; call record once the delete has
// actually been executed.
func (r *rateLimiter) check(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()

	count := 0
	for _, rec := range r.records {
		if rec.userID == userID {
			count++
		}
	}
	if count >= r.max {
		return &Error{
			Kind:    KindQuotaExceeded,
			Message: fmt.Sprintf("user %q exceeded the delete quota of %d per 24h", userID, r.max),
		}
	}
	return nil
}

// record registers an executed delete against the user's quota.
func (r *rateLimiter) record(userID, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()
	r.records = append(r.records, deleteRecord{
		timestamp: r.now(),
		path:      path,
		userID:    userID,
	})
}

// count returns the user's live record count. Used by status reporting.
func (r *rateLimiter) count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()
	count := 0
	for _, rec := range r.records {
		if rec.userID == userID {
			count++
		}
	}
	return count
}

func (r *rateLimiter) pruneLocked() {
	cutoff := r.now().Add(-quotaWindow)
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.timestamp.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	r.records = kept
}
