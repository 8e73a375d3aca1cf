package attempts

import (
	"time"
)

// Record is the failure history for one identifier. A Record with a zero FailureCount is never stored; the entry is
// removed instead.
type Record struct {
	FailureCount  int
	LastAttemptAt time.Time
}

// expired reports whether the record has aged out of the lockout window. Everything time based is derived from the
// record and a supplied now, nothing is mutated on a timer.
func (r Record) expired(now time.Time, lockout time.Duration) bool {
	return now.Sub(r.LastAttemptAt) >= lockout
}

// next returns the record that results from one more failure at now.
func (r Record) next(now time.Time, lockout time.Duration) Record {
	if r.FailureCount == 0 || r.expired(now, lockout) {
		return Record{FailureCount: 1, LastAttemptAt: now}
	}

	return Record{FailureCount: r.FailureCount + 1, LastAttemptAt: now}
}

// remainingLockout works in whole minutes, same as the lockout configuration. A record that has not reached the
// threshold has no lockout at all, even if failures exist.
func (r Record) remainingLockout(now time.Time, lockoutMinutes int, maxAttempts int) time.Duration {
	if r.FailureCount < maxAttempts {
		return 0
	}

	minutesSince := max(0, int(now.Sub(r.LastAttemptAt)/time.Minute))
	remaining := lockoutMinutes - minutesSince
	if remaining <= 0 {
		return 0
	}

	return time.Duration(remaining) * time.Minute
}
