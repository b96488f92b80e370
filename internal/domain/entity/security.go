package entity

import "time"

// Security holds the persisted login-attempt counters. Lock state is never
// stored as a flag; it is derived from LockUntil and the current time.
type Security struct {
	LoginAttempts int
	LockUntil     *time.Time
}

// LockPolicy is the process-wide lockout configuration.
type LockPolicy struct {
	Threshold int
	Window    time.Duration
}

func DefaultLockPolicy() LockPolicy {
	return LockPolicy{Threshold: 5, Window: 2 * time.Hour}
}

// IsLocked is true iff LockUntil is set and still in the future.
func (s Security) IsLocked(now time.Time) bool {
	return s.LockUntil != nil && s.LockUntil.After(now)
}

// lockExpired is true when a lock was set and has since passed.
func (s Security) lockExpired(now time.Time) bool {
	return s.LockUntil != nil && !s.LockUntil.After(now)
}

// AfterFailure returns the state reached by one more failed login at now.
//
// An expired lock restarts counting at 1 because the failure itself counts.
// Otherwise attempts grow by one and the account locks for p.Window once the
// threshold is reached, unless it is already locked.
func (s Security) AfterFailure(now time.Time, p LockPolicy) Security {
	if s.lockExpired(now) {
		return Security{LoginAttempts: 1}
	}
	next := Security{LoginAttempts: s.LoginAttempts + 1, LockUntil: s.LockUntil}
	if next.LoginAttempts >= p.Threshold && !s.IsLocked(now) {
		until := now.Add(p.Window)
		next.LockUntil = &until
	}
	return next
}

// AfterSuccess clears attempts and any lock.
func (s Security) AfterSuccess() Security {
	return Security{}
}
