// Package lockout tracks failed login attempts per account and applies a
// temporary lock when too many failures land inside a rolling window. The
// failure history and lock deadline live on the durable user record, so a
// restart does not forget an active lock.
package lockout

import (
	"time"

	"github.com/pkg/errors"

	"github.com/inschat/auth-service/store"
)

// Tracker maintains the per-account failure window backed by the store.
type Tracker struct {
	store     *store.Store
	threshold int
	window    time.Duration
	duration  time.Duration
	nowTime   func() time.Time
}

// TrackerOption modifies a Tracker.
type TrackerOption func(*Tracker)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.nowTime = nowFunc
	}
}

// NewTracker creates a Tracker that locks an account for duration once
// threshold failures occur within window.
func NewTracker(st *store.Store, threshold int, window, duration time.Duration, options ...TrackerOption) *Tracker {
	t := &Tracker{
		store:     st,
		threshold: threshold,
		window:    window,
		duration:  duration,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Status reports whether the account is currently locked and, if so, how
// long until the lock expires. It lazily prunes the failure window but
// never sets a lock: unlocking is implicit once the deadline passes, and
// the failure history is deliberately kept (one more failure right after
// unlock can re-trigger the lock). Unknown users report unlocked.
func (t *Tracker) Status(username string) (bool, time.Duration) {
	locked := false
	var remaining time.Duration
	now := t.nowTime().Unix()
	t.store.Read(func(st *store.State) {
		rec, ok := st.Users[username]
		if !ok {
			return
		}
		if now < rec.LockedUntil {
			locked = true
			remaining = time.Duration(rec.LockedUntil-now) * time.Second
			return
		}
		rec.FailureTimes = prune(rec.FailureTimes, now, t.window)
	})
	return locked, remaining
}

// RecordFailure appends a failure timestamp and persists it. When the
// pruned failure count reaches the threshold and the account is not already
// locked, the account transitions to locked; an existing lock is never
// extended by further failures.
func (t *Tracker) RecordFailure(username string) error {
	now := t.nowTime().Unix()
	err := t.store.Update(func(st *store.State) error {
		rec, ok := st.Users[username]
		if !ok {
			return nil
		}
		rec.FailureTimes = append(prune(rec.FailureTimes, now, t.window), now)
		if now >= rec.LockedUntil && len(rec.FailureTimes) >= t.threshold {
			rec.LockedUntil = now + int64(t.duration.Seconds())
		}
		return nil
	})
	return errors.Wrap(err, "[Tracker.RecordFailure]")
}

// RecordSuccess clears the failure history after a successful login.
func (t *Tracker) RecordSuccess(username string) error {
	err := t.store.Update(func(st *store.State) error {
		rec, ok := st.Users[username]
		if !ok {
			return nil
		}
		rec.FailureTimes = nil
		return nil
	})
	return errors.Wrap(err, "[Tracker.RecordSuccess]")
}

// prune drops failure timestamps older than the window.
func prune(times []int64, now int64, window time.Duration) []int64 {
	cutoff := now - int64(window.Seconds())
	kept := times[:0]
	for _, ts := range times {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	return kept
}
