// internal/clock/clock.go
//
// Package clock implements the two-sided chess clock used by the Time-Challenge game.
// Remaining time is derived from the instant the current run segment started rather than
// from a ticking counter, so the stored value stays exact across restarts and missed ticks.
// Nothing here persists; callers save the Clock together with any other state change.
package clock

import (
	"time"

	"github.com/jason-s-yu/partygames/internal/apperror"
)

// DefaultSeconds is the per-side budget of a fresh clock.
const DefaultSeconds = 60

// Side identifies one of the two contestants' timers.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Valid reports whether s names a real side.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Clock is the persisted chess-clock state.
// Invariant: IsRunning implies LastStartedAt != nil.
type Clock struct {
	CurrentSide   Side       `json:"current_side"`
	ATimeLeft     float64    `json:"a_time_left_seconds"`
	BTimeLeft     float64    `json:"b_time_left_seconds"`
	IsRunning     bool       `json:"is_running"`
	LastStartedAt *time.Time `json:"last_started_at"`
}

// New returns a stopped clock with both sides at seconds, side A current.
func New(seconds float64) Clock {
	if seconds < 0 {
		seconds = 0
	}
	return Clock{
		CurrentSide: SideA,
		ATimeLeft:   seconds,
		BTimeLeft:   seconds,
	}
}

// TimeLeft returns the stored remaining seconds for side, ignoring any running segment.
func (c *Clock) TimeLeft(side Side) float64 {
	if side == SideB {
		return c.BTimeLeft
	}
	return c.ATimeLeft
}

func (c *Clock) setTimeLeft(side Side, v float64) {
	if v < 0 {
		v = 0
	}
	if side == SideB {
		c.BTimeLeft = v
	} else {
		c.ATimeLeft = v
	}
}

// elapsed is max(0, now - start). A start instant in the future counts as zero.
func elapsed(start *time.Time, now time.Time) float64 {
	if start == nil {
		return 0
	}
	d := now.Sub(*start).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// Remaining returns what side would have left if settled at now, without mutating the clock.
func (c *Clock) Remaining(side Side, now time.Time) float64 {
	left := c.TimeLeft(side)
	if c.IsRunning && c.CurrentSide == side {
		left -= elapsed(c.LastStartedAt, now)
	}
	if left < 0 {
		return 0
	}
	return left
}

// Settle charges the time elapsed since the current segment started to the running side
// and moves the segment start to now. Calling it twice at the same instant changes nothing.
func (c *Clock) Settle(now time.Time) {
	if !c.IsRunning || c.LastStartedAt == nil {
		return
	}
	c.setTimeLeft(c.CurrentSide, c.TimeLeft(c.CurrentSide)-elapsed(c.LastStartedAt, now))
	if now.After(*c.LastStartedAt) {
		t := now
		c.LastStartedAt = &t
	}
}

// Start settles any running side, then runs side from now.
func (c *Clock) Start(side Side, now time.Time) error {
	if !side.Valid() {
		return apperror.Validation(apperror.ReasonInvalidSide, "unknown side %q", side)
	}
	if c.Remaining(side, now) <= 0 {
		return apperror.Validation(apperror.ReasonNoTimeLeft, "side %s has no time left", side)
	}
	c.Settle(now)
	t := now
	c.CurrentSide = side
	c.IsRunning = true
	c.LastStartedAt = &t
	return nil
}

// Stop settles the running side and stops the clock. Stopping a stopped clock is a no-op.
func (c *Clock) Stop(now time.Time) {
	c.Settle(now)
	c.stopAt(c.CurrentSide)
}

func (c *Clock) stopAt(side Side) {
	c.CurrentSide = side
	c.IsRunning = false
	c.LastStartedAt = nil
}

// SwitchAfterAnswer stops the clock and hands the turn to the other side. The other side
// starts running only if it has time left; otherwise the clock stays stopped with that side
// current, which signals the end of the round. It reports whether the clock is running.
func (c *Clock) SwitchAfterAnswer(now time.Time) bool {
	c.Stop(now)
	next := c.CurrentSide.Other()
	if c.TimeLeft(next) <= 0 {
		c.stopAt(next)
		return false
	}
	// next has time left, so Start cannot fail here.
	_ = c.Start(next, now)
	return true
}

// Reset gives both sides a fresh budget, makes start current and stops the clock.
func (c *Clock) Reset(seconds float64, start Side) error {
	if seconds < 0 {
		return apperror.Validation(apperror.ReasonNegativeTime, "seconds must be non-negative, got %v", seconds)
	}
	if !start.Valid() {
		return apperror.Validation(apperror.ReasonInvalidSide, "unknown side %q", start)
	}
	c.ATimeLeft = seconds
	c.BTimeLeft = seconds
	c.stopAt(start)
	return nil
}

// Exhausted reports whether neither side can run any more at now.
func (c *Clock) Exhausted(now time.Time) bool {
	return c.Remaining(SideA, now) <= 0 && c.Remaining(SideB, now) <= 0
}
