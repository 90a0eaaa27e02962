// Package clock isolates wall-clock reads behind a narrow seam so the
// superblock, journal, cache and CoW engine can be driven by a fake
// clock in tests instead of depending on time.Now directly.
package clock

import "time"

// Clock returns the current time. The production implementation wraps
// time.Now; tests substitute a Fake to get deterministic timestamps.
type Clock interface {
	Now() time.Time
}

// System is the production Clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Fake is a manually-advanced Clock for deterministic tests.
type Fake struct {
	t time.Time
}

// NewFake returns a Fake pinned at t.
func NewFake(t time.Time) *Fake { return &Fake{t: t} }

// Now returns the fake's current time.
func (f *Fake) Now() time.Time { return f.t }

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) { f.t = f.t.Add(d) }

// Set pins the fake clock to t.
func (f *Fake) Set(t time.Time) { f.t = t }
