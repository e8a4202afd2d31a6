// Package clock is the single time authority for the auction engine.  Every
// lifecycle comparison (start/end time vs. "now") goes through a Clock pinned
// to one fixed civil timezone, so the rest of the system never mixes naive
// local strings with differently-offset instants.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTimezone is the market's civil timezone (Korean fish markets open on
// KST schedules).
const DefaultTimezone = "Asia/Seoul"

// civilLayout is the naive wall-clock format accepted from listing forms.
const civilLayout = "2006-01-02T15:04:05"

// Clock supplies the canonical current instant and the timezone every naive
// civil timestamp must be interpreted in.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// ──────────────────────────────────────────────────────────────────────────────
// Zone clock — production implementation
// ──────────────────────────────────────────────────────────────────────────────

// ZoneClock reads the system clock and reports it in a fixed location.
type ZoneClock struct {
	loc *time.Location
}

// New builds a ZoneClock for the named IANA timezone.
func New(zone string) (*ZoneClock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("clock.New: load timezone %q: %w", zone, err)
	}
	return &ZoneClock{loc: loc}, nil
}

// MustNew is New for main() wiring; panics on an unknown zone so a
// misconfigured timezone is caught at boot, not at the first sweep.
func MustNew(zone string) *ZoneClock {
	c, err := New(zone)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *ZoneClock) Now() time.Time { return time.Now().In(c.loc) }

func (c *ZoneClock) Location() *time.Location { return c.loc }

// ──────────────────────────────────────────────────────────────────────────────
// Civil time parsing
// ──────────────────────────────────────────────────────────────────────────────

// ParseTime converts a timestamp string to an absolute instant.  Offset-aware
// strings (RFC 3339) are taken as-is; naive civil strings are interpreted in
// the clock's fixed zone.  Never compare a naive string against "now" without
// going through here first.
func ParseTime(c Clock, s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(civilLayout, s, c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("clock.ParseTime: %q is neither RFC 3339 nor %q: %w", s, civilLayout, err)
	}
	return t, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Manual clock — test implementation
// ──────────────────────────────────────────────────────────────────────────────

// Manual is a hand-driven Clock for tests.  Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

// NewManual creates a Manual clock frozen at the given instant.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now, loc: now.Location()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Location() *time.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loc
}

// Set moves the clock to an exact instant.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
