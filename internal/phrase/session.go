package phrase

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/midiloop/internal/util"
)

// Session is the timing context of one recording or playback run. The epoch
// is the instant that phrase offset zero maps to. The player moves it at the
// start of every pass; the recorder sets it lazily when nothing else has, so
// overdubbed notes land on the loop's timeline.
//
// The epoch keeps the monotonic reading of the time it was set from, so clock
// readings measured against it are immune to wall-clock steps.
type Session struct {
	ID    string
	epoch atomic.Pointer[time.Time] // nil when unset
}

// NewSession returns a session with no epoch.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// Restart moves the epoch to t.
func (s *Session) Restart(t time.Time) {
	s.epoch.Store(&t)
}

// EnsureEpoch sets the epoch to t unless one is already set, and returns the
// epoch in effect.
func (s *Session) EnsureEpoch(t time.Time) time.Time {
	s.epoch.CompareAndSwap(nil, &t)
	return *s.epoch.Load()
}

// Epoch returns the epoch and whether it is set.
func (s *Session) Epoch() (time.Time, bool) {
	e := s.epoch.Load()
	if e == nil {
		return time.Time{}, false
	}
	return *e, true
}

// Elapsed is the offset of t from the epoch, never negative. It is zero when
// no epoch is set.
func (s *Session) Elapsed(t time.Time) time.Duration {
	e := s.epoch.Load()
	if e == nil {
		return 0
	}
	return util.AtLeast(t.Sub(*e), 0)
}
