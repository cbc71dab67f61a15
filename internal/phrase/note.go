// Package phrase holds the sequencer's data model: notes, phrases, songs and
// the per-session timing context shared by the recorder and the player.
package phrase

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrPitchOutOfRange    = errors.New("pitch out of range")
	ErrVelocityOutOfRange = errors.New("velocity out of range")
	ErrNegativeStart      = errors.New("note starts before the phrase")
	ErrEndBeforeStart     = errors.New("note ends before it starts")
)

// Note is a matched Note On / Note Off pair. Start and End are offsets from
// the beginning of the phrase.
type Note struct {
	Channel     uint8
	Pitch       uint8
	VelocityOn  uint8
	VelocityOff uint8
	Start       time.Duration
	End         time.Duration
}

// Length is how long the note sounds.
func (n Note) Length() time.Duration {
	return n.End - n.Start
}

// Validate checks the note invariants.
func (n Note) Validate() error {
	switch {
	case n.Pitch > 127:
		return fmt.Errorf("%w: %d", ErrPitchOutOfRange, n.Pitch)
	case n.VelocityOn > 127 || n.VelocityOff > 127:
		return fmt.Errorf("%w: on=%d off=%d", ErrVelocityOutOfRange, n.VelocityOn, n.VelocityOff)
	case n.Start < 0:
		return fmt.Errorf("%w: %s", ErrNegativeStart, n.Start)
	case n.End < n.Start:
		return fmt.Errorf("%w: start=%s end=%s", ErrEndBeforeStart, n.Start, n.End)
	}
	return nil
}

func (n Note) String() string {
	return fmt.Sprintf("Note(ch=%d pitch=%d vel=%d/%d %s-%s)",
		n.Channel, n.Pitch, n.VelocityOn, n.VelocityOff, n.Start, n.End)
}
