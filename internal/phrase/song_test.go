package phrase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSongSlots(t *testing.T) {
	s := NewSong(0)
	assert.Equal(t, DefaultSlots, s.Len())
	assert.Equal(t, 0, s.ActiveIndex())

	first := s.Active()
	require.NoError(t, s.Select(3))
	assert.Equal(t, 3, s.ActiveIndex())
	assert.NotSame(t, first, s.Active())

	third, err := s.Slot(3)
	require.NoError(t, err)
	assert.Same(t, third, s.Active())

	assert.ErrorIs(t, s.Select(10), ErrSlotOutOfRange)
	assert.ErrorIs(t, s.Select(-1), ErrSlotOutOfRange)
	_, err = s.Slot(42)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
	assert.Equal(t, 3, s.ActiveIndex())
}

func TestSelectDoesNotCopy(t *testing.T) {
	s := NewSong(2)
	s.Active().Add(Note{Pitch: 60, End: time.Second})
	require.NoError(t, s.Select(1))
	require.NoError(t, s.Select(0))
	assert.Equal(t, 1, s.Active().Len())
}

func TestSessionEpoch(t *testing.T) {
	assert := assert.New(t)
	s := NewSession()
	assert.NotEmpty(s.ID)

	_, ok := s.Epoch()
	assert.False(ok)
	assert.Equal(time.Duration(0), s.Elapsed(time.Now()))

	t0 := time.Unix(100, 0)
	assert.Equal(t0, s.EnsureEpoch(t0))
	// already set: inherited
	assert.Equal(t0, s.EnsureEpoch(t0.Add(time.Second)))
	assert.Equal(1500*time.Millisecond, s.Elapsed(t0.Add(1500*time.Millisecond)))
	assert.Equal(time.Duration(0), s.Elapsed(t0.Add(-time.Second)))

	s.Restart(t0.Add(10 * time.Second))
	epoch, ok := s.Epoch()
	assert.True(ok)
	assert.Equal(t0.Add(10*time.Second), epoch)
}

func TestSessionEpochKeepsMonotonicReading(t *testing.T) {
	s := NewSession()
	t0 := time.Now()
	s.Restart(t0)

	epoch, ok := s.Epoch()
	require.True(t, ok)
	// equal including the monotonic reading
	assert.True(t, epoch == t0)
	assert.Equal(t, 250*time.Millisecond, s.Elapsed(t0.Add(250*time.Millisecond)))

	// a reading stripped of its monotonic part is measured on the wall clock
	assert.Equal(t, time.Second, s.Elapsed(t0.Add(time.Second).Round(0)))
}
