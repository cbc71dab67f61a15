package recorder

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/leandrodaf/midiloop/internal/logger"
	"github.com/leandrodaf/midiloop/internal/phrase"
	"github.com/leandrodaf/midiloop/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Unix(1_700_000_000, 0)

func on(pitch, vel uint8, at time.Duration) contracts.MIDI {
	return contracts.NewMIDI(uint64(base.Add(at).UnixNano()), 0x90, pitch, vel)
}

func off(pitch, vel uint8, at time.Duration) contracts.MIDI {
	return contracts.NewMIDI(uint64(base.Add(at).UnixNano()), 0x80, pitch, vel)
}

// record feeds events through a closed channel and returns the phrase.
func record(t *testing.T, p *phrase.Phrase, s *phrase.Session, events []contracts.MIDI, opts ...Option) *phrase.Phrase {
	t.Helper()
	in := make(chan contracts.MIDI, len(events))
	for _, ev := range events {
		in <- ev
	}
	close(in)
	opts = append([]Option{
		WithLogger(logger.NewNopLogger()),
		WithClock(func() time.Time { return base }),
	}, opts...)
	r := New(in, opts...)
	require.NoError(t, r.Record(context.Background(), p, s))
	return p
}

func TestSingleNote(t *testing.T) {
	p := record(t, phrase.New(), phrase.NewSession(), []contracts.MIDI{
		on(60, 64, 0),
		off(60, 64, 500*time.Millisecond),
	})

	notes := p.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, phrase.Note{
		Pitch: 60, VelocityOn: 64, VelocityOff: 64,
		Start: 0, End: 500 * time.Millisecond,
	}, notes[0])
	assert.True(t, p.Dirty())
}

func TestEpochIsSetByFirstEvent(t *testing.T) {
	s := phrase.NewSession()
	p := record(t, phrase.New(), s, []contracts.MIDI{
		on(60, 64, 2*time.Second),
		off(60, 0, 2500*time.Millisecond),
		on(62, 64, 3*time.Second),
		off(62, 0, 3200*time.Millisecond),
	})

	notes := p.Notes()
	require.Len(t, notes, 2)
	assert.Equal(t, time.Duration(0), notes[0].Start)
	assert.Equal(t, time.Second, notes[1].Start)
	assert.Equal(t, 1200*time.Millisecond, notes[1].End)

	epoch, ok := s.Epoch()
	require.True(t, ok)
	assert.Equal(t, base.Add(2*time.Second).UnixNano(), epoch.UnixNano())
}

func TestInheritedEpochContinuesTimeline(t *testing.T) {
	p := phrase.New(phrase.Note{Pitch: 48, End: time.Second})
	s := phrase.NewSession()
	s.Restart(base)

	record(t, p, s, []contracts.MIDI{
		on(60, 80, 1500*time.Millisecond),
		off(60, 0, 1750*time.Millisecond),
	})

	notes := p.Notes()
	require.Len(t, notes, 2)
	assert.Equal(t, uint8(60), notes[1].Pitch)
	assert.Equal(t, 1500*time.Millisecond, notes[1].Start)
	assert.Equal(t, 1750*time.Millisecond, notes[1].End)
}

func TestUnmatchedOffIsDropped(t *testing.T) {
	p := record(t, phrase.New(), phrase.NewSession(), []contracts.MIDI{
		off(64, 0, 0),
		on(60, 64, 100*time.Millisecond),
		off(60, 0, 200*time.Millisecond),
	})

	notes := p.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, uint8(60), notes[0].Pitch)
}

func TestNoteOnVelocityZeroEndsNote(t *testing.T) {
	p := record(t, phrase.New(), phrase.NewSession(), []contracts.MIDI{
		on(60, 90, 0),
		on(60, 0, 300*time.Millisecond),
	})

	notes := p.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, 300*time.Millisecond, notes[0].End)
	assert.Equal(t, uint8(0), notes[0].VelocityOff)
}

func TestSequentialSamePitchPairsInArrivalOrder(t *testing.T) {
	p := record(t, phrase.New(), phrase.NewSession(), []contracts.MIDI{
		on(60, 10, 0),
		off(60, 0, 100*time.Millisecond),
		on(60, 20, 100*time.Millisecond),
		off(60, 0, 400*time.Millisecond),
	})

	notes := p.Notes()
	require.Len(t, notes, 2)
	assert.Equal(t, uint8(10), notes[0].VelocityOn)
	assert.Equal(t, 100*time.Millisecond, notes[0].End)
	assert.Equal(t, uint8(20), notes[1].VelocityOn)
	assert.Equal(t, 100*time.Millisecond, notes[1].Start)
	assert.Equal(t, 400*time.Millisecond, notes[1].End)
}

func TestRetriggerPolicies(t *testing.T) {
	events := []contracts.MIDI{
		on(60, 10, 0),
		on(60, 20, 200*time.Millisecond),
		off(60, 0, 500*time.Millisecond),
	}

	replaced := record(t, phrase.New(), phrase.NewSession(), events).Notes()
	require.Len(t, replaced, 1)
	assert.Equal(t, uint8(20), replaced[0].VelocityOn)
	assert.Equal(t, 200*time.Millisecond, replaced[0].Start)

	ignored := record(t, phrase.New(), phrase.NewSession(), events,
		WithRetrigger(contracts.RetriggerIgnore)).Notes()
	require.Len(t, ignored, 1)
	assert.Equal(t, uint8(10), ignored[0].VelocityOn)
	assert.Equal(t, time.Duration(0), ignored[0].Start)
}

func TestChannelsAreIndependent(t *testing.T) {
	ch1 := contracts.NewMIDI(uint64(base.UnixNano()), 0x91, 60, 64)
	p := record(t, phrase.New(), phrase.NewSession(), []contracts.MIDI{
		on(60, 64, 0),
		ch1,
		off(60, 0, 100*time.Millisecond),
	})

	notes := p.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, uint8(0), notes[0].Channel)
}

func TestStaleEventsAreDropped(t *testing.T) {
	p := record(t, phrase.New(), phrase.NewSession(), []contracts.MIDI{
		on(60, 64, -time.Second),
		off(60, 0, -500*time.Millisecond),
	})
	assert.Equal(t, 0, p.Len())
}

func TestNoteHook(t *testing.T) {
	var got []phrase.Note
	record(t, phrase.New(), phrase.NewSession(), []contracts.MIDI{
		on(60, 64, 0),
		off(60, 0, 100*time.Millisecond),
	}, WithNoteHook(func(n phrase.Note) { got = append(got, n) }))
	require.Len(t, got, 1)
	assert.Equal(t, uint8(60), got[0].Pitch)
}

func TestRandomInterleavingsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		var events []contracts.MIDI
		var at time.Duration
		for i := 0; i < 200; i++ {
			at += time.Duration(rng.Intn(20)) * time.Millisecond
			pitch := uint8(58 + rng.Intn(6))
			if rng.Intn(2) == 0 {
				events = append(events, on(pitch, uint8(1+rng.Intn(126)), at))
			} else {
				events = append(events, off(pitch, 0, at))
			}
		}

		notes := record(t, phrase.New(), phrase.NewSession(), events).Notes()
		for i, n := range notes {
			require.NoError(t, n.Validate())
			if i > 0 {
				require.LessOrEqual(t, notes[i-1].Start, n.Start)
			}
		}
	}
}

func TestStopsOnContextCancel(t *testing.T) {
	in := make(chan contracts.MIDI)
	r := New(in, WithLogger(logger.NewNopLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Record(ctx, phrase.New(), phrase.NewSession()) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}
}
