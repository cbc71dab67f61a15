package player

import (
	"sort"
	"time"

	"github.com/leandrodaf/midiloop/internal/phrase"
	"github.com/leandrodaf/midiloop/sdk/contracts"
)

// Kind tells a Note On event from a Note Off event.
type Kind uint8

const (
	KindOff Kind = iota
	KindOn
)

// Event is one scheduled dispatch, At is the scaled offset into the pass.
type Event struct {
	At   time.Duration
	Kind Kind
	Note phrase.Note
	rank uint8
}

// Message renders the event as a MIDI message.
func (e Event) Message() contracts.MIDI {
	if e.Kind == KindOn {
		return contracts.MIDI{Command: byte(contracts.NoteOn), Channel: e.Note.Channel, Note: e.Note.Pitch, Velocity: e.Note.VelocityOn}
	}
	return contracts.MIDI{Command: byte(contracts.NoteOff), Channel: e.Note.Channel, Note: e.Note.Pitch, Velocity: e.Note.VelocityOff}
}

// Schedule is an immutable, time-ordered expansion of a phrase at one tempo.
type Schedule struct {
	Events     []Event
	Multiplier float64
}

// Length is the offset of the last event.
func (s Schedule) Length() time.Duration {
	if len(s.Events) == 0 {
		return 0
	}
	return s.Events[len(s.Events)-1].At
}

// Build expands notes into on/off events with offsets divided by multiplier.
// Events at the same offset are ordered: releases of sounding notes, then
// starts, then releases of zero-length notes, so a note ending where the next
// one begins is released first and no note ends before it starts.
func Build(notes []phrase.Note, multiplier float64) Schedule {
	events := make([]Event, 0, 2*len(notes))
	for _, n := range notes {
		start := scale(n.Start, multiplier)
		end := scale(n.End, multiplier)
		offRank := uint8(0)
		if end <= start {
			end = start
			offRank = 2
		}
		events = append(events,
			Event{At: start, Kind: KindOn, Note: n, rank: 1},
			Event{At: end, Kind: KindOff, Note: n, rank: offRank},
		)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].At != events[j].At {
			return events[i].At < events[j].At
		}
		return events[i].rank < events[j].rank
	})
	return Schedule{Events: events, Multiplier: multiplier}
}

func scale(d time.Duration, multiplier float64) time.Duration {
	return time.Duration(float64(d) / multiplier)
}
