// Package player replays a phrase in an endless loop against a live clock.
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midiloop/internal/logger"
	"github.com/leandrodaf/midiloop/internal/phrase"
	"github.com/leandrodaf/midiloop/internal/util"
	"github.com/leandrodaf/midiloop/sdk/contracts"
)

// DefaultIdle is how long the player waits before looking at an empty phrase again.
const DefaultIdle = 10 * time.Millisecond

var ErrInvalidTempo = errors.New("tempo multiplier must be a positive number")

// Player loops over a phrase and sends its notes to a sink.
//
// The schedule is rebuilt only at a pass boundary, when the phrase is dirty or
// the tempo multiplier changed. A running pass always finishes on the schedule
// it started with.
type Player struct {
	sink       contracts.Sink
	logger     contracts.Logger
	clock      Clock
	idle       time.Duration
	loopLength time.Duration

	tempo  atomic.Uint64 // math.Float64bits of the multiplier
	passes atomic.Int64
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the player's logger.
func WithLogger(l contracts.Logger) Option {
	return func(p *Player) { p.logger = l }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *Player) { p.clock = c }
}

// WithIdle sets the wait between checks of an empty phrase.
func WithIdle(d time.Duration) Option {
	return func(p *Player) { p.idle = d }
}

// WithLoopLength makes every pass last at least d (scaled by the tempo).
func WithLoopLength(d time.Duration) Option {
	return func(p *Player) { p.loopLength = d }
}

// New creates a player writing to sink at tempo 1.
func New(sink contracts.Sink, opts ...Option) *Player {
	p := &Player{
		sink:  sink,
		clock: realClock{},
		idle:  DefaultIdle,
	}
	p.tempo.Store(math.Float64bits(1))
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.NewZapLogger()
	}
	if p.idle <= 0 {
		p.idle = DefaultIdle
	}
	return p
}

// SetTempo requests a new multiplier; 2 plays twice as fast. It takes effect
// at the next pass.
func (p *Player) SetTempo(multiplier float64) error {
	if !(multiplier > 0) || math.IsInf(multiplier, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTempo, multiplier)
	}
	p.tempo.Store(math.Float64bits(multiplier))
	return nil
}

// Tempo returns the requested multiplier.
func (p *Player) Tempo() float64 {
	return math.Float64frombits(p.tempo.Load())
}

// Passes is the number of completed passes since the player was created.
func (p *Player) Passes() int64 {
	return p.passes.Load()
}

// Play loops over ph until ctx is done. Every pass restarts the session
// epoch so a recorder sharing the session lines up with the loop. Cancelling
// ctx interrupts the current wait; notes left sounding are released.
func (p *Player) Play(ctx context.Context, ph *phrase.Phrase, s *phrase.Session) error {
	p.logger.Info("Playback started",
		p.logger.Field().String("session", s.ID),
		p.logger.Field().Float64("tempo", p.Tempo()))
	defer p.logger.Info("Playback stopped", p.logger.Field().Int64("passes", p.Passes()))

	var sched Schedule
	built := false
	for ctx.Err() == nil {
		tempo := p.Tempo()
		dirty := ph.TakeDirty()
		if !built || dirty || sched.Multiplier != tempo {
			sched = Build(ph.Notes(), tempo)
			built = true
			p.logger.Debug("Schedule rebuilt",
				p.logger.Field().Int("events", len(sched.Events)),
				p.logger.Field().Float64("tempo", tempo))
		}

		if len(sched.Events) == 0 {
			if err := p.clock.Sleep(ctx, p.idle); err != nil {
				return nil
			}
			continue
		}

		if err := p.pass(ctx, ph, s, sched); err != nil {
			return nil
		}
		p.passes.Add(1)
	}
	return nil
}

type voice struct {
	channel uint8
	pitch   uint8
}

// pass plays sched once.
func (p *Player) pass(ctx context.Context, ph *phrase.Phrase, s *phrase.Session, sched Schedule) error {
	start := p.clock.Now()
	s.Restart(start)
	sounding := make(map[voice]int)
	deferred := false

	for _, ev := range sched.Events {
		wait := ev.At - p.clock.Now().Sub(start)
		if err := p.clock.Sleep(ctx, util.AtLeast(wait, 0)); err != nil {
			p.release(sounding)
			return err
		}
		p.dispatch(ev.Message())

		v := voice{ev.Note.Channel, ev.Note.Pitch}
		if ev.Kind == KindOn {
			sounding[v]++
		} else if sounding[v] > 0 {
			sounding[v]--
		}

		if !deferred && (ph.Dirty() || p.Tempo() != sched.Multiplier) {
			deferred = true
			p.logger.Debug("Change deferred to next pass")
		}
	}

	end := util.AtLeast(scale(p.loopLength, sched.Multiplier), sched.Length())
	if end <= 0 {
		// a phrase of zero-length notes at offset 0
		end = p.idle
	}
	return p.clock.Sleep(ctx, util.AtLeast(end-p.clock.Now().Sub(start), 0))
}

func (p *Player) dispatch(msg contracts.MIDI) {
	if err := p.sink.Send(msg); err != nil {
		p.logger.Warn("Send failed",
			p.logger.Field().Uint8("note", msg.Note),
			p.logger.Field().Error("error", err))
	}
}

// release sends a Note Off for every voice still sounding.
func (p *Player) release(sounding map[voice]int) {
	for v, n := range sounding {
		for ; n > 0; n-- {
			p.dispatch(contracts.MIDI{Command: byte(contracts.NoteOff), Channel: v.channel, Note: v.pitch})
		}
	}
}
