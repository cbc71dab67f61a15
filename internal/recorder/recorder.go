// Package recorder turns a live stream of Note On / Note Off events into
// notes appended to a phrase.
package recorder

import (
	"context"
	"time"

	"github.com/leandrodaf/midiloop/internal/logger"
	"github.com/leandrodaf/midiloop/internal/phrase"
	"github.com/leandrodaf/midiloop/internal/util"
	"github.com/leandrodaf/midiloop/sdk/contracts"
)

// key identifies a held note.
type key struct {
	channel uint8
	pitch   uint8
}

// Recorder pairs on/off events from its input into notes. A Recorder is not
// safe for concurrent Record calls; one capture task owns it.
type Recorder struct {
	input   <-chan contracts.MIDI
	logger  contracts.Logger
	now     func() time.Time
	policy  contracts.RetriggerPolicy
	onNote  func(phrase.Note)
	pending map[key]held
}

// held is a note waiting for its Note Off.
type held struct {
	note phrase.Note
	at   time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the recorder's logger.
func WithLogger(l contracts.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithClock replaces time.Now, used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithRetrigger sets what happens to a second Note On for a held note.
func WithRetrigger(policy contracts.RetriggerPolicy) Option {
	return func(r *Recorder) { r.policy = policy }
}

// WithNoteHook registers fn to be called after each note is added.
func WithNoteHook(fn func(phrase.Note)) Option {
	return func(r *Recorder) { r.onNote = fn }
}

// New creates a recorder reading from input.
func New(input <-chan contracts.MIDI, opts ...Option) *Recorder {
	r := &Recorder{
		input:  input,
		now:    time.Now,
		policy: contracts.RetriggerReplace,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.NewZapLogger()
	}
	return r
}

// Record appends notes to p until ctx is done or the input closes. Offsets
// are measured from the session epoch; the epoch is set by the first event
// when nobody set it before. Events stamped before Record was called were
// captured while idle and are dropped. Notes still held when recording stops
// are discarded.
func (r *Recorder) Record(ctx context.Context, p *phrase.Phrase, s *phrase.Session) error {
	r.pending = make(map[key]held)
	started := r.now()
	r.logger.Info("Recording started",
		r.logger.Field().String("session", s.ID),
		r.logger.Field().Int("notes", p.Len()),
		r.logger.Field().String("retrigger", r.policy.String()))

	defer func() {
		if len(r.pending) > 0 {
			r.logger.Debug("Discarding held notes", r.logger.Field().Int("count", len(r.pending)))
		}
		r.pending = nil
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Recording stopped", r.logger.Field().Int("notes", p.Len()))
			return nil
		case ev, ok := <-r.input:
			if !ok {
				r.logger.Warn("Input closed; recording stopped")
				return nil
			}
			at := r.eventTime(ev)
			if at.Before(started) {
				r.logger.Debug("Dropping stale event", r.logger.Field().Uint8("note", ev.Note))
				continue
			}
			r.handle(p, s, ev, at)
		}
	}
}

func (r *Recorder) eventTime(ev contracts.MIDI) time.Time {
	if ev.Timestamp == 0 {
		return r.now()
	}
	return time.Unix(0, int64(ev.Timestamp))
}

func (r *Recorder) handle(p *phrase.Phrase, s *phrase.Session, ev contracts.MIDI, at time.Time) {
	k := key{channel: ev.Channel, pitch: ev.Note}
	switch {
	case ev.IsNoteOn():
		s.EnsureEpoch(at)
		if prev, ok := r.pending[k]; ok {
			if r.policy == contracts.RetriggerIgnore {
				r.logger.Debug("Retrigger ignored", r.logger.Field().Uint8("pitch", k.pitch))
				return
			}
			r.logger.Debug("Retrigger replaced held note",
				r.logger.Field().Uint8("pitch", k.pitch),
				r.logger.Field().Duration("held_since", prev.note.Start))
		}
		r.pending[k] = held{
			note: phrase.Note{
				Channel:    k.channel,
				Pitch:      k.pitch,
				VelocityOn: ev.Velocity,
				Start:      s.Elapsed(at),
			},
			at: at,
		}

	case ev.IsNoteOff():
		h, ok := r.pending[k]
		if !ok {
			r.logger.Debug("Note off without note on", r.logger.Field().Uint8("pitch", k.pitch))
			return
		}
		delete(r.pending, k)
		// the duration comes from the wall clock: during overdub the player
		// may move the epoch while the note is held
		n := h.note
		n.VelocityOff = ev.Velocity
		n.End = n.Start + util.AtLeast(at.Sub(h.at), 0)
		p.Add(n)
		r.logger.Debug("Note recorded",
			r.logger.Field().Uint8("pitch", n.Pitch),
			r.logger.Field().Duration("start", n.Start),
			r.logger.Field().Duration("end", n.End))
		if r.onNote != nil {
			r.onNote(n)
		}
	}
}
