// Package smfcodec converts phrases to and from Standard MIDI Files.
package smfcodec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/leandrodaf/midiloop/internal/logger"
	"github.com/leandrodaf/midiloop/internal/phrase"
	"github.com/leandrodaf/midiloop/internal/util"
	"github.com/leandrodaf/midiloop/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	// DefaultTicksPerBeat is the resolution of exported files.
	DefaultTicksPerBeat uint16 = 480
	// DefaultBPM applies until a file sets a tempo, and replaces invalid tempos.
	DefaultBPM = 120.0

	// a tempo event stores microseconds per beat in 24 bits
	maxMicrosPerBeat = 0xFFFFFF
	microsPerMinute  = 60e6
)

// MinBPM and MaxBPM bound the tempos a file can hold.
const (
	MinBPM = microsPerMinute / maxMicrosPerBeat
	MaxBPM = microsPerMinute
)

var (
	ErrInvalidTempo          = errors.New("tempo out of range for a MIDI file")
	ErrMalformedFile         = errors.New("malformed MIDI file")
	ErrUnsupportedTimeFormat = errors.New("unsupported MIDI time format")
)

// Codec reads and writes single-track SMF files.
type Codec struct {
	ticksPerBeat uint16
	logger       contracts.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithTicksPerBeat sets the export resolution.
func WithTicksPerBeat(ticks uint16) Option {
	return func(c *Codec) { c.ticksPerBeat = ticks }
}

// WithLogger sets the codec's logger.
func WithLogger(l contracts.Logger) Option {
	return func(c *Codec) { c.logger = l }
}

// New creates a codec.
func New(opts ...Option) *Codec {
	c := &Codec{ticksPerBeat: DefaultTicksPerBeat}
	for _, opt := range opts {
		opt(c)
	}
	if c.ticksPerBeat == 0 {
		c.ticksPerBeat = DefaultTicksPerBeat
	}
	if c.logger == nil {
		c.logger = logger.NewZapLogger()
	}
	return c
}

// TicksPerBeat is the export resolution.
func (c *Codec) TicksPerBeat() uint16 {
	return c.ticksPerBeat
}

// Resolution is the duration of one tick at bpm, the precision of a round trip.
func (c *Codec) Resolution(bpm float64) time.Duration {
	return time.Duration(float64(time.Minute) / (bpm * float64(c.ticksPerBeat)))
}

type timed struct {
	tick uint32
	rank uint8
	msg  midi.Message
}

// Export encodes the phrase as a single track: a tempo event at bpm, then the
// notes as delta-timed Note On / Note Off pairs.
func (c *Codec) Export(p *phrase.Phrase, bpm float64) ([]byte, error) {
	if !(bpm >= MinBPM && bpm <= MaxBPM) {
		return nil, fmt.Errorf("%w: %v BPM, want %.4f to %.0f", ErrInvalidTempo, bpm, MinBPM, MaxBPM)
	}

	notes := p.Notes()
	events := make([]timed, 0, 2*len(notes))
	for _, n := range notes {
		on := c.ticks(n.Start, bpm)
		off := c.ticks(n.End, bpm)
		// same ordering as the player so a zero-length note keeps its on first
		offRank := uint8(0)
		if off <= on {
			off = on
			offRank = 2
		}
		ch := n.Channel & 0x0F
		events = append(events,
			timed{tick: on, rank: 1, msg: midi.NoteOn(ch, n.Pitch&0x7F, util.Clamp(n.VelocityOn, 1, 127))},
			timed{tick: off, rank: offRank, msg: midi.NoteOffVelocity(ch, n.Pitch&0x7F, n.VelocityOff&0x7F)},
		)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].rank < events[j].rank
	})

	var track smf.Track
	track.Add(0, smf.MetaTempo(bpm))
	var prev uint32
	for _, ev := range events {
		track.Add(ev.tick-prev, ev.msg)
		prev = ev.tick
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(c.ticksPerBeat)
	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("error adding track: %w", err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("error writing MIDI data: %w", err)
	}

	c.logger.Debug("Phrase exported",
		c.logger.Field().Int("notes", len(notes)),
		c.logger.Field().Float64("bpm", bpm),
		c.logger.Field().Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// ticks converts a phrase offset to the nearest tick.
func (c *Codec) ticks(d time.Duration, bpm float64) uint32 {
	beats := util.AtLeast(d, 0).Minutes() * bpm
	return uint32(math.Round(beats * float64(c.ticksPerBeat)))
}

type absEvent struct {
	tick uint64
	msg  smf.Message
}

type voice struct {
	channel uint8
	pitch   uint8
}

type openNote struct {
	velocity uint8
	at       time.Duration
}

// Import decodes SMF data into notes sorted by start. Every track is read;
// events are merged by absolute tick so a separate tempo track applies to the
// notes. Offs pair with the oldest open on of the same channel and pitch;
// offs without an on and ons never closed are dropped.
func (c *Codec) Import(data []byte) (notes []phrase.Note, err error) {
	// the smf reader may panic on broken input
	defer func() {
		if r := recover(); r != nil {
			notes = nil
			err = fmt.Errorf("%w: %v", ErrMalformedFile, r)
		}
	}()

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTimeFormat, s.TimeFormat)
	}
	if mt.Resolution() == 0 {
		return nil, fmt.Errorf("%w: zero ticks per beat", ErrMalformedFile)
	}
	tpb := float64(mt.Resolution())

	bpm := DefaultBPM
	var seconds float64
	var prevTick uint64
	open := make(map[voice][]openNote)
	dropped := 0

	for _, ev := range merge(s.Tracks) {
		seconds += float64(ev.tick-prevTick) * 60 / (bpm * tpb)
		prevTick = ev.tick
		at := time.Duration(math.Round(seconds * float64(time.Second)))

		if isTempo(ev.msg) {
			bpm = c.tempo(ev.msg)
			continue
		}

		var ch, key, vel uint8
		m := midi.Message(ev.msg)
		switch {
		case m.GetNoteStart(&ch, &key, &vel):
			v := voice{ch, key}
			open[v] = append(open[v], openNote{velocity: vel, at: at})
		case m.GetNoteOff(&ch, &key, &vel), m.GetNoteEnd(&ch, &key):
			v := voice{ch, key}
			queue := open[v]
			if len(queue) == 0 {
				dropped++
				continue
			}
			first := queue[0]
			open[v] = queue[1:]
			notes = append(notes, phrase.Note{
				Channel:     ch,
				Pitch:       key,
				VelocityOn:  first.velocity,
				VelocityOff: vel,
				Start:       first.at,
				End:         at,
			})
		}
	}

	for _, queue := range open {
		dropped += len(queue)
	}
	if dropped > 0 {
		c.logger.Debug("Unpaired note events dropped", c.logger.Field().Int("count", dropped))
	}

	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Start < notes[j].Start })
	return notes, nil
}

// merge flattens tracks into one stream ordered by absolute tick; events at
// the same tick keep track order, then file order.
func merge(tracks []smf.Track) []absEvent {
	var out []absEvent
	for _, track := range tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			out = append(out, absEvent{tick: abs, msg: ev.Message})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].tick < out[j].tick })
	return out
}

func isTempo(msg smf.Message) bool {
	return len(msg) >= 2 && msg[0] == 0xFF && msg[1] == 0x51
}

// tempo reads a tempo event, falling back to DefaultBPM when it is unusable.
func (c *Codec) tempo(msg smf.Message) float64 {
	var bpm float64
	if !msg.GetMetaTempo(&bpm) || !(bpm > 0) || math.IsInf(bpm, 0) {
		c.logger.Warn("Invalid tempo event; using default", c.logger.Field().Float64("bpm", DefaultBPM))
		return DefaultBPM
	}
	return bpm
}

// Save exports the phrase to path. The file is replaced atomically so a
// failed save leaves the previous file intact.
func (c *Codec) Save(path string, p *phrase.Phrase, bpm float64) error {
	data, err := c.Export(p, bpm)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".midiloop-*.mid")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error saving %s: %w", path, err)
	}
	c.logger.Info("Phrase saved",
		c.logger.Field().String("path", path),
		c.logger.Field().Int("notes", p.Len()))
	return nil
}

// Load reads notes from path.
func (c *Codec) Load(path string) ([]phrase.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading midi file: %w", err)
	}
	notes, err := c.Import(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	c.logger.Info("Phrase loaded",
		c.logger.Field().String("path", path),
		c.logger.Field().Int("notes", len(notes)))
	return notes, nil
}
