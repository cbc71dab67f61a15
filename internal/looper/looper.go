// Package looper ties the recorder, player and file codec to a song and
// drives them from a command channel.
package looper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midiloop/internal/phrase"
	"github.com/leandrodaf/midiloop/internal/player"
	"github.com/leandrodaf/midiloop/internal/recorder"
	"github.com/leandrodaf/midiloop/internal/smfcodec"
	"github.com/leandrodaf/midiloop/sdk/contracts"
	"golang.org/x/sync/errgroup"
)

var (
	ErrLooperStopped  = errors.New("looper is not running")
	ErrAlreadyRunning = errors.New("looper is already running")
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingPath    = errors.New("no file path given")
)

// Looper owns a song and runs one mode at a time on its active phrase.
type Looper struct {
	song      *phrase.Song
	recorder  *recorder.Recorder
	player    *player.Player
	codec     *smfcodec.Codec
	logger    contracts.Logger
	exportBPM float64
	autosave  *autosaver

	commands chan request
	done     chan struct{}
	running  atomic.Bool

	mu          sync.Mutex
	mode        contracts.Mode
	session     *phrase.Session
	cancel      context.CancelFunc
	taskDone    chan struct{}
	lastSaved   string
	lastFailure string
}

// Option adjusts the components built by New.
type Option func(*config)

type config struct {
	recorder []recorder.Option
	player   []player.Option
}

// WithRecorderOptions passes extra options to the recorder.
func WithRecorderOptions(opts ...recorder.Option) Option {
	return func(c *config) { c.recorder = append(c.recorder, opts...) }
}

// WithPlayerOptions passes extra options to the player.
func WithPlayerOptions(opts ...player.Option) Option {
	return func(c *config) { c.player = append(c.player, opts...) }
}

// New creates a looper recording from input and playing to sink. options must
// already carry defaults.
func New(song *phrase.Song, input <-chan contracts.MIDI, sink contracts.Sink, options *contracts.LooperOptions, opts ...Option) (*Looper, error) {
	if !(options.ExportBPM >= smfcodec.MinBPM && options.ExportBPM <= smfcodec.MaxBPM) {
		return nil, fmt.Errorf("%w: export tempo %v BPM", smfcodec.ErrInvalidTempo, options.ExportBPM)
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Looper{
		song:      song,
		logger:    options.Logger,
		exportBPM: options.ExportBPM,
		commands:  make(chan request),
		done:      make(chan struct{}),
		mode:      contracts.ModeIdle,
	}

	recorderOpts := []recorder.Option{
		recorder.WithLogger(options.Logger),
		recorder.WithRetrigger(options.Retrigger),
	}
	if options.AutosavePath != "" {
		l.autosave = newAutosaver(options.AutosavePath, options.AutosaveDelay, l.saveQuietly)
		recorderOpts = append(recorderOpts, recorder.WithNoteHook(func(phrase.Note) { l.autosave.trigger() }))
	}
	l.recorder = recorder.New(input, append(recorderOpts, cfg.recorder...)...)

	playerOpts := []player.Option{
		player.WithLogger(options.Logger),
		player.WithLoopLength(options.LoopLength),
	}
	l.player = player.New(sink, append(playerOpts, cfg.player...)...)
	if err := l.player.SetTempo(options.Tempo); err != nil {
		return nil, err
	}

	l.codec = smfcodec.New(
		smfcodec.WithLogger(options.Logger),
		smfcodec.WithTicksPerBeat(options.TicksPerBeat),
	)
	return l, nil
}

// Song returns the song the looper works on.
func (l *Looper) Song() *phrase.Song {
	return l.song
}

func (l *Looper) newSession() *phrase.Session {
	s := phrase.NewSession()
	l.mu.Lock()
	l.session = s
	l.mu.Unlock()
	return s
}

// Overdub plays the active phrase and records into it at the same time, until
// ctx is done or the input closes.
func (l *Looper) Overdub(ctx context.Context) error {
	ph := l.song.Active()
	s := l.newSession()

	g, gctx := errgroup.WithContext(ctx)
	playCtx, stopPlayer := context.WithCancel(gctx)
	defer stopPlayer()

	g.Go(func() error {
		return l.player.Play(playCtx, ph, s)
	})
	g.Go(func() error {
		defer stopPlayer()
		return l.recorder.Record(gctx, ph, s)
	})
	return g.Wait()
}

// PlayOnly loops the active phrase until ctx is done.
func (l *Looper) PlayOnly(ctx context.Context) error {
	return l.player.Play(ctx, l.song.Active(), l.newSession())
}

// Record records into the active phrase without playback.
func (l *Looper) Record(ctx context.Context) error {
	return l.recorder.Record(ctx, l.song.Active(), l.newSession())
}

// SetTempo changes the playback multiplier from the next pass on.
func (l *Looper) SetTempo(multiplier float64) error {
	if err := l.player.SetTempo(multiplier); err != nil {
		return err
	}
	l.logger.Info("Tempo changed", l.logger.Field().Float64("multiplier", multiplier))
	return nil
}

// Save writes the active phrase to path; bpm <= 0 uses the configured tempo.
func (l *Looper) Save(path string, bpm float64) error {
	if path == "" {
		return ErrMissingPath
	}
	if bpm <= 0 {
		bpm = l.exportBPM
	}
	err := l.codec.Save(path, l.song.Active(), bpm)
	l.noteResult(path, err)
	return err
}

// saveQuietly is the autosave callback.
func (l *Looper) saveQuietly(path string) {
	if err := l.Save(path, 0); err != nil {
		l.logger.Error("Autosave failed",
			l.logger.Field().String("path", path),
			l.logger.Field().Error("error", err))
	}
}

func (l *Looper) noteResult(path string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.lastFailure = err.Error()
		return
	}
	l.lastSaved = path
	l.lastFailure = ""
}

// Load replaces the active phrase with the notes in path. On error the phrase
// is left as it was.
func (l *Looper) Load(path string) error {
	if path == "" {
		return ErrMissingPath
	}
	notes, err := l.codec.Load(path)
	if err != nil {
		l.mu.Lock()
		l.lastFailure = err.Error()
		l.mu.Unlock()
		return err
	}
	l.song.Active().Replace(notes)
	return nil
}

// Select makes slot i the active phrase.
func (l *Looper) Select(i int) error {
	if err := l.song.Select(i); err != nil {
		return err
	}
	l.logger.Info("Slot selected", l.logger.Field().Int("slot", i))
	return nil
}

// Clear removes every note from the active phrase.
func (l *Looper) Clear() {
	l.song.Active().Clear()
	l.logger.Info("Phrase cleared", l.logger.Field().Int("slot", l.song.ActiveIndex()))
}

// Status reports the current mode and the active phrase.
func (l *Looper) Status() contracts.LooperStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	status := contracts.LooperStatus{
		Mode:        l.mode,
		ActiveSlot:  l.song.ActiveIndex(),
		Slots:       l.song.Len(),
		Notes:       l.song.Active().Len(),
		Tempo:       l.player.Tempo(),
		Passes:      l.player.Passes(),
		LastSaved:   l.lastSaved,
		LastFailure: l.lastFailure,
	}
	if l.session != nil {
		status.SessionID = l.session.ID
	}
	return status
}

func (l *Looper) String() string {
	s := l.Status()
	return fmt.Sprintf("%s slot=%d notes=%d tempo=%.2f", s.Mode, s.ActiveSlot, s.Notes, s.Tempo)
}
