package contracts

import "time"

// MIDICommand represents the types of MIDI commands for event filtering.
type MIDICommand byte

const (
	// NoteOn is the MIDI command for a Note On event (0x90).
	NoteOn MIDICommand = 0x90
	// NoteOff is the MIDI command for a Note Off event (0x80).
	NoteOff MIDICommand = 0x80
)

// MIDIEventFilter allows users to specify which MIDI commands to capture.
type MIDIEventFilter struct {
	Commands []MIDICommand // List of MIDI commands to filter.
}

// Allows reports whether command passes the filter. A nil filter allows everything.
func (f *MIDIEventFilter) Allows(command byte) bool {
	if f == nil {
		return true
	}
	for _, allowed := range f.Commands {
		if command&0xF0 == byte(allowed) {
			return true
		}
	}
	return false
}

// CoreMIDIConfig holds configuration for CoreMIDI.
type CoreMIDIConfig struct {
	ClientName string // Name of the MIDI client.
}

// ClientOptions defines the configuration options for the MIDI client.
type ClientOptions struct {
	Logger          Logger           // Logger for logging events and errors.
	LogLevel        LogLevel         // Level of logging to use.
	LogFilePath     string           // File path for logging if file logging is enabled.
	MIDIEventFilter *MIDIEventFilter // Optional filter for MIDI events to capture.
	CoreMIDIConfig  *CoreMIDIConfig  // Configuration specific to CoreMIDI.
	UseDriver       bool             // Capture through the registered gomidi driver even where a native client exists.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the MIDI client.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the MIDI client.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile sends the client's log output to a file.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithMIDIEventFilter sets the MIDI event filter for the MIDI client.
func WithMIDIEventFilter(filter MIDIEventFilter) Option {
	return func(opts *ClientOptions) {
		opts.MIDIEventFilter = &filter
	}
}

// WithCoreMIDIConfig sets the CoreMIDI configuration for the MIDI client.
func WithCoreMIDIConfig(config CoreMIDIConfig) Option {
	return func(opts *ClientOptions) {
		opts.CoreMIDIConfig = &config
	}
}

// WithDriver makes the client capture through the registered gomidi driver.
func WithDriver() Option {
	return func(opts *ClientOptions) {
		opts.UseDriver = true
	}
}

// RetriggerPolicy decides what happens when a second Note On arrives for a
// note that is still held.
type RetriggerPolicy int

const (
	// RetriggerReplace discards the held note and starts timing the new one.
	RetriggerReplace RetriggerPolicy = iota
	// RetriggerIgnore keeps the held note and drops the second Note On.
	RetriggerIgnore
)

// String returns the policy name.
func (p RetriggerPolicy) String() string {
	switch p {
	case RetriggerReplace:
		return "replace"
	case RetriggerIgnore:
		return "ignore"
	}
	return "unknown"
}

// LooperOptions defines the configuration of a looper.
type LooperOptions struct {
	Logger        Logger          // Logger shared by the looper components.
	Slots         int             // Number of phrase slots in the song.
	ExportBPM     float64         // Tempo written to saved files.
	TicksPerBeat  uint16          // Resolution of saved files.
	Retrigger     RetriggerPolicy // Recorder behaviour for a repeated Note On.
	LoopLength    time.Duration   // Minimum length of one playback pass; zero follows the phrase.
	Tempo         float64         // Initial playback tempo multiplier.
	AutosavePath  string          // When set, recorded notes are saved here.
	AutosaveDelay time.Duration   // Quiet period before an autosave is written.
}

// LooperOption is a function that modifies LooperOptions.
type LooperOption func(*LooperOptions)

// WithLooperLogger sets the logger for the looper.
func WithLooperLogger(l Logger) LooperOption {
	return func(opts *LooperOptions) {
		opts.Logger = l
	}
}

// WithSlots sets the number of phrase slots.
func WithSlots(n int) LooperOption {
	return func(opts *LooperOptions) {
		opts.Slots = n
	}
}

// WithExportBPM sets the tempo used when saving phrases.
func WithExportBPM(bpm float64) LooperOption {
	return func(opts *LooperOptions) {
		opts.ExportBPM = bpm
	}
}

// WithTicksPerBeat sets the resolution used when saving phrases.
func WithTicksPerBeat(ticks uint16) LooperOption {
	return func(opts *LooperOptions) {
		opts.TicksPerBeat = ticks
	}
}

// WithRetrigger sets the recorder's retrigger policy.
func WithRetrigger(policy RetriggerPolicy) LooperOption {
	return func(opts *LooperOptions) {
		opts.Retrigger = policy
	}
}

// WithLoopLength sets a minimum pass length for playback.
func WithLoopLength(d time.Duration) LooperOption {
	return func(opts *LooperOptions) {
		opts.LoopLength = d
	}
}

// WithTempo sets the initial playback tempo multiplier.
func WithTempo(multiplier float64) LooperOption {
	return func(opts *LooperOptions) {
		opts.Tempo = multiplier
	}
}

// WithAutosave saves the active phrase to path once recording has been quiet for delay.
func WithAutosave(path string, delay time.Duration) LooperOption {
	return func(opts *LooperOptions) {
		opts.AutosavePath = path
		opts.AutosaveDelay = delay
	}
}
