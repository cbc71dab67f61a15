package contracts

import "context"

// CommandKind enumerates the operations accepted by a Looper.
type CommandKind int

const (
	CommandRecord  CommandKind = iota + 1 // Clear the active phrase and record into it.
	CommandOverdub                        // Play the active phrase while recording into it.
	CommandPlay                           // Play the active phrase.
	CommandStop                           // Stop recording and playback.
	CommandTempo                          // Change the playback tempo multiplier.
	CommandSave                           // Save the active phrase to a file.
	CommandLoad                           // Load a file into the active phrase.
	CommandSelect                         // Make another slot active.
	CommandClear                          // Remove every note from the active phrase.
	CommandExit                           // Stop and leave Run.
)

var commandNames = map[CommandKind]string{
	CommandRecord:  "record",
	CommandOverdub: "overdub",
	CommandPlay:    "play",
	CommandStop:    "stop",
	CommandTempo:   "tempo",
	CommandSave:    "save",
	CommandLoad:    "load",
	CommandSelect:  "select",
	CommandClear:   "clear",
	CommandExit:    "exit",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command is one request sent to a Looper. Only the fields used by Kind are read.
type Command struct {
	Kind  CommandKind
	Tempo float64 // CommandTempo: multiplier, must be > 0.
	Path  string  // CommandSave, CommandLoad.
	BPM   float64 // CommandSave: file tempo; zero uses the configured default.
	Index int     // CommandSelect.
}

// Mode is what a Looper is currently doing.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeRecording Mode = "recording"
	ModeOverdub   Mode = "overdub"
	ModePlaying   Mode = "playing"
)

// LooperStatus is a point-in-time view of a Looper.
type LooperStatus struct {
	Mode        Mode    `json:"mode"`
	ActiveSlot  int     `json:"active_slot"`
	Slots       int     `json:"slots"`
	Notes       int     `json:"notes"`
	Tempo       float64 `json:"tempo"`
	Passes      int64   `json:"passes"`
	SessionID   string  `json:"session_id,omitempty"`
	LastSaved   string  `json:"last_saved,omitempty"`
	LastFailure string  `json:"last_failure,omitempty"`
}

// Looper is the command surface of the sequencer.
type Looper interface {
	Run(ctx context.Context) error              // Processes commands until exit or ctx is done.
	Send(ctx context.Context, cmd Command) error // Submits a command and waits for its result.
	Status() LooperStatus                        // Reports the current state.
}
