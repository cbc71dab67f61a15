package contracts

// MIDI represents a MIDI channel event with a timestamp, command, channel, note, and velocity.
type MIDI struct {
	Timestamp uint64 // Timestamp is the capture time in nanoseconds since the Unix epoch; zero means unknown.
	Command   byte   // Command is the status nibble (e.g. 0x90 Note On, 0x80 Note Off), channel stripped.
	Channel   byte   // Channel is the MIDI channel (0-15).
	Note      byte   // Note represents the MIDI note number (0-127).
	Velocity  byte   // Velocity indicates the strength of the note being played (0-127).
}

// NewMIDI splits a raw status byte into command and channel.
func NewMIDI(timestamp uint64, status, note, velocity byte) MIDI {
	return MIDI{
		Timestamp: timestamp,
		Command:   status & 0xF0,
		Channel:   status & 0x0F,
		Note:      note & 0x7F,
		Velocity:  velocity & 0x7F,
	}
}

// IsNoteOn reports whether the event starts a note. A Note On with zero velocity is a Note Off.
func (m MIDI) IsNoteOn() bool {
	return m.Command == byte(NoteOn) && m.Velocity > 0
}

// IsNoteOff reports whether the event ends a note.
func (m MIDI) IsNoteOff() bool {
	return m.Command == byte(NoteOff) || (m.Command == byte(NoteOn) && m.Velocity == 0)
}

// Status rebuilds the raw status byte.
func (m MIDI) Status() byte {
	return m.Command&0xF0 | m.Channel&0x0F
}

// ClientMIDI defines an interface for MIDI client operations.
type ClientMIDI interface {
	Stop() error                         // Stops the MIDI client and releases resources.
	ListDevices() ([]DeviceInfo, error)  // Lists all available MIDI devices.
	SelectDevice(deviceID int) error     // Selects a MIDI device by its ID for communication.
	StartCapture(eventChannel chan MIDI) // Starts capturing MIDI events and sends them to the specified channel.
}

// Sink receives events dispatched by the player. Delivery is fire-and-forget.
type Sink interface {
	Send(event MIDI) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event MIDI) error

// Send calls f(event).
func (f SinkFunc) Send(event MIDI) error {
	return f(event)
}
