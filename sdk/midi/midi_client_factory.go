package midi

import (
	"runtime"

	"github.com/leandrodaf/midiloop/internal/midi/mididarwin"
	"github.com/leandrodaf/midiloop/internal/midi/midigomidi"
	"github.com/leandrodaf/midiloop/internal/midi/midiwindows"
	"github.com/leandrodaf/midiloop/sdk/contracts"
)

// clientInitializers maps OS names to native MIDI client initializers.
var clientInitializers = map[string]func(*contracts.ClientOptions) (contracts.ClientMIDI, error){
	"darwin":  mididarwin.NewMIDIClient,  // macOS (Darwin) CoreMIDI client initializer.
	"windows": midiwindows.NewMIDIClient, // Windows WinMM client initializer.
}

// NewClient initializes a MIDI client for the current operating system.
// macOS and Windows use their native APIs; every other system uses the
// gomidi driver registered by the program (see drivers/rtmididrv).
//
// opts *contracts.ClientOptions: Configuration options for the MIDI client.
//
// Returns:
//   - contracts.ClientMIDI: An instance of the MIDI client.
//   - error: An error if initialization fails.
func NewClient(opts *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	if opts.UseDriver {
		return midigomidi.NewMIDIClient(opts)
	}
	if initializer, exists := clientInitializers[runtime.GOOS]; exists {
		return initializer(opts)
	}
	return midigomidi.NewMIDIClient(opts)
}
