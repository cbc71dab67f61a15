package midi

import (
	"fmt"

	"github.com/leandrodaf/midiloop/sdk/contracts"
)

// NewMIDIClient creates a new MIDI capture client with the specified options.
// It applies default options and initializes the client for the current OS.
func NewMIDIClient(opts ...contracts.Option) (contracts.ClientMIDI, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	return NewClient(&options)
}

// Input is a capture client already streaming one device.
type Input struct {
	Client contracts.ClientMIDI
	Events chan contracts.MIDI
}

// Close stops the capture.
func (in *Input) Close() error {
	return in.Client.Stop()
}

// OpenInput creates a client, selects deviceID and starts capturing into a
// channel holding up to buffer events.
//
// Returns:
//   - *Input: The client and the channel its events arrive on.
//   - error: An error if the client cannot be created or the device cannot be selected.
func OpenInput(deviceID, buffer int, opts ...contracts.Option) (*Input, error) {
	client, err := NewMIDIClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating MIDI client: %w", err)
	}
	if err := client.SelectDevice(deviceID); err != nil {
		_ = client.Stop()
		return nil, fmt.Errorf("error selecting input %d: %w", deviceID, err)
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	events := make(chan contracts.MIDI, buffer)
	client.StartCapture(events)
	return &Input{Client: client, Events: events}, nil
}

// DefaultBuffer is the capture buffer used when none is given.
const DefaultBuffer = 256
