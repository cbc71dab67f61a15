package midi

import (
	"github.com/leandrodaf/midiloop/internal/midi/midigomidi"
	"github.com/leandrodaf/midiloop/sdk/contracts"
)

// Output is a sink writing to a MIDI output port.
type Output interface {
	contracts.Sink
	Close() error
}

// ListOutputs lists the output ports of the registered gomidi driver.
func ListOutputs() ([]contracts.DeviceInfo, error) {
	return midigomidi.Outputs()
}

// NewOutput opens output port deviceID for playback.
func NewOutput(deviceID int, opts ...contracts.Option) (Output, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	return midigomidi.OpenSink(deviceID, options.Logger)
}
