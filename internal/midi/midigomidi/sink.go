package midigomidi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midiloop/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var ErrOutputClosed = errors.New("MIDI output closed")

// Sink writes events to a gomidi output port.
type Sink struct {
	logger contracts.Logger
	mu     sync.Mutex
	out    drivers.Out
	send   func(msg midi.Message) error
}

// Outputs lists the output ports of the driver.
func Outputs() ([]contracts.DeviceInfo, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI outputs: %w", err)
	}
	devices := make([]contracts.DeviceInfo, len(outs))
	for i, out := range outs {
		devices[i] = contracts.DeviceInfo{ID: i, Name: out.String(), EntityName: out.String()}
	}
	return devices, nil
}

// OpenSink opens output port deviceID.
func OpenSink(deviceID int, logger contracts.Logger) (*Sink, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI outputs: %w", err)
	}
	if deviceID < 0 || deviceID >= len(outs) {
		return nil, fmt.Errorf("%w: output %d", ErrInvalidMIDIDevice, deviceID)
	}
	out := outs[deviceID]
	if err := out.Open(); err != nil {
		return nil, fmt.Errorf("error opening %q: %w", out.String(), err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("error creating sender for %q: %w", out.String(), err)
	}
	logger.Info("MIDI output opened",
		logger.Field().Int("deviceID", deviceID),
		logger.Field().String("deviceName", out.String()))
	return &Sink{logger: logger, out: out, send: send}, nil
}

// Send writes event as a channel voice message.
func (s *Sink) Send(event contracts.MIDI) error {
	msg := Message(event)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.send == nil {
		return ErrOutputClosed
	}
	return s.send(msg)
}

// Close releases the port.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send = nil
	if s.out == nil {
		return nil
	}
	err := s.out.Close()
	s.out = nil
	return err
}

// Message converts an event to a gomidi message.
func Message(event contracts.MIDI) midi.Message {
	switch event.Command {
	case byte(contracts.NoteOn):
		return midi.NoteOn(event.Channel, event.Note, event.Velocity)
	case byte(contracts.NoteOff):
		return midi.NoteOffVelocity(event.Channel, event.Note, event.Velocity)
	}
	switch event.Command & 0xF0 {
	case 0xC0, 0xD0:
		return midi.Message{event.Status(), event.Note}
	}
	return midi.Message{event.Status(), event.Note, event.Velocity}
}
