// Package midigomidi captures and sends MIDI through the gomidi driver
// registry. A driver (e.g. rtmididrv) must be imported by the program.
package midigomidi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midiloop/internal/midi/capture"
	"github.com/leandrodaf/midiloop/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var (
	ErrNoMIDIDevices     = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice = errors.New("invalid MIDI device")
	ErrNoDeviceSelected  = errors.New("no MIDI device selected")
)

// ClientMid captures events from one gomidi input port.
type ClientMid struct {
	logger    contracts.Logger
	forwarder *capture.Forwarder

	mu     sync.Mutex
	in     drivers.In
	stopFn func()
}

// NewMIDIClient creates a capture client on the registered gomidi driver.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	options.Logger.Info("MIDI client created on gomidi driver")
	return &ClientMid{
		logger:    options.Logger,
		forwarder: capture.NewForwarder(options.Logger, options.MIDIEventFilter),
	}, nil
}

// ListDevices lists the input ports of the driver.
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	if len(ins) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}
	devices := make([]contracts.DeviceInfo, len(ins))
	for i, in := range ins {
		devices[i] = contracts.DeviceInfo{
			ID:         i,
			Name:       in.String(),
			EntityName: in.String(),
		}
	}
	return devices, nil
}

// SelectDevice opens input port deviceID, closing the previous one.
func (m *ClientMid) SelectDevice(deviceID int) error {
	ins, err := drivers.Ins()
	if err != nil {
		return fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	if deviceID < 0 || deviceID >= len(ins) {
		m.logger.Error(ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("deviceID", deviceID))
		return fmt.Errorf("%w: %d", ErrInvalidMIDIDevice, deviceID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()

	in := ins[deviceID]
	if err := in.Open(); err != nil {
		return fmt.Errorf("error opening %q: %w", in.String(), err)
	}
	m.in = in
	m.logger.Info("MIDI device selected",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", in.String()))
	return nil
}

// StartCapture forwards events from the selected port to eventChannel.
func (m *ClientMid) StartCapture(eventChannel chan contracts.MIDI) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if eventChannel == nil {
		m.logger.Error("StartCapture called with nil eventChannel")
		return
	}
	if m.in == nil {
		m.logger.Error(ErrNoDeviceSelected.Error())
		return
	}
	if m.stopFn != nil {
		m.logger.Warn("Capture already started; replacing the event channel")
		m.forwarder.Attach(eventChannel)
		return
	}

	m.forwarder.Attach(eventChannel)
	stop, err := midi.ListenTo(m.in, func(msg midi.Message, _ int32) {
		m.forwarder.Raw(msg)
	}, midi.HandleError(func(err error) {
		m.logger.Warn("MIDI listener error", m.logger.Field().Error("error", err))
	}))
	if err != nil {
		m.forwarder.Detach()
		m.logger.Error("Failed to start MIDI capture", m.logger.Field().Error("error", err))
		return
	}
	m.stopFn = stop
	m.logger.Info("Starting MIDI event capture")
}

// Stop ends capture and closes the port. It is safe to call more than once.
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	return nil
}

func (m *ClientMid) closeLocked() {
	if m.stopFn != nil {
		m.stopFn()
		m.stopFn = nil
		m.logger.Info("MIDI capture stopped")
	}
	m.forwarder.Detach()
	if m.in != nil {
		_ = m.in.Close()
		m.in = nil
	}
}
