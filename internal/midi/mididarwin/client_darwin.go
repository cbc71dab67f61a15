//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midiloop/internal/midi/capture"
	"github.com/leandrodaf/midiloop/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for MIDI connection and handling issues.
var (
	ErrNoMIDIDevices       = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice   = errors.New("invalid MIDI device")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// ClientMid captures MIDI events through CoreMIDI.
// Packets are split into events (running status included) and handed to a
// capture.Forwarder, which never blocks the CoreMIDI callback.
type ClientMid struct {
	logger         contracts.Logger
	forwarder      *capture.Forwarder
	client         coremidi.Client           // CoreMIDI client instance for MIDI operations.
	inputPort      coremidi.InputPort        // Input port for receiving MIDI events.
	portConn       internalPortConnection    // Connection to the MIDI port.
	coreMIDIConfig *contracts.CoreMIDIConfig // Configuration for MIDI client.
	mu             sync.Mutex                // Guards the port and capture state.
	capturing      bool
}

// NewMIDIClient initializes a new ClientMid for handling MIDI events on macOS.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	client, err := coremidi.NewClient(options.CoreMIDIConfig.ClientName)
	if err != nil {
		return nil, err
	}
	options.Logger.Info("MIDI client successfully created",
		options.Logger.Field().String("clientName", options.CoreMIDIConfig.ClientName))

	return &ClientMid{
		logger:         options.Logger,
		forwarder:      capture.NewForwarder(options.Logger, options.MIDIEventFilter),
		client:         client,
		coreMIDIConfig: options.CoreMIDIConfig,
	}, nil
}

// ListDevices retrieves and returns available MIDI sources.
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		sourceEntity := source.Entity()
		devices[i] = contracts.DeviceInfo{
			ID:           i,
			Name:         source.Name(),
			EntityName:   sourceEntity.Name(),
			Manufacturer: sourceEntity.Manufacturer(),
		}
	}
	return devices, nil
}

// SelectDevice connects to source deviceID, disconnecting the previous one.
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources, err := coremidi.AllSources()
	if err != nil {
		return fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	if deviceID < 0 || deviceID >= len(sources) {
		m.logger.Error(ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("deviceID", deviceID))
		return fmt.Errorf("%w: %d", ErrInvalidMIDIDevice, deviceID)
	}

	m.disconnectLocked()

	source := sources[deviceID]
	m.logger.Info("MIDI device selected",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", source.Name()))

	m.inputPort, err = coremidi.NewInputPort(m.client, m.coreMIDIConfig.ClientName+" input", m.handlePacket)
	if err != nil {
		m.logger.Error(ErrCreateInputPort.Error())
		return fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}

	m.portConn, err = m.inputPort.Connect(source)
	if err != nil {
		m.logger.Error(ErrMIDIConnectionError.Error())
		return fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}

	m.logger.Info("MIDI device successfully connected")
	return nil
}

// handlePacket runs on the CoreMIDI thread.
func (m *ClientMid) handlePacket(source coremidi.Source, packet coremidi.Packet) {
	m.forwarder.Raw(packet.Data)
}

// StartCapture begins forwarding events to eventChannel. Calling it again
// switches to the new channel.
func (m *ClientMid) StartCapture(eventChannel chan contracts.MIDI) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if eventChannel == nil {
		m.logger.Error("StartCapture called with nil eventChannel")
		return
	}
	if m.capturing {
		m.logger.Warn("Capture already started; replacing the event channel")
		m.forwarder.Detach()
	}

	m.logger.Info("Starting MIDI event capture")
	m.forwarder.Attach(eventChannel)
	m.capturing = true
}

// Stop halts capturing and disconnects from the device. Events still being
// delivered are waited for. Stop may be called more than once.
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.capturing && m.portConn == nil {
		return nil
	}
	m.logger.Info("Stopping MIDI capture")
	m.capturing = false
	m.disconnectLocked()
	m.forwarder.Detach()
	if dropped := m.forwarder.Dropped(); dropped > 0 {
		m.logger.Warn("MIDI events were dropped during capture", m.logger.Field().Int64("count", dropped))
	}
	m.logger.Info("MIDI capture stopped")
	return nil
}

func (m *ClientMid) disconnectLocked() {
	if m.portConn != nil {
		m.portConn.Disconnect()
		m.portConn = nil
	}
}
