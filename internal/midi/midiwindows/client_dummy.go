//go:build !windows
// +build !windows

package midiwindows

import (
	"errors"

	"github.com/leandrodaf/midiloop/sdk/contracts"
)

// ErrUnavailable is returned by every call on a platform without WinMM.
var ErrUnavailable = errors.New("WinMM is not available on this platform")

type dummyMIDIClient struct {
	logger contracts.Logger
}

// NewMIDIClient initializes a dummy MIDI client for non-Windows systems.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	options.Logger.Info("Using dummy WinMM client for non-Windows system")
	return &dummyMIDIClient{
		logger: options.Logger,
	}, nil
}

// ListDevices reports that WinMM is unavailable.
func (m *dummyMIDIClient) ListDevices() ([]contracts.DeviceInfo, error) {
	m.logger.Warn("ListDevices called on dummy WinMM client")
	return nil, ErrUnavailable
}

// SelectDevice reports that WinMM is unavailable.
func (m *dummyMIDIClient) SelectDevice(deviceID int) error {
	m.logger.Warn("SelectDevice called on dummy WinMM client")
	return ErrUnavailable
}

// StartCapture does nothing.
func (m *dummyMIDIClient) StartCapture(eventChannel chan contracts.MIDI) {
	m.logger.Warn("StartCapture called on dummy WinMM client")
}

// Stop does nothing.
func (m *dummyMIDIClient) Stop() error {
	return nil
}
