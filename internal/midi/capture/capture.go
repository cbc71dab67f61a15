// Package capture holds the parts of input handling shared by the platform
// clients: splitting raw MIDI bytes into events and forwarding them to the
// consumer's channel.
package capture

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midiloop/sdk/contracts"
)

// dataLength returns the number of data bytes after a channel status byte.
func dataLength(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	}
	return 2
}

// systemLength returns the number of data bytes after a system common status.
func systemLength(status byte) int {
	switch status {
	case 0xF1, 0xF3:
		return 1
	case 0xF2:
		return 2
	}
	return 0
}

// Decode splits raw bytes into channel voice events stamped with timestamp.
// Running status is honoured; system messages and incomplete trailing
// messages are skipped.
func Decode(data []byte, timestamp uint64) []contracts.MIDI {
	var (
		events  []contracts.MIDI
		running byte
		inSysEx bool
	)
	for i := 0; i < len(data); {
		b := data[i]
		switch {
		case b >= 0xF8:
			// real-time messages are a single byte
			i++
			continue
		case b == 0xF0:
			inSysEx = true
			running = 0
			i++
			continue
		case b == 0xF7:
			inSysEx = false
			i++
			continue
		case inSysEx && b < 0x80:
			i++
			continue
		case b >= 0xF0:
			inSysEx = false
			running = 0
			i += 1 + systemLength(b)
			continue
		case b >= 0x80:
			inSysEx = false
			running = b
			i++
		case running == 0:
			// data byte without a status
			i++
			continue
		}

		n := dataLength(running)
		if i+n > len(data) {
			break
		}
		var d1, d2 byte
		d1 = data[i]
		if n == 2 {
			d2 = data[i+1]
		}
		events = append(events, contracts.NewMIDI(timestamp, running, d1, d2))
		i += n
	}
	return events
}

// Forwarder delivers events to the channel given to StartCapture. Sends never
// block: when the channel is full the event is dropped with a warning.
type Forwarder struct {
	logger  contracts.Logger
	filter  *contracts.MIDIEventFilter
	mu      sync.RWMutex
	channel chan contracts.MIDI
	dropped atomic.Int64
	now     func() time.Time
}

// NewForwarder creates a forwarder applying filter; a nil filter forwards everything.
func NewForwarder(logger contracts.Logger, filter *contracts.MIDIEventFilter) *Forwarder {
	return &Forwarder{logger: logger, filter: filter, now: time.Now}
}

// Attach starts forwarding to ch.
func (f *Forwarder) Attach(ch chan contracts.MIDI) {
	f.mu.Lock()
	f.channel = ch
	f.mu.Unlock()
}

// Detach stops forwarding. Deliveries in flight finish before it returns.
func (f *Forwarder) Detach() {
	f.mu.Lock()
	f.channel = nil
	f.mu.Unlock()
}

// Attached reports whether a channel is attached.
func (f *Forwarder) Attached() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.channel != nil
}

// Dropped is the number of events lost to a full channel.
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Now is the timestamp to stamp fresh events with.
func (f *Forwarder) Now() uint64 {
	return uint64(f.now().UnixNano())
}

// Raw decodes data and forwards every event.
func (f *Forwarder) Raw(data []byte) {
	for _, ev := range Decode(data, f.Now()) {
		f.Forward(ev)
	}
}

// Forward sends ev unless it is filtered out or nobody is attached.
func (f *Forwarder) Forward(ev contracts.MIDI) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.channel == nil {
		return
	}
	if !f.filter.Allows(ev.Command) {
		return
	}
	select {
	case f.channel <- ev:
	default:
		f.dropped.Add(1)
		f.logger.Warn("Event buffer full; dropping MIDI event",
			f.logger.Field().Uint8("command", ev.Command),
			f.logger.Field().Uint8("note", ev.Note))
	}
}
