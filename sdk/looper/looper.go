// Package looper builds a ready-to-run looper from a capture channel and an
// output sink.
package looper

import (
	"github.com/leandrodaf/midiloop/internal/looper"
	"github.com/leandrodaf/midiloop/internal/phrase"
	"github.com/leandrodaf/midiloop/sdk/contracts"
)

// ParseCommand reads one line of the interactive menu into a command.
var ParseCommand = looper.ParseCommand

// New creates a looper recording from input and playing to sink.
//
// opts ...contracts.LooperOption: A variadic list of option functions to customize the looper.
//
// Returns:
//   - contracts.Looper: The looper; call Run to start processing commands.
//   - error: An error if the options are invalid.
func New(input <-chan contracts.MIDI, sink contracts.Sink, opts ...contracts.LooperOption) (contracts.Looper, error) {
	options := applyDefaultLooperOptions(opts...)
	l, err := looper.New(phrase.NewSong(options.Slots), input, sink, &options)
	if err != nil {
		return nil, err
	}
	return l, nil
}
