package looper

import (
	"github.com/leandrodaf/midiloop/internal/logger"
	"github.com/leandrodaf/midiloop/internal/looper"
	"github.com/leandrodaf/midiloop/internal/phrase"
	"github.com/leandrodaf/midiloop/internal/smfcodec"
	"github.com/leandrodaf/midiloop/sdk/contracts"
)

// applyDefaultLooperOptions sets default values for LooperOptions if not explicitly provided.
func applyDefaultLooperOptions(opts ...contracts.LooperOption) contracts.LooperOptions {
	options := &contracts.LooperOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.Slots <= 0 {
		options.Slots = phrase.DefaultSlots
	}
	if options.ExportBPM <= 0 {
		options.ExportBPM = smfcodec.DefaultBPM
	}
	if options.TicksPerBeat == 0 {
		options.TicksPerBeat = smfcodec.DefaultTicksPerBeat
	}
	if options.Tempo == 0 {
		options.Tempo = 1
	}
	if options.AutosavePath != "" && options.AutosaveDelay <= 0 {
		options.AutosaveDelay = looper.DefaultAutosaveDelay
	}
	return *options
}
