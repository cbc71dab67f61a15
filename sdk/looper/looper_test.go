package looper

import (
	"context"
	"testing"
	"time"

	"github.com/leandrodaf/midiloop/internal/logger"
	"github.com/leandrodaf/midiloop/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	options := applyDefaultLooperOptions(contracts.WithLooperLogger(logger.NewNopLogger()))
	assert.Equal(t, 10, options.Slots)
	assert.Equal(t, 120.0, options.ExportBPM)
	assert.Equal(t, uint16(480), options.TicksPerBeat)
	assert.Equal(t, 1.0, options.Tempo)
	assert.Zero(t, options.AutosaveDelay)

	options = applyDefaultLooperOptions(
		contracts.WithLooperLogger(logger.NewNopLogger()),
		contracts.WithSlots(3),
		contracts.WithTempo(0.5),
		contracts.WithAutosave("take.mid", 0),
	)
	assert.Equal(t, 3, options.Slots)
	assert.Equal(t, 0.5, options.Tempo)
	assert.Positive(t, options.AutosaveDelay)
}

func TestNewLooperRuns(t *testing.T) {
	l, err := New(make(chan contracts.MIDI), contracts.SinkFunc(func(contracts.MIDI) error { return nil }),
		contracts.WithLooperLogger(logger.NewNopLogger()),
		contracts.WithSlots(2))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.NoError(t, l.Send(ctx, contracts.Command{Kind: contracts.CommandSelect, Index: 1}))
	assert.Equal(t, 1, l.Status().ActiveSlot)
	assert.Equal(t, 2, l.Status().Slots)
	require.NoError(t, l.Send(ctx, contracts.Command{Kind: contracts.CommandExit}))
	assert.NoError(t, <-done)
}

func TestNewRejectsNegativeTempo(t *testing.T) {
	_, err := New(make(chan contracts.MIDI), contracts.SinkFunc(func(contracts.MIDI) error { return nil }),
		contracts.WithLooperLogger(logger.NewNopLogger()),
		contracts.WithTempo(-2))
	assert.Error(t, err)
}
