package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/leandrodaf/midiloop/internal/logger"
	"github.com/leandrodaf/midiloop/sdk/contracts"
	"github.com/leandrodaf/midiloop/sdk/looper"
	"github.com/leandrodaf/midiloop/sdk/midi"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func main() {
	log := logger.NewDevelopmentLogger()

	client, err := midi.NewMIDIClient(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithMIDIEventFilter(contracts.MIDIEventFilter{
			Commands: []contracts.MIDICommand{contracts.NoteOn, contracts.NoteOff},
		}),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI client", log.Field().Error("error", err))
		return
	}
	defer client.Stop()

	devices, err := client.ListDevices()
	if err != nil || len(devices) == 0 {
		log.Error("No MIDI devices found or error listing devices", log.Field().Error("error", err))
		return
	}
	fmt.Println("Available MIDI devices:", devices)

	if err = client.SelectDevice(0); err != nil {
		log.Error("Failed to select MIDI device", log.Field().Error("error", err))
		return
	}

	// Played notes are only logged; use midi.NewOutput to hear them.
	sink := contracts.SinkFunc(func(event contracts.MIDI) error {
		log.Info("Playback",
			log.Field().Uint8("Note", event.Note),
			log.Field().Uint8("Velocity", event.Velocity))
		return nil
	})

	eventChannel := make(chan contracts.MIDI, 100)
	l, err := looper.New(eventChannel, sink, contracts.WithLooperLogger(log))
	if err != nil {
		log.Error("Failed to create looper", log.Field().Error("error", err))
		return
	}
	client.StartCapture(eventChannel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	go l.Run(ctx)

	// Record for eight seconds, then overdub on top until Ctrl+C.
	fmt.Println("Recording... play something.")
	if err := l.Send(ctx, contracts.Command{Kind: contracts.CommandRecord}); err != nil {
		log.Error("Record failed", log.Field().Error("error", err))
		return
	}
	select {
	case <-time.After(8 * time.Second):
	case <-ctx.Done():
		return
	}

	fmt.Println("Overdubbing... Press Ctrl+C to exit.")
	if err := l.Send(ctx, contracts.Command{Kind: contracts.CommandOverdub}); err != nil {
		log.Error("Overdub failed", log.Field().Error("error", err))
		return
	}
	<-ctx.Done()
}
