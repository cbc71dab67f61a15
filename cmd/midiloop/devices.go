package main

import (
	"fmt"

	"github.com/leandrodaf/midiloop/sdk/contracts"
	"github.com/leandrodaf/midiloop/sdk/midi"
	"github.com/spf13/cobra"
)

var useDriver bool

func init() {
	devicesCmd.Flags().BoolVar(&useDriver, "driver", false, "list ports of the rtmidi driver instead of the native API")
	rootCmd.AddCommand(devicesCmd)
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Lists MIDI inputs and outputs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		client, err := midi.NewMIDIClient(clientOptions(log)...)
		if err != nil {
			return err
		}
		defer client.Stop()

		out := cmd.OutOrStdout()
		inputs, err := client.ListDevices()
		if err != nil {
			fmt.Fprintf(out, "inputs: %v\n", err)
		} else {
			fmt.Fprintln(out, "inputs:")
			for _, d := range inputs {
				fmt.Fprintf(out, "  %d: %s\n", d.ID, describe(d))
			}
		}

		outputs, err := midi.ListOutputs()
		if err != nil {
			fmt.Fprintf(out, "outputs: %v\n", err)
			return nil
		}
		fmt.Fprintln(out, "outputs:")
		for _, d := range outputs {
			fmt.Fprintf(out, "  %d: %s\n", d.ID, describe(d))
		}
		return nil
	},
}

func describe(d contracts.DeviceInfo) string {
	if d.Manufacturer == "" {
		return d.Name
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.Manufacturer)
}

func clientOptions(log contracts.Logger) []contracts.Option {
	opts := []contracts.Option{
		contracts.WithLogger(log),
		contracts.WithMIDIEventFilter(contracts.MIDIEventFilter{
			Commands: []contracts.MIDICommand{contracts.NoteOn, contracts.NoteOff},
		}),
	}
	if useDriver {
		opts = append(opts, contracts.WithDriver())
	}
	return opts
}
