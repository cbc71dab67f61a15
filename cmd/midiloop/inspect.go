package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/leandrodaf/midiloop/internal/smfcodec"
	"github.com/spf13/cobra"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Prints the notes of a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		codec := smfcodec.New(smfcodec.WithLogger(newLogger()))
		notes, err := codec.Load(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var length time.Duration
		for _, n := range notes {
			fmt.Fprintln(out, n.String())
			if n.End > length {
				length = n.End
			}
		}
		fmt.Fprintf(out, "%d notes, %s long, %s\n",
			len(notes),
			durafmt.Parse(length).LimitFirstN(2).Format(shortUnits),
			humanize.Bytes(uint64(info.Size())))
		return nil
	},
}
