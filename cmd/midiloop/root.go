package main

import (
	"os"

	"github.com/leandrodaf/midiloop/internal/logger"
	"github.com/leandrodaf/midiloop/sdk/contracts"
	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
)

var (
	logLevel string
	logFile  string
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:   "midiloop",
	Short: "Real-time MIDI loop and overdub sequencer",
	Long: `midiloop records notes from a MIDI input, loops them to a MIDI output
and lets you overdub new material on top while the loop keeps playing.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "human readable debug logging")
}

// Execute runs the root command.
func Execute() {
	defer gomidi.CloseDriver()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() contracts.Logger {
	var log contracts.Logger
	if debug {
		log = logger.NewDevelopmentLogger()
		log.SetLevel(contracts.DebugLevel)
	} else {
		log = logger.NewZapLogger()
		level, ok := contracts.ParseLogLevel(logLevel)
		if !ok {
			log.Warn("Unknown log level; using info", log.Field().String("level", logLevel))
		}
		log.SetLevel(level)
	}
	if logFile != "" {
		log.SetDestination(contracts.FileLog, logFile)
	}
	return log
}
