package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leandrodaf/midiloop/internal/control"
	"github.com/leandrodaf/midiloop/sdk/contracts"
	"github.com/leandrodaf/midiloop/sdk/looper"
	"github.com/leandrodaf/midiloop/sdk/midi"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const menu = `commands:
  r            record (clears the slot)
  o            overdub
  p            play
  s            stop
  c            clear the slot
  t <mult>     tempo multiplier
  save <path>  save the slot
  load <path>  load into the slot
  slot <n>     select a slot
  x            exit`

type runFlags struct {
	device        int
	output        int
	slots         int
	bpm           float64
	tempo         float64
	retrigger     string
	loopLength    time.Duration
	httpAddr      string
	httpRate      time.Duration
	httpDir       string
	httpOrigins   []string
	autosave      string
	autosaveDelay time.Duration
	buffer        int
}

var runOpts runFlags

func init() {
	f := runCmd.Flags()
	f.IntVar(&runOpts.device, "device", 0, "input device index (see devices)")
	f.IntVar(&runOpts.output, "out", -1, "output port index; -1 only logs played notes")
	f.IntVar(&runOpts.slots, "slots", 10, "number of phrase slots")
	f.Float64Var(&runOpts.bpm, "bpm", 120, "tempo written to saved files")
	f.Float64Var(&runOpts.tempo, "tempo", 1, "initial playback tempo multiplier")
	f.StringVar(&runOpts.retrigger, "retrigger", "replace", "repeated note-on while held: replace or ignore")
	f.DurationVar(&runOpts.loopLength, "loop-length", 0, "minimum loop length, e.g. 4s")
	f.DurationVar(&runOpts.httpRate, "http-rate", 0, "minimum interval between HTTP commands (0 disables the limit)")
	f.StringVar(&runOpts.httpDir, "http-dir", ".", "directory HTTP save and load are confined to")
	f.StringSliceVar(&runOpts.httpOrigins, "http-origin", nil, "browser origins allowed to use the HTTP API")
	f.StringVar(&runOpts.httpAddr, "http", os.Getenv("MIDILOOP_HTTP_ADDR"), "serve the HTTP control API on this address")
	f.StringVar(&runOpts.autosave, "autosave", os.Getenv("MIDILOOP_AUTOSAVE"), "save the active slot here after recording")
	f.DurationVar(&runOpts.autosaveDelay, "autosave-delay", 2*time.Second, "quiet period before autosaving")
	f.IntVar(&runOpts.buffer, "buffer", 256, "capture buffer size in events")
	f.BoolVar(&useDriver, "driver", false, "capture through the rtmidi driver instead of the native API")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the looper",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), runOpts)
	},
}

func parseRetrigger(name string) (contracts.RetriggerPolicy, error) {
	for _, p := range []contracts.RetriggerPolicy{contracts.RetriggerReplace, contracts.RetriggerIgnore} {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown retrigger policy %q", name)
}

func run(parent context.Context, in io.Reader, out io.Writer, flags runFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	log := newLogger()

	retrigger, err := parseRetrigger(flags.retrigger)
	if err != nil {
		return err
	}

	input, err := midi.OpenInput(flags.device, flags.buffer, clientOptions(log)...)
	if err != nil {
		return err
	}
	defer input.Close()

	var sink contracts.Sink = contracts.SinkFunc(func(ev contracts.MIDI) error {
		log.Debug("Note played",
			log.Field().Uint8("command", ev.Command),
			log.Field().Uint8("channel", ev.Channel),
			log.Field().Uint8("note", ev.Note),
			log.Field().Uint8("velocity", ev.Velocity))
		return nil
	})
	if flags.output >= 0 {
		output, err := midi.NewOutput(flags.output, contracts.WithLogger(log))
		if err != nil {
			return err
		}
		defer output.Close()
		sink = output
	}

	l, err := looper.New(input.Events, sink,
		contracts.WithLooperLogger(log),
		contracts.WithSlots(flags.slots),
		contracts.WithExportBPM(flags.bpm),
		contracts.WithTempo(flags.tempo),
		contracts.WithRetrigger(retrigger),
		contracts.WithLoopLength(flags.loopLength),
		contracts.WithAutosave(flags.autosave, flags.autosaveDelay),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return l.Run(gctx)
	})
	if flags.httpAddr != "" {
		serverOpts := []control.Option{
			control.WithAddr(flags.httpAddr),
			control.WithFileRoot(flags.httpDir),
			control.WithAllowedOrigins(flags.httpOrigins...),
		}
		if flags.httpRate > 0 {
			serverOpts = append(serverOpts, control.WithRateLimit(flags.httpRate, 5))
		}
		server := control.New(l, log, serverOpts...)
		g.Go(func() error {
			return server.ListenAndServe(gctx)
		})
	}

	fmt.Fprintln(out, menu)
	// the reader cannot be interrupted; it ends with stdin or the process
	go readCommands(gctx, in, out, l)

	return g.Wait()
}

// readCommands sends each stdin line to the looper until exit or EOF.
func readCommands(ctx context.Context, in io.Reader, out io.Writer, l contracts.Looper) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd, err := looper.ParseCommand(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if err := l.Send(ctx, cmd); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintln(out, err)
			continue
		}
		s := l.Status()
		fmt.Fprintf(out, "%s  slot %d/%d  %d notes  tempo x%.2f\n", s.Mode, s.ActiveSlot, s.Slots, s.Notes, s.Tempo)
		if cmd.Kind == contracts.CommandExit {
			return
		}
	}
}
