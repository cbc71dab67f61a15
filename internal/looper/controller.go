package looper

import (
	"context"
	"fmt"

	"github.com/leandrodaf/midiloop/sdk/contracts"
)

type request struct {
	cmd   contracts.Command
	reply chan error
}

// Run executes commands until an exit command arrives or ctx is done. The
// running mode is stopped before Run returns. Run may be called only once.
func (l *Looper) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.done)
	defer l.stop()

	l.logger.Info("Looper ready", l.logger.Field().Int("slots", l.song.Len()))
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Looper shutting down")
			return nil
		case req := <-l.commands:
			err := l.execute(ctx, req.cmd)
			if err != nil {
				l.logger.Warn("Command failed",
					l.logger.Field().String("command", req.cmd.Kind.String()),
					l.logger.Field().Error("error", err))
			}
			req.reply <- err
			if req.cmd.Kind == contracts.CommandExit {
				return nil
			}
		}
	}
}

// Send submits cmd to Run and waits for it to be applied.
func (l *Looper) Send(ctx context.Context, cmd contracts.Command) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case l.commands <- req:
	case <-l.done:
		return ErrLooperStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Looper) execute(ctx context.Context, cmd contracts.Command) error {
	l.logger.Debug("Command received", l.logger.Field().String("command", cmd.Kind.String()))

	switch cmd.Kind {
	case contracts.CommandRecord:
		l.stop()
		l.Clear()
		l.start(ctx, contracts.ModeRecording)
	case contracts.CommandOverdub:
		l.stop()
		l.start(ctx, contracts.ModeOverdub)
	case contracts.CommandPlay:
		l.stop()
		l.start(ctx, contracts.ModePlaying)
	case contracts.CommandStop, contracts.CommandExit:
		l.stop()
	case contracts.CommandTempo:
		return l.SetTempo(cmd.Tempo)
	case contracts.CommandSave:
		return l.Save(cmd.Path, cmd.BPM)
	case contracts.CommandLoad:
		return l.Load(cmd.Path)
	case contracts.CommandClear:
		l.Clear()
	case contracts.CommandSelect:
		return l.switchSlot(ctx, cmd.Index)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, cmd.Kind)
	}
	return nil
}

// switchSlot selects slot i and moves a running mode over to it.
func (l *Looper) switchSlot(ctx context.Context, i int) error {
	if _, err := l.song.Slot(i); err != nil {
		return err
	}
	l.mu.Lock()
	mode := l.mode
	l.mu.Unlock()

	l.stop()
	if err := l.Select(i); err != nil {
		return err
	}
	if mode != contracts.ModeIdle {
		l.start(ctx, mode)
	}
	return nil
}

func (l *Looper) task(mode contracts.Mode) func(context.Context) error {
	switch mode {
	case contracts.ModeRecording:
		return l.Record
	case contracts.ModeOverdub:
		return l.Overdub
	default:
		return l.PlayOnly
	}
}

// start runs mode in the background until stop is called.
func (l *Looper) start(ctx context.Context, mode contracts.Mode) {
	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	run := l.task(mode)

	l.mu.Lock()
	l.mode = mode
	l.cancel = cancel
	l.taskDone = done
	l.mu.Unlock()

	go func() {
		defer close(done)
		if err := run(taskCtx); err != nil {
			l.logger.Error("Mode ended with error",
				l.logger.Field().String("mode", string(mode)),
				l.logger.Field().Error("error", err))
		}
		l.mu.Lock()
		// the task may end on its own, e.g. when the input closes
		if l.taskDone == done {
			l.mode = contracts.ModeIdle
			l.cancel = nil
			l.taskDone = nil
		}
		l.mu.Unlock()
		cancel()
	}()
	l.logger.Info("Mode started", l.logger.Field().String("mode", string(mode)))
}

// stop cancels the running mode and waits for it to finish.
func (l *Looper) stop() {
	l.mu.Lock()
	cancel, done, mode := l.cancel, l.taskDone, l.mode
	l.cancel = nil
	l.taskDone = nil
	l.mode = contracts.ModeIdle
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	l.logger.Info("Mode stopped", l.logger.Field().String("mode", string(mode)))
}
