package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/midiloop/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*ZapLogger, *observer.ObservedLogs) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	core, logs := observer.New(level)
	return &ZapLogger{logger: zap.New(core), level: level}, logs
}

func TestFieldsReachZap(t *testing.T) {
	l, logs := newObserved()
	l.Info("note recorded",
		l.Field().Uint8("pitch", 60),
		l.Field().Duration("start", 500*time.Millisecond),
		l.Field().Error("error", errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, uint8(60), ctx["pitch"])
	assert.Equal(t, 500*time.Millisecond, ctx["start"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestSetLevelFilters(t *testing.T) {
	l, logs := newObserved()
	l.Debug("hidden")
	l.SetLevel(contracts.DebugLevel)
	l.Debug("shown")
	l.SetLevel(contracts.ErrorLevel)
	l.Warn("hidden too")
	l.Error("shown too")

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"shown", "shown too"}, msgs)
}

func TestSetDestinationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.log")
	l := NewZapLogger().(*ZapLogger)
	l.SetDestination(contracts.FileLog, path)
	l.Info("to file", l.Field().String("slot", "1"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.Contains(t, string(data), `"slot":"1"`)
}

func TestNopLoggerAcceptsEverything(t *testing.T) {
	l := NewNopLogger()
	l.SetLevel(contracts.DebugLevel)
	l.SetDestination(contracts.FileLog)
	l.Debug("x", l.Field().Bool("ok", true))
}

func TestParseLogLevel(t *testing.T) {
	lvl, ok := contracts.ParseLogLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, contracts.DebugLevel, lvl)

	lvl, ok = contracts.ParseLogLevel("loud")
	assert.False(t, ok)
	assert.Equal(t, contracts.InfoLevel, lvl)
}
