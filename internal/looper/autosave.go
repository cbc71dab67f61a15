package looper

import (
	"time"

	"github.com/bep/debounce"
)

// DefaultAutosaveDelay is the quiet period used when none is configured.
const DefaultAutosaveDelay = 2 * time.Second

// autosaver saves once no note has been recorded for a while.
type autosaver struct {
	path     string
	debounce func(f func())
	save     func(path string)
}

func newAutosaver(path string, delay time.Duration, save func(path string)) *autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &autosaver{
		path:     path,
		debounce: debounce.New(delay),
		save:     save,
	}
}

func (a *autosaver) trigger() {
	a.debounce(func() { a.save(a.path) })
}
