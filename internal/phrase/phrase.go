package phrase

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Phrase is an ordered, mutable collection of notes sorted by start time.
//
// A phrase is written by at most one recorder and read by at most one player.
// The mutex only guards the slice copy and the insert; the dirty flag is
// atomic so the player can poll it between dispatches without locking.
type Phrase struct {
	mu    sync.RWMutex
	notes []Note
	dirty atomic.Bool
}

// New returns a phrase holding notes, sorted by start.
func New(notes ...Note) *Phrase {
	p := &Phrase{}
	if len(notes) > 0 {
		p.Replace(notes)
	}
	return p
}

// Add inserts n after every note starting at or before n.Start and marks the
// phrase dirty.
func (p *Phrase) Add(n Note) {
	p.mu.Lock()
	i := sort.Search(len(p.notes), func(i int) bool { return p.notes[i].Start > n.Start })
	p.notes = append(p.notes, Note{})
	copy(p.notes[i+1:], p.notes[i:])
	p.notes[i] = n
	p.mu.Unlock()
	p.dirty.Store(true)
}

// Notes returns a copy of the notes in start order.
func (p *Phrase) Notes() []Note {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Note, len(p.notes))
	copy(out, p.notes)
	return out
}

// Len is the number of notes.
func (p *Phrase) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.notes)
}

// Length is the latest end time of any note.
func (p *Phrase) Length() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var end time.Duration
	for _, n := range p.notes {
		if n.End > end {
			end = n.End
		}
	}
	return end
}

// Clear removes every note.
func (p *Phrase) Clear() {
	p.mu.Lock()
	p.notes = nil
	p.mu.Unlock()
	p.dirty.Store(true)
}

// Replace swaps the content for a sorted copy of notes.
func (p *Phrase) Replace(notes []Note) {
	sorted := make([]Note, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	p.mu.Lock()
	p.notes = sorted
	p.mu.Unlock()
	p.dirty.Store(true)
}

// Dirty reports whether the phrase changed since the last TakeDirty.
func (p *Phrase) Dirty() bool {
	return p.dirty.Load()
}

// TakeDirty clears the dirty flag and reports whether it was set. Callers
// should snapshot after TakeDirty so a concurrent Add is never lost.
func (p *Phrase) TakeDirty() bool {
	return p.dirty.CompareAndSwap(true, false)
}
