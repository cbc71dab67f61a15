package phrase

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultSlots is the number of phrase slots in a new song.
const DefaultSlots = 10

var ErrSlotOutOfRange = errors.New("phrase slot out of range")

// Song is a fixed set of phrase slots with one active slot. Only the active
// phrase is recorded into or played.
type Song struct {
	mu     sync.RWMutex
	slots  []*Phrase
	active int
}

// NewSong creates a song with n empty slots; n <= 0 uses DefaultSlots.
func NewSong(n int) *Song {
	if n <= 0 {
		n = DefaultSlots
	}
	s := &Song{slots: make([]*Phrase, n)}
	for i := range s.slots {
		s.slots[i] = New()
	}
	return s
}

// Len is the number of slots.
func (s *Song) Len() int {
	return len(s.slots)
}

// Active returns the active phrase.
func (s *Song) Active() *Phrase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[s.active]
}

// ActiveIndex returns the active slot index.
func (s *Song) ActiveIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Select makes slot i active.
func (s *Song) Select(i int) error {
	if i < 0 || i >= len(s.slots) {
		return fmt.Errorf("%w: %d (slots: %d)", ErrSlotOutOfRange, i, len(s.slots))
	}
	s.mu.Lock()
	s.active = i
	s.mu.Unlock()
	return nil
}

// Slot returns the phrase in slot i.
func (s *Song) Slot(i int) (*Phrase, error) {
	if i < 0 || i >= len(s.slots) {
		return nil, fmt.Errorf("%w: %d (slots: %d)", ErrSlotOutOfRange, i, len(s.slots))
	}
	return s.slots[i], nil
}
