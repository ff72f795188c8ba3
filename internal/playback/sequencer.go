package playback

import (
	"sync"

	"github.com/RuliLG/docc/internal/script"
)

// Sequencer holds the ordered block list and the clamped current index.
// Every navigation primitive interrupts in-flight audio work before the
// index changes, so no audio from the previous block can continue or
// complete once the viewer has moved on.
type Sequencer struct {
	mu        sync.Mutex
	doc       *script.Document
	index     int
	interrupt func()
}

func NewSequencer(doc *script.Document) *Sequencer {
	return &Sequencer{doc: doc}
}

// SetInterrupt installs the hook run before every index change. The session
// wires it to cancel auto-advance and stop the playback controller.
func (s *Sequencer) SetInterrupt(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupt = fn
}

func (s *Sequencer) Next() int {
	return s.move(+1)
}

func (s *Sequencer) Previous() int {
	return s.move(-1)
}

func (s *Sequencer) ToStart() int {
	s.runInterrupt()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
	return s.index
}

func (s *Sequencer) move(delta int) int {
	s.runInterrupt()
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.index + delta
	if next < 0 {
		next = 0
	}
	if max := s.doc.Len() - 1; next > max {
		next = max
	}
	s.index = next
	return s.index
}

func (s *Sequencer) runInterrupt() {
	s.mu.Lock()
	fn := s.interrupt
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Sequencer) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Current returns the block at the current index, which is always in range
// given the clamp.
func (s *Sequencer) Current() (int, script.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index, s.doc.Block(s.index)
}

func (s *Sequencer) Len() int { return s.doc.Len() }
