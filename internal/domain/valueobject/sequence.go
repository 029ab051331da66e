package valueobject

import (
	"math"
	"sync"

	"github.com/ruudy-sib/outbound/internal/domain"
)

// Sequence hands out strictly increasing per-message numbers starting at 0.
// It never wraps: once the maximum has been handed out every further call
// fails with domain.ErrSequenceExhausted.
type Sequence struct {
	mu        sync.Mutex
	next      uint64
	exhausted bool
}

// NewSequence returns a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next sequence number.
func (s *Sequence) Next() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exhausted {
		return 0, domain.ErrSequenceExhausted
	}

	n := s.next
	if n == math.MaxUint64 {
		s.exhausted = true
	} else {
		s.next++
	}
	return n, nil
}
