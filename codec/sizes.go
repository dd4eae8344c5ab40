package codec

import "fmt"

// Sizes counts the bytes committed by one encode call: heap bytes in total,
// and stack bytes pending in the enclosing writes. Sizes only grows, except
// that ToHeap moves pending stack bytes to the heap side.
type Sizes struct {
	Heap  int
	Stack int
}

// Total is the number of bytes the finished buffer occupies.
func (s Sizes) Total() int {
	return s.Heap + s.Stack
}

// AddStack accounts n more stack bytes.
func (s *Sizes) AddStack(n int) {
	s.Stack += n
}

// AddHeap accounts n more heap bytes.
func (s *Sizes) AddHeap(n int) {
	s.Heap += n
}

// ToHeap reclassifies stack bytes past until as heap bytes.
func (s *Sizes) ToHeap(until int) {
	if s.Stack > until {
		s.Heap += s.Stack - until
		s.Stack = until
	}
}

// Add accumulates o into s.
func (s *Sizes) Add(o Sizes) {
	s.Heap += o.Heap
	s.Stack += o.Stack
}

// Covers reports that s is at least o on both sides.
func (s Sizes) Covers(o Sizes) bool {
	return s.Heap >= o.Heap && s.Stack >= o.Stack
}

func (s Sizes) String() string {
	return fmt.Sprintf("stack=%d heap=%d", s.Stack, s.Heap)
}
