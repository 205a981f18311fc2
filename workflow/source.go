package workflow

import (
	"sync"

	"github.com/imishinist/go-streamflow"
	"github.com/imishinist/go-streamflow/flow"
)

// SourceState is a snapshot of the inner source bookkeeping.
type SourceState struct {
	Pending       any
	HasPending    bool
	EndRequested  bool
	ReadableEnded bool
}

// Source is the one-slot endpoint that feeds the inner pipeline. It never
// produces data by itself: chunks arrive only through Accept, which the
// Adapter calls once per write.
//
// The downstream consumer reads Out. A chunk the consumer cannot take right
// away stays in the slot until it is received; the drained callback then
// fires exactly once for that chunk, either on receipt or on an explicit
// Resume, whichever comes first.
type Source struct {
	mu     sync.Mutex
	state  SourceState
	out    chan any
	paused bool
	resume chan struct{}

	// gen identifies the latest blocked Accept, owed whether its drained
	// notification is still to be delivered.
	gen  uint64
	owed bool

	onDrained func()
	onEnded   func()

	done      chan struct{}
	closeOnce sync.Once
}

var _ streamflow.Source = (*Source)(nil)

func newSource(onDrained, onEnded func()) *Source {
	return &Source{
		out:       make(chan any),
		resume:    make(chan struct{}),
		onDrained: onDrained,
		onEnded:   onEnded,
		done:      make(chan struct{}),
	}
}

func (s *Source) Out() <-chan any {
	return s.out
}

func (s *Source) Via(operator streamflow.Flow) streamflow.Flow {
	flow.DoStream(s, operator)
	return operator
}

// Accept puts chunk in the slot and reports whether the consumer received it
// immediately. On false the drained callback will fire once the chunk leaves
// the slot.
func (s *Source) Accept(chunk any) (bool, error) {
	s.mu.Lock()
	switch {
	case s.state.EndRequested:
		s.mu.Unlock()
		return false, ErrWriteAfterEnd
	case s.state.HasPending:
		s.mu.Unlock()
		return false, ErrSlotBusy
	}

	if !s.paused {
		select {
		case s.out <- chunk:
			s.mu.Unlock()
			return true, nil
		default:
		}
	}

	s.gen++
	s.owed = true
	s.state.Pending, s.state.HasPending = chunk, true
	gen := s.gen
	s.mu.Unlock()

	go s.flush(chunk, gen)
	return false, nil
}

func (s *Source) flush(chunk any, gen uint64) {
	if !s.deliver(chunk) {
		return
	}

	s.mu.Lock()
	s.state.Pending, s.state.HasPending = nil, false
	ending := s.state.EndRequested
	s.mu.Unlock()

	s.drained(gen)
	if ending {
		s.closeOut()
	}
}

// deliver blocks until the consumer takes chunk, honoring Pause. It returns
// false if the source was closed first.
func (s *Source) deliver(chunk any) bool {
	for {
		s.mu.Lock()
		paused, resume := s.paused, s.resume
		s.mu.Unlock()

		if paused {
			select {
			case <-resume:
				continue
			case <-s.done:
				return false
			}
		}

		select {
		case s.out <- chunk:
			return true
		case <-resume:
		case <-s.done:
			return false
		}
	}
}

func (s *Source) drained(gen uint64) {
	s.mu.Lock()
	if !s.owed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.owed = false
	fn := s.onDrained
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Pause stops handing chunks to the consumer. A send already in progress may
// still complete.
func (s *Source) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume is the consumer's explicit request for more data. It releases a
// paused slot and, if the slot has already been emptied, delivers the pending
// drained notification. The adapter calls it whenever its read side asks for
// data while a chunk is in flight; a stage throttling its input may call
// Pause and Resume itself.
func (s *Source) Resume() {
	s.mu.Lock()
	if s.paused {
		s.paused = false
		close(s.resume)
		s.resume = make(chan struct{})
	}
	owed := s.owed && !s.state.HasPending
	gen := s.gen
	s.mu.Unlock()

	if owed {
		s.drained(gen)
	}
}

// SignalEnd marks that no further chunks will arrive. Only the first call has
// an effect; Out is closed as soon as the slot is empty.
func (s *Source) SignalEnd() {
	s.mu.Lock()
	if s.state.EndRequested {
		s.mu.Unlock()
		return
	}
	s.state.EndRequested = true
	pending := s.state.HasPending
	s.mu.Unlock()

	if !pending {
		s.closeOut()
	}
}

func (s *Source) closeOut() {
	s.mu.Lock()
	if s.state.ReadableEnded {
		s.mu.Unlock()
		return
	}
	s.state.ReadableEnded = true
	close(s.out)
	fn := s.onEnded
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// ReadableEnded reports whether Out has been closed.
func (s *Source) ReadableEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ReadableEnded
}

func (s *Source) State() SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// close stops a blocked delivery. The slot content, if any, is dropped.
func (s *Source) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
