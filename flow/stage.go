package flow

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/imishinist/go-streamflow"
)

// Stage is a flow that can fail and reports when it has consumed its input.
// Every stage in this package satisfies streamflow.Terminal, so the last one
// of a chain can be handed to a workflow.Adapter as is.
type Stage interface {
	streamflow.Flow
	Errors() <-chan error
	Finished() <-chan struct{}
}

// StageError is raised by a stage whose function failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stage holds the plumbing shared by every flow: channels, the first failure,
// and completion.
type stage struct {
	name string
	kind string

	in       chan any
	out      chan any
	errs     chan error
	finished chan struct{}

	// emitMu orders every emission either before or after the failure.
	emitMu  sync.RWMutex
	failed  atomic.Bool
	errOnce sync.Once
	endOnce sync.Once
}

func newStage(name, kind string) stage {
	return stage{
		name:     name,
		kind:     kind,
		in:       make(chan any),
		out:      make(chan any),
		errs:     make(chan error, 1),
		finished: make(chan struct{}),
	}
}

func (s *stage) In() chan<- any {
	return s.in
}

func (s *stage) Out() <-chan any {
	return s.out
}

func (s *stage) Errors() <-chan error {
	return s.errs
}

func (s *stage) Finished() <-chan struct{} {
	return s.finished
}

func (s *stage) Via(flow streamflow.Flow) streamflow.Flow {
	go s.transmit(flow)
	return flow
}

func (s *stage) To(sink streamflow.Sink) {
	s.transmit(sink)
}

func (s *stage) transmit(inlet streamflow.Input) {
	defer func() {
		parallelismGauge.WithLabelValues(s.name, s.kind).Set(0)
		close(inlet.In())
	}()
	for element := range s.Out() {
		inlet.In() <- element
	}
}

// fail records the first failure. Later failures are dropped, and so is every
// element the stage would emit from now on. Sends already under way complete
// before the failure is recorded, so no element reaches Out after it.
//
// With parallelism above one, elements processed concurrently with the
// failing one may still be emitted ahead of it.
func (s *stage) fail(err error) {
	s.errOnce.Do(func() {
		s.emitMu.Lock()
		s.failed.Store(true)
		s.emitMu.Unlock()
		stageErrorsCounter.WithLabelValues(s.name, s.kind).Inc()
		s.errs <- &StageError{Stage: s.name, Err: err}
	})
}

func (s *stage) Failed() bool {
	return s.failed.Load()
}

func (s *stage) emit(element any) {
	s.emitMu.RLock()
	defer s.emitMu.RUnlock()
	if s.Failed() {
		return
	}
	s.out <- element
}

// cast converts an incoming element, failing the stage on a type mismatch.
func cast[T any](s *stage, element any) (T, bool) {
	v, ok := element.(T)
	if !ok {
		s.fail(fmt.Errorf("unexpected element type %T", element))
	}
	return v, ok
}

// finish must be called once the input is closed and no worker is running.
func (s *stage) finish() {
	s.endOnce.Do(func() {
		close(s.finished)
		close(s.errs)
		close(s.out)
	})
}
