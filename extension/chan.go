package extension

import (
	"github.com/imishinist/go-streamflow"
	"github.com/imishinist/go-streamflow/flow"
)

type ChanSource struct {
	in chan any
}

var _ streamflow.Source = (*ChanSource)(nil)

func NewChanSource(in chan any) *ChanSource {
	return &ChanSource{in}
}

func (cs *ChanSource) Via(operator streamflow.Flow) streamflow.Flow {
	flow.DoStream(cs, operator)
	return operator
}

func (cs *ChanSource) Out() <-chan any {
	return cs.in
}

// SliceSource emits the elements of a slice in order and then closes.
type SliceSource[T any] struct {
	out chan any
}

var _ streamflow.Source = (*SliceSource[any])(nil)

func NewSliceSource[T any](items []T) *SliceSource[T] {
	s := &SliceSource[T]{out: make(chan any)}
	go func() {
		defer close(s.out)
		for _, item := range items {
			s.out <- item
		}
	}()
	return s
}

func (s *SliceSource[T]) Via(operator streamflow.Flow) streamflow.Flow {
	flow.DoStream(s, operator)
	return operator
}

func (s *SliceSource[T]) Out() <-chan any {
	return s.out
}

type ChanSink struct {
	Out chan any
}

var _ streamflow.Sink = (*ChanSink)(nil)

func NewChanSink(out chan any) *ChanSink {
	return &ChanSink{out}
}

func (cs *ChanSink) In() chan<- any {
	return cs.Out
}
