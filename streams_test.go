package streamflow

import (
	"context"
	"testing"
)

type input struct{}

func (i *input) In() chan<- any {
	panic("dummy implementation")
}

type output struct{}

func (o *output) Out() <-chan any {
	panic("dummy implementation")
}

type source struct {
	output
}

func (s *source) Via(f Flow) Flow {
	panic("dummy implementation")
}

type flow struct {
	input
	output
}

func (f *flow) Via(f2 Flow) Flow {
	panic("dummy implementation")
}

func (f *flow) To(s Sink) {
	panic("dummy implementation")
}

type terminal struct {
	output
}

func (t *terminal) Errors() <-chan error {
	panic("dummy implementation")
}

func (t *terminal) Finished() <-chan struct{} {
	panic("dummy implementation")
}

type deferred struct{}

func (d *deferred) Await(ctx context.Context) (Terminal, error) {
	panic("dummy implementation")
}

func TestStreamInterface(t *testing.T) {
	var _ Source = (*source)(nil)
	var _ Flow = (*flow)(nil)
	var _ Sink = (*input)(nil)
	var _ Terminal = (*terminal)(nil)
	var _ Deferred = (*deferred)(nil)
}
