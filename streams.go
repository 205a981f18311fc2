package streamflow

import "context"

// Input is an interface for a stream input.
type Input interface {
	In() chan<- any
}

// Output is an interface for a stream output.
type Output interface {
	Out() <-chan any
}

// Source is an interface for a stream source.
type Source interface {
	Output
	Via(Flow) Flow
}

// Flow is an interface for a stream flow.
type Flow interface {
	Input
	Output
	Via(Flow) Flow
	To(Sink)
}

// Sink is an interface for a stream sink.
type Sink interface {
	Input
}

// Terminal is the last stage of a pipeline as seen from whoever consumes it.
//
// Every produced item is received from Out, and Out is closed after the last
// one. Errors carries failures raised anywhere in the pipeline. Finished is
// closed once the stage has consumed all of its input.
type Terminal interface {
	Output
	Errors() <-chan error
	Finished() <-chan struct{}
}

// Deferred is a terminal whose construction has not completed yet.
type Deferred interface {
	Await(ctx context.Context) (Terminal, error)
}
