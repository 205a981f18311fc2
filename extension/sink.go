package extension

import (
	"github.com/rs/zerolog"

	"github.com/imishinist/go-streamflow"
)

// LogSink writes every element it receives as a structured log event.
type LogSink struct {
	in     chan any
	logger zerolog.Logger
	done   chan struct{}
}

var _ streamflow.Sink = (*LogSink)(nil)

func NewLogSink(logger zerolog.Logger) *LogSink {
	sink := &LogSink{
		in:     make(chan any),
		logger: logger.With().Str("component", "log_sink").Logger(),
		done:   make(chan struct{}),
	}
	sink.init()
	return sink
}

func (s *LogSink) init() {
	go func() {
		defer close(s.done)
		var n int
		for elem := range s.in {
			n++
			s.logger.Info().Int("seq", n).Interface("element", elem).Msg("element received")
		}
		s.logger.Debug().Int("count", n).Msg("stream closed")
	}()
}

func (s *LogSink) In() chan<- any {
	return s.in
}

// Done is closed once the input has been closed and fully logged.
func (s *LogSink) Done() <-chan struct{} {
	return s.done
}

// DiscardSink consumes and drops every element.
type DiscardSink struct {
	in   chan any
	done chan struct{}
}

var _ streamflow.Sink = (*DiscardSink)(nil)

func NewDiscardSink() *DiscardSink {
	sink := &DiscardSink{
		in:   make(chan any),
		done: make(chan struct{}),
	}
	sink.init()
	return sink
}

func (s *DiscardSink) init() {
	go func() {
		defer close(s.done)
		for range s.in {
		}
	}()
}

func (s *DiscardSink) In() chan<- any {
	return s.in
}

// Done is closed once the input has been closed.
func (s *DiscardSink) Done() <-chan struct{} {
	return s.done
}
