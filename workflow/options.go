package workflow

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// BufferingMode selects how the read side measures its buffer.
type BufferingMode int

const (
	// ObjectMode counts buffered items.
	ObjectMode BufferingMode = iota
	// ByteMode counts buffered bytes; string chunks are decoded to []byte.
	ByteMode
)

const (
	defaultObjectHighWaterMark = 16
	defaultByteHighWaterMark   = 16 * 1024
	defaultErrorBuffer         = 16
)

func (m BufferingMode) String() string {
	switch m {
	case ObjectMode:
		return "object"
	case ByteMode:
		return "byte"
	default:
		return "unknown"
	}
}

type options struct {
	name           string
	mode           BufferingMode
	highWaterMark  int
	autoDestroy    bool
	errorBuffer    int
	logger         zerolog.Logger
	tracerProvider trace.TracerProvider
	onError        func(error)
}

// Option configures an Adapter.
type Option func(*options)

func defaultOptions() options {
	return options{
		name:        "workflow",
		mode:        ObjectMode,
		errorBuffer: defaultErrorBuffer,
		logger:      zerolog.Nop(),
	}
}

func (o *options) applyDefaults() {
	if o.highWaterMark <= 0 {
		if o.mode == ByteMode {
			o.highWaterMark = defaultByteHighWaterMark
		} else {
			o.highWaterMark = defaultObjectHighWaterMark
		}
	}
	if o.errorBuffer <= 0 {
		o.errorBuffer = defaultErrorBuffer
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
}

// WithName labels the adapter in logs, metrics and traces.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithBufferingMode(mode BufferingMode) Option {
	return func(o *options) { o.mode = mode }
}

// WithHighWaterMark sets the read buffer threshold above which no further
// chunk is handed to the pipeline until the reader catches up.
func WithHighWaterMark(n int) Option {
	return func(o *options) { o.highWaterMark = n }
}

// WithAutoDestroy makes the adapter close itself once its output has been
// fully delivered through Out.
func WithAutoDestroy(enabled bool) Option {
	return func(o *options) { o.autoDestroy = enabled }
}

// WithErrorBuffer sets the capacity of the Errors channel.
func WithErrorBuffer(n int) Option {
	return func(o *options) { o.errorBuffer = n }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithErrorHandler registers fn to be called once per surfaced error.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}
