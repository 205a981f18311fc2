package workflow

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/imishinist/go-streamflow"
)

const tracerName = "github.com/imishinist/go-streamflow/workflow"

// Initializer builds the inner pipeline on top of src and returns its last
// stage. It runs once, synchronously, on the first write, and receives that
// write's chunk and encoding as given to Write; the chunk itself still flows
// through src. It must not call back into the adapter.
type Initializer func(src *Source, first any, encoding string) streamflow.Terminal

// Phase is the teardown progress of an adapter. It only moves forward.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseInputEnding
	PhaseWaitingPipelineFinish
	PhaseDestroyed
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseInputEnding:
		return "input_ending"
	case PhaseWaitingPipelineFinish:
		return "waiting_pipeline_finish"
	case PhaseDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// PendingWrite is the single chunk admitted but not yet acknowledged.
type PendingWrite struct {
	Chunk      any
	Encoding   string
	onComplete func(error)
}

// State is a snapshot of the adapter bookkeeping.
type State struct {
	Initialized    bool
	Terminal       streamflow.Terminal
	PendingWrite   *PendingWrite
	PushInFlight   bool
	NeedsMoreInput bool
	Phase          Phase
}

// Adapter exposes an inner pipeline as a single duplex stream. Chunks written
// to it are handed one at a time to a Source feeding the pipeline, and the
// pipeline's output is buffered for the read side.
//
// A write is acknowledged only once the pipeline actually took the chunk, so
// a slow pipeline or a slow reader pushes back on the writer.
type Adapter struct {
	id     string
	init   Initializer
	opts   options
	logger zerolog.Logger
	span   trace.Span

	source *Source

	mu               sync.Mutex
	state            State
	readable         *readable
	initErr          error
	firstErr         error
	endCalled        bool
	endDeferred      bool
	terminalFinished bool
	outputClosed     bool
	destroyErr       error
	changed          chan struct{}

	errs       chan error
	finished   chan struct{}
	finishOnce sync.Once
	done       chan struct{}

	in      chan any
	inOnce  sync.Once
	out     chan any
	outOnce sync.Once
}

var _ streamflow.Flow = (*Adapter)(nil)

// New creates an adapter whose pipeline will be built by init.
func New(init Initializer, opts ...Option) *Adapter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.applyDefaults()

	id := uuid.NewString()
	a := &Adapter{
		id:       id,
		init:     init,
		opts:     o,
		logger:   o.logger.With().Str("component", "workflow").Str("adapter_id", id).Str("name", o.name).Logger(),
		readable: newReadable(o.mode, o.highWaterMark),
		changed:  make(chan struct{}),
		errs:     make(chan error, o.errorBuffer),
		finished: make(chan struct{}),
		done:     make(chan struct{}),
		in:       make(chan any),
		out:      make(chan any),
	}
	a.source = newSource(a.onDrained, a.onSourceEnded)
	_, a.span = o.tracerProvider.Tracer(tracerName).Start(context.Background(), "workflow.adapter",
		trace.WithAttributes(
			attribute.String("adapter.id", id),
			attribute.String("adapter.name", o.name),
			attribute.String("adapter.buffering_mode", o.mode.String()),
		))
	phaseGauge.WithLabelValues(o.name).Set(float64(PhaseActive))
	return a
}

// effects collects callbacks to run once the adapter lock is released.
type effects []func()

func (fx *effects) add(fn func()) {
	*fx = append(*fx, fn)
}

func (fx effects) run() {
	for _, fn := range fx {
		fn()
	}
}

func (a *Adapter) ID() string {
	return a.id
}

// Write admits chunk. onComplete is called once the pipeline has taken it;
// no other write is accepted before that.
func (a *Adapter) Write(chunk any, encoding string, onComplete func(error)) error {
	var fx effects
	a.mu.Lock()
	err := a.write(chunk, encoding, onComplete, &fx)
	a.mu.Unlock()
	fx.run()
	return err
}

func (a *Adapter) write(chunk any, encoding string, onComplete func(error), fx *effects) error {
	switch {
	case a.state.Phase == PhaseDestroyed:
		return ErrDestroyed
	case a.initErr != nil:
		return a.initErr
	case a.endCalled:
		return protocolError(ErrWriteAfterEnd)
	case a.state.PendingWrite != nil:
		return protocolError(ErrPendingWrite)
	}

	if !a.state.Initialized {
		if err := a.initialize(chunk, encoding); err != nil {
			a.initErr = err
			fx.add(func() { a.emitError(err) })
			return err
		}
	}

	if a.opts.mode == ByteMode {
		decoded, err := decodeChunk(chunk, encoding)
		if err != nil {
			return err
		}
		chunk = decoded
	}

	a.state.PendingWrite = &PendingWrite{Chunk: chunk, Encoding: encoding, onComplete: onComplete}
	writesCounter.WithLabelValues(a.opts.name).Inc()

	rs := a.readable
	if !a.state.PushInFlight && (a.state.NeedsMoreInput || rs.needReadable || rs.belowHighWaterMark()) {
		a.handoff(fx)
	} else {
		a.state.NeedsMoreInput = true
	}
	return nil
}

func (a *Adapter) initialize(first any, encoding string) (err error) {
	var t streamflow.Terminal
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = configurationError(fmt.Errorf("initializer panicked: %v", r))
			}
		}()
		t = a.init(a.source, first, encoding)
	}()
	if err != nil {
		return err
	}
	if isNil(t) {
		return configurationError(ErrNoTerminal)
	}
	if _, ok := t.(streamflow.Deferred); ok {
		return configurationError(ErrAsyncInit)
	}

	a.state.Terminal = t
	a.state.Initialized = true
	go a.forwardOutput(t)
	go a.forwardErrors(t)
	go a.awaitFinish(t)

	a.span.AddEvent("pipeline initialized")
	a.logger.Debug().Msg("pipeline initialized")
	return nil
}

func isNil(t streamflow.Terminal) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func decodeChunk(chunk any, encoding string) (any, error) {
	s, ok := chunk.(string)
	if !ok {
		return chunk, nil
	}
	switch strings.ToLower(encoding) {
	case "", "utf8", "utf-8":
		return []byte(s), nil
	case "hex":
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, encodingError(encoding, err)
		}
		return b, nil
	case "base64":
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, encodingError(encoding, err)
		}
		return b, nil
	default:
		return nil, encodingError(encoding, errors.New("unknown encoding"))
	}
}

// handoff gives the pending chunk to the source.
func (a *Adapter) handoff(fx *effects) {
	pw := a.state.PendingWrite
	a.state.PushInFlight = true
	a.state.NeedsMoreInput = false

	accepted, err := a.source.Accept(pw.Chunk)
	if err != nil {
		perr := protocolError(err)
		a.state.PushInFlight = false
		a.state.PendingWrite = nil
		if pw.onComplete != nil {
			fx.add(func() { pw.onComplete(perr) })
		}
		fx.add(func() { a.emitError(perr) })
		return
	}
	if accepted {
		a.afterPushed(fx)
		return
	}
	backpressureCounter.WithLabelValues(a.opts.name).Inc()
	a.logger.Debug().Msg("pipeline busy, waiting for drain")
}

// afterPushed acknowledges the pending write and hands off the next one if
// the read side still wants data.
func (a *Adapter) afterPushed(fx *effects) {
	pw := a.state.PendingWrite
	a.state.PushInFlight = false
	a.state.PendingWrite = nil
	if pw != nil && pw.onComplete != nil {
		fx.add(func() { pw.onComplete(nil) })
	}

	if a.endDeferred {
		a.endDeferred = false
		a.signalEnd(fx)
		return
	}
	if a.readable.needReadable || a.readable.belowHighWaterMark() {
		a.demand(fx)
	}
}

// demand records that the read side wants more data. With a push in flight
// the request is passed on to the source as a resume, which coalesces with
// the slot's own drained notification.
func (a *Adapter) demand(fx *effects) {
	if a.state.PendingWrite != nil && !a.state.PushInFlight {
		a.handoff(fx)
		return
	}
	if a.state.PushInFlight {
		fx.add(a.source.Resume)
	}
	a.state.NeedsMoreInput = true
}

func (a *Adapter) onDrained() {
	var fx effects
	a.mu.Lock()
	if a.state.PushInFlight && a.state.PendingWrite != nil {
		a.afterPushed(&fx)
	}
	a.mu.Unlock()
	fx.run()
}

func (a *Adapter) onSourceEnded() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger.Debug().Msg("input ended")
	a.broadcast()
}

// End closes the write side. The pipeline sees end-of-input exactly once,
// after the pending write, if any, has been taken.
func (a *Adapter) End() {
	var fx effects
	a.mu.Lock()
	if a.state.Phase != PhaseDestroyed {
		a.end(&fx)
	}
	a.mu.Unlock()
	fx.run()
}

func (a *Adapter) end(fx *effects) {
	if a.endCalled {
		return
	}
	a.endCalled = true
	a.setPhase(PhaseInputEnding)
	if a.state.PendingWrite != nil {
		a.endDeferred = true
		return
	}
	a.signalEnd(fx)
}

// forceEnd ends the input without waiting for read demand. A write still
// waiting for demand is dropped with ErrDestroyed; one already in the slot is
// left to drain, after which the deferred end fires.
func (a *Adapter) forceEnd(fx *effects) {
	a.end(fx)
	if !a.endDeferred || a.state.PushInFlight {
		return
	}
	pw := a.state.PendingWrite
	a.state.PendingWrite = nil
	a.state.NeedsMoreInput = false
	a.endDeferred = false
	if pw != nil && pw.onComplete != nil {
		fx.add(func() { pw.onComplete(ErrDestroyed) })
	}
	a.logger.Debug().Msg("parked write dropped by destroy")
	a.signalEnd(fx)
}

func (a *Adapter) signalEnd(fx *effects) {
	if !a.state.Initialized {
		// nothing was written: there is no pipeline to wait for
		a.readable.end()
		a.outputClosed = true
		fx.add(a.finishWrite)
	}
	fx.add(a.source.SignalEnd)
	a.logger.Debug().Msg("end of input requested")
}

// finishWrite completes the write side once.
func (a *Adapter) finishWrite() {
	a.finishOnce.Do(func() {
		close(a.finished)
		a.logger.Debug().Msg("write side finished")
	})
}

func (a *Adapter) forwardOutput(t streamflow.Terminal) {
	for item := range t.Out() {
		a.push(item)
	}
	a.mu.Lock()
	a.readable.end()
	a.outputClosed = true
	a.broadcast()
	a.mu.Unlock()
}

func (a *Adapter) push(item any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.NeedsMoreInput = false
	a.readable.push(item)
	bufferedGauge.WithLabelValues(a.opts.name).Set(float64(a.readable.length))
}

func (a *Adapter) forwardErrors(t streamflow.Terminal) {
	errs := t.Errors()
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				a.emitError(err)
			}
		case <-a.done:
			return
		}
	}
}

func (a *Adapter) awaitFinish(t streamflow.Terminal) {
	select {
	case <-t.Finished():
	case <-a.done:
		return
	}
	a.mu.Lock()
	a.terminalFinished = true
	a.broadcast()
	a.mu.Unlock()

	a.logger.Debug().Msg("pipeline finished")
	a.finishWrite()
}

func (a *Adapter) emitError(err error) {
	a.mu.Lock()
	if a.firstErr == nil {
		a.firstErr = err
	}
	a.mu.Unlock()

	errorsCounter.WithLabelValues(a.opts.name, errorKind(err)).Inc()
	a.span.RecordError(err)
	a.logger.Error().Err(err).Msg("stream error")
	if a.opts.onError != nil {
		a.opts.onError(err)
	}
	select {
	case a.errs <- err:
	default:
		a.logger.Warn().Err(err).Msg("error channel full, error not queued")
	}
}

// Read returns up to sizeHint units of buffered output (items in object mode,
// bytes in byte mode; whole items only). It never blocks: with nothing
// buffered it registers demand and returns no items. io.EOF is returned once
// the output has ended and been fully read.
func (a *Adapter) Read(sizeHint int) ([]any, error) {
	items, _, err := a.read(sizeHint)
	return items, err
}

// ReadContext is Read that waits for output.
func (a *Adapter) ReadContext(ctx context.Context, sizeHint int) ([]any, error) {
	for {
		items, signal, err := a.read(sizeHint)
		if err != nil || len(items) > 0 {
			return items, err
		}
		select {
		case <-signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (a *Adapter) read(sizeHint int) ([]any, <-chan struct{}, error) {
	var fx effects
	a.mu.Lock()
	rs := a.readable
	if rs.flowing {
		a.mu.Unlock()
		return nil, nil, protocolError(ErrFlowing)
	}

	items := rs.take(sizeHint)
	if len(items) == 0 {
		if rs.ended {
			rs.endEmitted = true
			a.mu.Unlock()
			return nil, nil, io.EOF
		}
		rs.needReadable = true
	}
	if !rs.ended && a.state.Phase != PhaseDestroyed && (rs.needReadable || rs.belowHighWaterMark()) {
		a.demand(&fx)
	}
	bufferedGauge.WithLabelValues(a.opts.name).Set(float64(rs.length))
	signal := rs.signal
	a.mu.Unlock()

	fx.run()
	return items, signal, nil
}

// Out switches the read side to flowing mode and returns the output channel.
// It is closed after the last item.
func (a *Adapter) Out() <-chan any {
	a.outOnce.Do(func() {
		a.mu.Lock()
		a.readable.flowing = true
		a.mu.Unlock()
		go a.pump()
	})
	return a.out
}

func (a *Adapter) pump() {
	defer func() {
		close(a.out)
		if a.opts.autoDestroy {
			go func() {
				if err := a.Close(context.Background()); err != nil {
					a.logger.Debug().Err(err).Msg("auto destroy")
				}
			}()
		}
	}()

	for {
		var fx effects
		a.mu.Lock()
		rs := a.readable
		item, ok := rs.shift()
		if !ok {
			if rs.ended {
				rs.endEmitted = true
				a.mu.Unlock()
				return
			}
			rs.needReadable = true
			if a.state.Phase != PhaseDestroyed {
				a.demand(&fx)
			}
			signal := rs.signal
			a.mu.Unlock()
			fx.run()

			<-signal
			continue
		}
		if a.state.Phase != PhaseDestroyed && rs.belowHighWaterMark() {
			a.demand(&fx)
		}
		bufferedGauge.WithLabelValues(a.opts.name).Set(float64(rs.length))
		a.mu.Unlock()
		fx.run()

		a.out <- item
	}
}

// In returns a channel driving the write side: each element is written and
// acknowledged before the next is received. Closing it ends the input.
func (a *Adapter) In() chan<- any {
	a.inOnce.Do(func() {
		go a.consume()
	})
	return a.in
}

func (a *Adapter) consume() {
	ack := make(chan error, 1)
	for chunk := range a.in {
		if err := a.Write(chunk, "", func(err error) { ack <- err }); err != nil {
			a.logger.Debug().Err(err).Msg("chunk rejected")
			continue
		}
		select {
		case err := <-ack:
			if err != nil {
				a.logger.Debug().Err(err).Msg("chunk failed")
			}
		case <-a.done:
		}
	}
	a.End()
}

func (a *Adapter) Via(flow streamflow.Flow) streamflow.Flow {
	go a.transmit(flow)
	return flow
}

func (a *Adapter) To(sink streamflow.Sink) {
	a.transmit(sink)
}

func (a *Adapter) transmit(inlet streamflow.Input) {
	defer close(inlet.In())
	for element := range a.Out() {
		inlet.In() <- element
	}
}

// Destroy advances teardown by one step and reports whether the adapter is
// destroyed. Until it returns true the caller is expected to call it again:
//
//   - while the input is still open, it ends it and returns false; a write
//     still waiting for read demand is completed with ErrDestroyed;
//   - while the pipeline has not finished and flushed its output, it returns
//     false without releasing anything;
//   - otherwise it releases the adapter and calls onDestroyed with err.
//
// A pipeline that never finishes stalls teardown forever; Close bounds the
// wait with a context.
func (a *Adapter) Destroy(err error, onDestroyed func(error)) bool {
	var fx effects
	a.mu.Lock()
	if a.state.Phase == PhaseDestroyed {
		a.mu.Unlock()
		return true
	}

	if !a.source.ReadableEnded() {
		a.forceEnd(&fx)
		a.mu.Unlock()
		fx.run()
		return false
	}

	a.setPhase(PhaseWaitingPipelineFinish)
	if a.state.Terminal != nil && !(a.terminalFinished && a.outputClosed) {
		a.mu.Unlock()
		return false
	}

	a.setPhase(PhaseDestroyed)
	a.release(err)
	a.mu.Unlock()

	a.finishWrite()
	if onDestroyed != nil {
		onDestroyed(err)
	}
	return true
}

func (a *Adapter) release(err error) {
	a.destroyErr = err
	a.source.close()
	a.state.Terminal = nil
	a.state.PendingWrite = nil
	a.state.PushInFlight = false
	a.readable.end()
	close(a.done)

	if err != nil {
		a.span.RecordError(err)
	}
	a.span.End()
	a.logger.Debug().Msg("destroyed")
}

// Close drives Destroy until the adapter is destroyed or ctx is done. It
// returns the first error surfaced by the adapter, if any.
func (a *Adapter) Close(ctx context.Context) error {
	for {
		a.mu.Lock()
		changed := a.changed
		a.mu.Unlock()

		if a.Destroy(nil, nil) {
			return a.Err()
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Adapter) setPhase(p Phase) {
	if p <= a.state.Phase {
		return
	}
	a.state.Phase = p
	phaseGauge.WithLabelValues(a.opts.name).Set(float64(p))
	a.span.AddEvent("phase", trace.WithAttributes(attribute.String("phase", p.String())))
	a.logger.Debug().Str("phase", p.String()).Msg("phase changed")
	a.broadcast()
}

func (a *Adapter) broadcast() {
	close(a.changed)
	a.changed = make(chan struct{})
}

// Errors delivers every error surfaced by the adapter: configuration and
// protocol errors of its own, and pipeline errors as raised.
func (a *Adapter) Errors() <-chan error {
	return a.errs
}

// Err returns the first error surfaced by the adapter.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.firstErr
}

// Finished is closed when the write side has completed.
func (a *Adapter) Finished() <-chan struct{} {
	return a.finished
}

// Done is closed once the adapter is destroyed.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}

// DestroyErr returns the error passed to the Destroy call that completed.
func (a *Adapter) DestroyErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyErr
}

// Buffered returns the size of output waiting to be read.
func (a *Adapter) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readable.length
}

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.state
	if s.PendingWrite != nil {
		pw := *s.PendingWrite
		s.PendingWrite = &pw
	}
	return s
}

// Source returns the inner source feeding the pipeline.
func (a *Adapter) Source() *Source {
	return a.source
}
