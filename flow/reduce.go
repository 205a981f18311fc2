package flow

type ReduceFunction[T any] func(T, T) (T, error)

// Reduce folds its whole input into a single element emitted once the input
// is closed. Nothing is emitted for an empty input or after a failure.
type Reduce[T any] struct {
	stage

	reduceFunc ReduceFunction[T]

	lastReduced T
	seen        bool
}

var _ Stage = (*Reduce[any])(nil)

func NewReduce[T any](name string, reduceFunction ReduceFunction[T]) *Reduce[T] {
	reduce := &Reduce[T]{
		stage:      newStage(name, "reduce"),
		reduceFunc: reduceFunction,
	}
	workersGauge.WithLabelValues(name, "reduce").Set(0)
	parallelismGauge.WithLabelValues(name, "reduce").Set(1)
	go reduce.doStream()

	return reduce
}

func (r *Reduce[T]) doStream() {
	defer func() {
		workersGauge.WithLabelValues(r.name, "reduce").Sub(1)
		r.finish()
	}()
	workersGauge.WithLabelValues(r.name, "reduce").Add(1)
	for elem := range r.in {
		if r.Failed() {
			continue
		}
		element, ok := cast[T](&r.stage, elem)
		if !ok {
			continue
		}
		if !r.seen {
			r.lastReduced, r.seen = element, true
			continue
		}
		reduced, err := r.reduceFunc(r.lastReduced, element)
		if err != nil {
			r.fail(err)
			continue
		}
		r.lastReduced = reduced
	}
	if r.seen {
		r.emit(r.lastReduced)
	}
}
