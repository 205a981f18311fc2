package flow

import (
	"sync"

	ssync "github.com/imishinist/go-streamflow/sync"
)

type FilterPredicate[T any] func(T) (bool, error)

type Filter[T any] struct {
	stage

	filterPredicate FilterPredicate[T]
	parallelism     uint

	reloaded chan struct{}
}

var _ Stage = (*Filter[any])(nil)

func NewFilter[T any](name string, filterPredicate FilterPredicate[T], parallelism uint) *Filter[T] {
	if parallelism == 0 {
		parallelism = 1
	}

	filter := &Filter[T]{
		stage:           newStage(name, "filter"),
		filterPredicate: filterPredicate,
		parallelism:     parallelism,
		reloaded:        make(chan struct{}),
	}
	workersGauge.WithLabelValues(name, "filter").Set(0)
	parallelismGauge.WithLabelValues(name, "filter").Set(float64(parallelism))
	go filter.doStream()

	return filter
}

// doStream discards items that don't match the filter predicate.
func (f *Filter[T]) doStream() {
	sem := ssync.NewDynamicSemaphore(f.parallelism)
	defer f.finish()

	go func() {
		for {
			select {
			case <-f.reloaded:
				sem.Set(f.parallelism)
				parallelismGauge.WithLabelValues(f.name, "filter").Set(float64(f.parallelism))
			case <-f.finished:
				return
			}
		}
	}()

	wg := new(sync.WaitGroup)
	for elem := range f.in {
		sem.Acquire()
		if f.Failed() {
			sem.Release()
			continue
		}
		element, ok := cast[T](&f.stage, elem)
		if !ok {
			sem.Release()
			continue
		}
		wg.Add(1)
		workersGauge.WithLabelValues(f.name, "filter").Add(1)
		go func(element T) {
			defer func() {
				workersGauge.WithLabelValues(f.name, "filter").Sub(1)
				wg.Done()
				sem.Release()
			}()

			keep, err := f.filterPredicate(element)
			if err != nil {
				f.fail(err)
				return
			}
			if keep {
				f.emit(element)
			}
		}(element)
	}
	wg.Wait()
}

func (f *Filter[T]) SetParallelism(parallelism uint) {
	f.parallelism = parallelism
	go func() {
		select {
		case f.reloaded <- struct{}{}:
		case <-f.finished:
		}
	}()
}
