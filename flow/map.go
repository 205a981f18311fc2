package flow

import (
	"sync"

	ssync "github.com/imishinist/go-streamflow/sync"
)

type MapFunction[T, R any] func(T) (R, error)

type Map[T, R any] struct {
	stage

	mapFunction MapFunction[T, R]
	parallelism uint

	reloaded chan struct{}
}

var _ Stage = (*Map[any, any])(nil)

func NewMap[T, R any](name string, mapFunction MapFunction[T, R], parallelism uint) *Map[T, R] {
	if parallelism == 0 {
		parallelism = 1
	}
	mapFlow := &Map[T, R]{
		stage:       newStage(name, "map"),
		mapFunction: mapFunction,
		parallelism: parallelism,
		reloaded:    make(chan struct{}),
	}
	workersGauge.WithLabelValues(name, "map").Set(0)
	parallelismGauge.WithLabelValues(name, "map").Set(float64(parallelism))
	go mapFlow.doStream()

	return mapFlow
}

func (m *Map[T, R]) doStream() {
	sem := ssync.NewDynamicSemaphore(m.parallelism)
	defer m.finish()

	parallelismGauge.WithLabelValues(m.name, "map").Set(float64(m.parallelism))
	go func() {
		for {
			select {
			case <-m.reloaded:
				sem.Set(m.parallelism)
				parallelismGauge.WithLabelValues(m.name, "map").Set(float64(m.parallelism))
			case <-m.finished:
				return
			}
		}
	}()

	wg := new(sync.WaitGroup)
	for elem := range m.in {
		sem.Acquire()
		// a failure may have been recorded while we waited for the slot
		if m.Failed() {
			sem.Release()
			continue
		}
		element, ok := cast[T](&m.stage, elem)
		if !ok {
			sem.Release()
			continue
		}
		wg.Add(1)
		workersGauge.WithLabelValues(m.name, "map").Add(1)
		go func(element T) {
			defer func() {
				workersGauge.WithLabelValues(m.name, "map").Sub(1)
				wg.Done()
				sem.Release()
			}()

			result, err := m.mapFunction(element)
			if err != nil {
				m.fail(err)
				return
			}
			m.emit(result)
		}(element)
	}

	wg.Wait()
}

func (m *Map[T, R]) SetParallelism(parallelism uint) {
	m.parallelism = parallelism
	go func() {
		select {
		case m.reloaded <- struct{}{}:
		case <-m.finished:
		}
	}()
}
