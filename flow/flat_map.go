package flow

import (
	"context"
	"sync"
)

type FlatMapFunction[T, R any] func(T) ([]R, error)

type FlatMap[T, R any] struct {
	stage

	flatMapFunction FlatMapFunction[T, R]
	parallelism     uint

	// changed is used to signal that the parallelism has changed.
	changed chan uint
}

var _ Stage = (*FlatMap[any, any])(nil)

func NewFlatMap[T, R any](name string, flatMapFunction FlatMapFunction[T, R], parallelism uint) *FlatMap[T, R] {
	if parallelism == 0 {
		parallelism = 1
	}
	flatMap := &FlatMap[T, R]{
		stage:           newStage(name, "flat_map"),
		flatMapFunction: flatMapFunction,
		parallelism:     parallelism,
		changed:         make(chan uint),
	}
	workersGauge.WithLabelValues(name, "flat_map").Set(0)
	parallelismGauge.WithLabelValues(name, "flat_map").Set(float64(parallelism))
	go flatMap.doStream()
	return flatMap
}

func (fm *FlatMap[T, R]) doStream() {
	// channels for terminating workers individually
	quit := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		close(quit)
		fm.finish()
	}()

	wg := new(sync.WaitGroup)
	parallelism := fm.parallelism
	for i := 0; i < int(parallelism); i++ {
		wg.Add(1)
		go fm.work(wg, quit)
	}

	go func() {
		// reload configurations sequentially
		for {
			var newParallelism uint
			select {
			case newParallelism = <-fm.changed:
			case <-ctx.Done():
				return
			}
			if newParallelism == 0 {
				newParallelism = 1
			}
			if newParallelism > parallelism {
				for i := parallelism; i < newParallelism; i++ {
					wg.Add(1)
					go fm.work(wg, quit)
				}
			} else {
				for i := parallelism; i > newParallelism; i-- {
					select {
					case quit <- struct{}{}:
					case <-ctx.Done():
						return
					}
				}
			}
			parallelism = newParallelism
			parallelismGauge.WithLabelValues(fm.name, "flat_map").Set(float64(parallelism))
		}
	}()

	wg.Wait()
}

func (fm *FlatMap[T, R]) work(wg *sync.WaitGroup, quit <-chan struct{}) {
	defer func() {
		workersGauge.WithLabelValues(fm.name, "flat_map").Sub(1)
		wg.Done()
	}()

	workersGauge.WithLabelValues(fm.name, "flat_map").Add(1)
	for v := range orDone(quit, fm.in) {
		// keep draining so upstream is never stuck on a failed stage
		if fm.Failed() {
			continue
		}
		element, ok := cast[T](&fm.stage, v)
		if !ok {
			continue
		}
		result, err := fm.flatMapFunction(element)
		if err != nil {
			fm.fail(err)
			continue
		}
		for _, r := range result {
			fm.emit(r)
		}
	}
}

func (fm *FlatMap[T, R]) SetParallelism(parallelism uint) {
	go func() {
		select {
		case fm.changed <- parallelism:
		case <-fm.finished:
		}
	}()
}
