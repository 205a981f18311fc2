package flow

import (
	"time"
)

type Batch[T any] struct {
	stage

	maxBatchSize uint
	timeInterval time.Duration

	reloaded chan struct{}
}

var _ Stage = (*Batch[any])(nil)

func NewBatch[T any](name string, maxBatchSize uint, timeInterval time.Duration) *Batch[T] {
	if maxBatchSize == 0 {
		maxBatchSize = 1
	}

	batchFlow := &Batch[T]{
		stage:        newStage(name, "batch"),
		maxBatchSize: maxBatchSize,
		timeInterval: timeInterval,
		reloaded:     make(chan struct{}),
	}
	workersGauge.WithLabelValues(name, "batch").Set(0)
	parallelismGauge.WithLabelValues(name, "batch").Set(float64(1))
	go batchFlow.batchStream()

	return batchFlow
}

func (b *Batch[T]) batchStream() {
	ticker := time.NewTicker(b.timeInterval)
	defer func() {
		ticker.Stop()
		workersGauge.WithLabelValues(b.name, "batch").Sub(1)
		b.finish()
	}()
	workersGauge.WithLabelValues(b.name, "batch").Set(1)

	// If you want to reload the configuration, make the local variables
	// reflect the values only after receiving the value from the "reloaded" channel.
	maxBatchSize := b.maxBatchSize
	timeInterval := b.timeInterval
	batch := make([]T, 0, maxBatchSize)
	for {
		select {
		case <-b.reloaded:
			maxBatchSize = b.maxBatchSize
			timeInterval = b.timeInterval
		case elem, ok := <-b.in:
			if !ok {
				if len(batch) > 0 {
					b.emit(batch)
				}
				return
			}
			element, ok := cast[T](&b.stage, elem)
			if !ok {
				continue
			}

			batch = append(batch, element)
			if len(batch) >= int(maxBatchSize) {
				b.emit(batch)
				batch = make([]T, 0, maxBatchSize)
			}
			ticker.Reset(timeInterval)
		case <-ticker.C:
			if len(batch) > 0 {
				b.emit(batch)
				batch = make([]T, 0, maxBatchSize)
			}
		}
	}
}

func (b *Batch[T]) SetConfig(maxBatchSize uint, timeInterval time.Duration) {
	if maxBatchSize == 0 {
		maxBatchSize = 1
	}
	b.maxBatchSize = maxBatchSize
	b.timeInterval = timeInterval
	go func() {
		select {
		case b.reloaded <- struct{}{}:
		case <-b.finished:
		}
	}()
}
