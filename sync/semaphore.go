package sync

import (
	"context"
	"sync"
)

// DynamicSemaphore bounds the number of concurrent stage workers. Its capacity
// can change while workers hold slots; a shrink takes effect as slots are
// released.
type DynamicSemaphore struct {
	capacity uint
	count    uint

	mu   sync.RWMutex
	cond *sync.Cond
}

// NewDynamicSemaphore creates a new DynamicSemaphore with the specified initial size.
func NewDynamicSemaphore(initialCapacity uint) *DynamicSemaphore {
	if initialCapacity == 0 {
		initialCapacity = 1
	}
	ds := &DynamicSemaphore{
		capacity: initialCapacity,
	}
	ds.cond = sync.NewCond(&ds.mu)
	return ds
}

// Acquire blocks until a slot is available.
func (ds *DynamicSemaphore) Acquire() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	for ds.count >= ds.capacity {
		ds.cond.Wait()
	}
	ds.count++
}

// AcquireContext is Acquire that gives up when ctx is done.
func (ds *DynamicSemaphore) AcquireContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		ds.mu.Lock()
		defer ds.mu.Unlock()
		ds.cond.Broadcast()
	})
	defer stop()

	ds.mu.Lock()
	defer ds.mu.Unlock()

	for ds.count >= ds.capacity {
		if err := ctx.Err(); err != nil {
			return err
		}
		ds.cond.Wait()
	}
	ds.count++
	return nil
}

// TryAcquire takes a slot only if one is free right now.
func (ds *DynamicSemaphore) TryAcquire() bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.count >= ds.capacity {
		return false
	}
	ds.count++
	return true
}

// Release releases a semaphore slot, signaling any waiting goroutines.
func (ds *DynamicSemaphore) Release() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.count > 0 {
		ds.count--
		ds.cond.Signal()
	}
}

// Set sets the maximum size of the semaphore.
func (ds *DynamicSemaphore) Set(capacity uint) {
	if capacity == 0 {
		capacity = 1
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.capacity = capacity
	ds.cond.Broadcast()
}

func (ds *DynamicSemaphore) Capacity() uint {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return ds.capacity
}

func (ds *DynamicSemaphore) Count() uint {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return ds.count
}
