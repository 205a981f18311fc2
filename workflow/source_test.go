package workflow

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
	quiet   = 50 * time.Millisecond
)

func newCountingSource() (*Source, *atomic.Int32, *atomic.Int32) {
	var drained, ended atomic.Int32
	s := newSource(func() { drained.Add(1) }, func() { ended.Add(1) })
	return s, &drained, &ended
}

func TestSourceAccept(t *testing.T) {
	t.Run("consumer ready", func(t *testing.T) {
		s, drained, _ := newCountingSource()
		defer s.close()

		ready := make(chan struct{})
		got := make(chan any, 1)
		go func() {
			close(ready)
			got <- <-s.Out()
		}()
		<-ready
		time.Sleep(quiet)

		accepted, err := s.Accept("a")
		require.NoError(t, err)
		assert.True(t, accepted, "a parked consumer takes the chunk immediately")
		assert.Equal(t, "a", <-got)
		assert.False(t, s.State().HasPending)
		assert.Never(t, func() bool { return drained.Load() > 0 }, quiet, tick, "no drained notification for an immediate accept")
	})

	t.Run("consumer busy", func(t *testing.T) {
		s, drained, _ := newCountingSource()
		defer s.close()

		accepted, err := s.Accept("a")
		require.NoError(t, err)
		assert.False(t, accepted)
		assert.True(t, s.State().HasPending)
		assert.Never(t, func() bool { return drained.Load() > 0 }, quiet, tick, "drained before the chunk left the slot")

		_, err = s.Accept("b")
		assert.ErrorIs(t, err, ErrSlotBusy)

		assert.Equal(t, "a", <-s.Out())
		require.Eventually(t, func() bool { return drained.Load() == 1 }, waitFor, tick)
		assert.False(t, s.State().HasPending)
	})
}

func TestSourceDrainedCoalesces(t *testing.T) {
	t.Run("resume while the slot is full", func(t *testing.T) {
		s, drained, _ := newCountingSource()
		defer s.close()

		accepted, err := s.Accept("a")
		require.NoError(t, err)
		require.False(t, accepted)

		s.Resume()
		assert.Never(t, func() bool { return drained.Load() > 0 }, quiet, tick, "resume cannot drain a full slot")

		assert.Equal(t, "a", <-s.Out())
		require.Eventually(t, func() bool { return drained.Load() == 1 }, waitFor, tick)

		s.Resume()
		s.Resume()
		assert.Never(t, func() bool { return drained.Load() != 1 }, quiet, tick, "drained fires once per blocked accept")
	})

	t.Run("resume releases a paused slot", func(t *testing.T) {
		s, drained, _ := newCountingSource()
		defer s.close()

		got := make(chan any, 1)
		go func() {
			got <- <-s.Out()
		}()
		time.Sleep(quiet)

		s.Pause()
		accepted, err := s.Accept("a")
		require.NoError(t, err)
		assert.False(t, accepted, "a paused source reports no capacity")

		select {
		case v := <-got:
			t.Fatalf("paused source delivered %v", v)
		case <-time.After(quiet):
		}

		s.Resume()
		assert.Equal(t, "a", <-got)
		require.Eventually(t, func() bool { return drained.Load() == 1 }, waitFor, tick)
		assert.Never(t, func() bool { return drained.Load() != 1 }, quiet, tick)
	})

	t.Run("one notification per blocked accept", func(t *testing.T) {
		s, drained, _ := newCountingSource()
		defer s.close()

		for i, chunk := range []string{"a", "b", "c"} {
			accepted, err := s.Accept(chunk)
			require.NoError(t, err)
			require.False(t, accepted)
			assert.Equal(t, chunk, <-s.Out())
			want := int32(i + 1)
			require.Eventually(t, func() bool { return drained.Load() == want }, waitFor, tick)
		}
	})
}

func TestSourceSignalEnd(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		s, _, ended := newCountingSource()
		defer s.close()

		s.SignalEnd()
		s.SignalEnd()
		s.SignalEnd()

		_, ok := <-s.Out()
		assert.False(t, ok)
		assert.True(t, s.ReadableEnded())
		require.Eventually(t, func() bool { return ended.Load() == 1 }, waitFor, tick)

		_, err := s.Accept("late")
		assert.ErrorIs(t, err, ErrWriteAfterEnd)
	})

	t.Run("waits for the slot", func(t *testing.T) {
		s, drained, ended := newCountingSource()
		defer s.close()

		accepted, err := s.Accept("a")
		require.NoError(t, err)
		require.False(t, accepted)

		s.SignalEnd()
		assert.False(t, s.ReadableEnded(), "out must stay open while the slot holds a chunk")
		assert.True(t, s.State().EndRequested)

		assert.Equal(t, "a", <-s.Out())
		_, ok := <-s.Out()
		assert.False(t, ok)
		assert.Equal(t, int32(1), drained.Load())
		require.Eventually(t, func() bool { return ended.Load() == 1 }, waitFor, tick)
	})
}

func TestSourceClose(t *testing.T) {
	s, drained, _ := newCountingSource()

	accepted, err := s.Accept("a")
	require.NoError(t, err)
	require.False(t, accepted)

	s.close()
	s.close()
	assert.Never(t, func() bool { return drained.Load() > 0 }, quiet, tick)
}
