package extension_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ext "github.com/imishinist/go-streamflow/extension"
	"github.com/imishinist/go-streamflow/flow"
)

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sink did not finish")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := ext.NewLogSink(zerolog.New(&buf).Level(zerolog.InfoLevel))

	source := ext.NewSliceSource([]string{"a", "b"})
	source.Via(flow.NewPassThrough("log")).To(sink)
	waitDone(t, sink.Done())

	var events []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		event := map[string]any{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}
	require.Len(t, events, 2)
	for i, want := range []string{"a", "b"} {
		assert.Equal(t, want, events[i]["element"])
		assert.Equal(t, float64(i+1), events[i]["seq"])
		assert.Equal(t, "log_sink", events[i]["component"])
		assert.Equal(t, "element received", events[i]["message"])
	}
}

func TestDiscardSink(t *testing.T) {
	sink := ext.NewDiscardSink()
	ext.NewSliceSource([]int{1, 2, 3}).Via(flow.NewPassThrough("discard")).To(sink)
	waitDone(t, sink.Done())
}
