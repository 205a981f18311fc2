package flow_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func ingestSlice[T any](in chan any, items []T) {
	for _, item := range items {
		in <- item
	}
}

func ingestDeferred[T any](in chan any, item T, wait time.Duration) {
	time.Sleep(wait)
	in <- item
}

func closeDeferred(in chan any, wait time.Duration) {
	time.Sleep(wait)
	close(in)
}

func readSlice[T any](ch <-chan any) []T {
	var result []T
	for e := range ch {
		result = append(result, e.(T))
	}
	return result
}

type metric struct {
	desc  *prometheus.Desc
	value *dto.Metric
}

func readMetrics(t *testing.T, c prometheus.Collector) []metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	c.Collect(ch)
	close(ch)

	var metrics []metric
	for m := range ch {
		value := new(dto.Metric)
		require.NoError(t, m.Write(value))
		metrics = append(metrics, metric{desc: m.Desc(), value: value})
	}
	return metrics
}
