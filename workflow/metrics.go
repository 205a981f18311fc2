package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamflow_workflow_writes_total",
		Help: "The number of chunks admitted by adapter",
	}, []string{"name"})

	backpressureCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamflow_workflow_backpressure_total",
		Help: "The number of chunks the pipeline could not take immediately",
	}, []string{"name"})

	bufferedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamflow_workflow_buffered_output",
		Help: "The size of output waiting to be read",
	}, []string{"name"})

	errorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamflow_workflow_errors_total",
		Help: "The number of errors surfaced by adapter",
	}, []string{"name", "kind"})

	phaseGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamflow_workflow_phase",
		Help: "The lifecycle phase of adapter",
	}, []string{"name"})
)

func errorKind(err error) string {
	switch {
	case IsConfiguration(err):
		return "configuration"
	case IsProtocol(err):
		return "protocol"
	case hasCode(err, CodeInvalidEncoding):
		return "encoding"
	default:
		return "pipeline"
	}
}
