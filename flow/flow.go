package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	parallelismGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamflow_stage_parallelism",
		Help: "The number of parallelism for stage",
	}, []string{"name", "type"})

	workersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamflow_stage_workers",
		Help: "The number of workers for stage",
	}, []string{"name", "type"})

	stageErrorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamflow_stage_errors_total",
		Help: "The number of failures raised by stage",
	}, []string{"name", "type"})
)
