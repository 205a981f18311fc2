package flow

var (
	ParallelismGauge   = parallelismGauge
	WorkersGauge       = workersGauge
	StageErrorsCounter = stageErrorsCounter
)
