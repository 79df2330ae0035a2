package statistics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names one step of the statement pipeline.
type Stage string

const (
	StageParse   = Stage("parse")
	StageRoute   = Stage("route")
	StageRewrite = Stage("rewrite")
	StageExecute = Stage("execute")
	StageMerge   = Stage("merge")
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "shardcore_stage_duration_seconds",
		Help: "Duration of one pipeline stage in seconds",
		Buckets: []float64{
			0.00001, // 10µs
			0.0001,  // 100µs
			0.0005,  // 500µs
			0.001,   // 1ms
			0.005,   // 5ms
			0.01,    // 10ms
			0.05,    // 50ms
			0.1,     // 100ms
			0.5,     // 500ms
			1.0,     // 1s
			5.0,     // 5s
		},
	}, []string{"stage"})

	routeUnits = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shardcore_route_units",
		Help:    "Number of route units per statement",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
	})

	statementTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shardcore_statements_total",
		Help: "Total number of statements routed, by kind and route shape",
	}, []string{"kind", "shape"})

	errorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shardcore_errors_total",
		Help: "Total number of failed statements, by error code",
	}, []string{"code"})
)

const (
	ShapeSingle    = "single"
	ShapeMulti     = "multi"
	ShapeBroadcast = "broadcast"
	ShapeForced    = "forced"
)

// RecordStartTime marks the start of stage for the holder's statement.
func RecordStartTime(stage Stage, t time.Time, h StatHolder) {
	if h != nil {
		h.RecordStartTime(stage, t)
	}
}

// RecordFinishedStage observes the duration of stage, if it was started.
func RecordFinishedStage(stage Stage, t time.Time, h StatHolder) {
	if h == nil {
		return
	}
	st := h.GetTimeData()
	if st == nil {
		return
	}
	start, ok := st.take(stage)
	if !ok {
		return
	}
	stageDuration.WithLabelValues(string(stage)).Observe(t.Sub(start).Seconds())
}

// RecordRoute counts a routed statement.
func RecordRoute(kind string, shape string, units int) {
	statementTotal.WithLabelValues(kind, shape).Inc()
	routeUnits.Observe(float64(units))
}

func RecordError(code string) {
	errorTotal.WithLabelValues(code).Inc()
}

func StatementCounter(kind string, shape string) prometheus.Counter {
	return statementTotal.WithLabelValues(kind, shape)
}

func ErrorCounter(code string) prometheus.Counter {
	return errorTotal.WithLabelValues(code)
}
