package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"autoshorts/internal/domain/model"
	derror "autoshorts/internal/error"
)

func init() {
	register(jobsTotal, stageDuration, catchUpRaisedTotal)
}

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoshorts_jobs_total",
			Help: "Finished generation jobs, by result, category and origin.",
		},
		[]string{"result", "category", "origin"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autoshorts_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"stage", "outcome"},
	)

	catchUpRaisedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoshorts_catchup_raised_total",
			Help: "Catch-up tasks raised by the scheduler, by slot.",
		},
		[]string{"slot"},
	)
)

// Pipeline records stage timings and job results.
type Pipeline struct{}

func (Pipeline) StageDone(stage model.Stage, d time.Duration, err error) {
	stageDuration.WithLabelValues(norm(string(stage)), outcome(err, derror.KindOf(err).String())).Observe(d.Seconds())
}

func (Pipeline) JobFinished(job *model.GenerationJob) {
	result := "ready"
	if job.Stage == model.StageFailed {
		result = "failed"
	}
	jobsTotal.WithLabelValues(result, norm(string(job.Category)), norm(string(job.Origin))).Inc()
}

// Scheduler counts raised catch-up tasks.
type Scheduler struct{}

func (Scheduler) Raised(slot model.Slot) {
	catchUpRaisedTotal.WithLabelValues(norm(string(slot))).Inc()
}
