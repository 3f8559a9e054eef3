package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every collector exported by the service.
const Namespace = "stallmarket"

// Cron job outcomes, used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// CronJobMetrics records maintenance job runs. A nil value or one built
// without a registerer drops every observation.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

// NewCronJobMetrics registers the cron job collectors on reg.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of cron job runs.",
			Buckets:   []float64{.05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by outcome. skipped means another worker held the lease.",
		}, []string{"job", "outcome"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per job.",
		}, []string{"job"}),
		now: time.Now,
	}
	reg.MustRegister(m.duration, m.runs, m.lastSuccess)
	return m
}

func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess counts a successful run and stamps the job's last success time.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c.count(job, OutcomeSuccess) {
		c.lastSuccess.WithLabelValues(normalizeLabel(job)).Set(float64(c.now().Unix()))
	}
}

func (c *CronJobMetrics) IncFailure(job string) { c.count(job, OutcomeFailure) }

func (c *CronJobMetrics) IncSkipped(job string) { c.count(job, OutcomeSkipped) }

func (c *CronJobMetrics) count(job, outcome string) bool {
	if c == nil || c.runs == nil {
		return false
	}
	c.runs.WithLabelValues(normalizeLabel(job), outcome).Inc()
	return true
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
