// Package metrics writes run results as a node-exporter textfile.
package metrics

import (
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/raoulx24/wandering-echo/internal/backup"
)

const namespace = "wandering_echo"

// Textfile keeps the gauges of the last run and rewrites path after each
// one. Counters accumulate for the life of the process.
type Textfile struct {
	path     string
	registry *prometheus.Registry

	lastRun   prometheus.Gauge
	duration  prometheus.Gauge
	delivered prometheus.Gauge
	units     *prometheus.GaugeVec
	unitTime  *prometheus.GaugeVec
	runs      *prometheus.CounterVec
}

func NewTextfile(path string) *Textfile {
	t := &Textfile{
		path:     path,
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last backup run finished.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last backup run.",
		}),
		delivered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "delivered_bytes",
			Help:      "Bytes streamed to the remote destination in the last run.",
		}),
		units: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "units",
			Help:      "Units of the last run by result.",
		}, []string{"result"}),
		unitTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Time spent on each subvolume in the last run.",
		}, []string{"subvolume"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Backup runs by outcome.",
		}, []string{"outcome"}),
	}
	t.registry.MustRegister(t.lastRun, t.duration, t.delivered, t.units, t.unitTime, t.runs)
	return t
}

func (t *Textfile) Path() string { return t.path }

// Record publishes r and rewrites the textfile.
func (t *Textfile) Record(r *backup.Report) error {
	t.lastRun.Set(float64(r.Finished.Unix()))
	t.duration.Set(r.Duration().Seconds())
	t.delivered.Set(float64(r.DeliveredBytes()))

	t.units.WithLabelValues("backed_up").Set(float64(len(r.Succeeded())))
	t.units.WithLabelValues("failed").Set(float64(len(r.Failed())))
	t.units.WithLabelValues("delivery_warning").Set(float64(len(r.Warnings())))

	t.unitTime.Reset()
	for _, u := range r.Units {
		t.unitTime.WithLabelValues(u.Subvolume.Location()).Set(u.Elapsed.Seconds())
	}

	outcome := "ok"
	if !r.OK() {
		outcome = "partial"
	}
	t.runs.WithLabelValues(outcome).Inc()

	if err := prometheus.WriteToTextfile(t.path, t.registry); err != nil {
		return errors.Annotatef(err, "writing metrics to %s", t.path)
	}
	return nil
}
