// Package metrics exposes the server's Prometheus surface: per-state
// subjob counts, dispatch/purge counters, and credential-renewal outcomes.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hpcflow/jobcore/pkg/job"
)

// Collector owns the registered Prometheus instruments.
type Collector struct {
	subjobState      *prometheus.GaugeVec
	subjobsDispatched prometheus.Counter
	subjobsPurged     prometheus.Counter
	credRenewed       prometheus.Counter
	credRenewFailed   prometheus.Counter
	arraysFinished    prometheus.Counter
}

// NewCollector builds and registers a Collector against reg. Passing nil
// registers against prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		subjobState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobcore_array_subjob_state_count",
			Help: "Subjob count per state, from the most recently published array parent.",
		}, []string{"state"}),
		subjobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobcore_array_subjobs_dispatched_total",
			Help: "Total subjobs materialized by create_subjob.",
		}),
		subjobsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobcore_array_subjobs_purged_total",
			Help: "Total subjobs purged after an enqueue refusal.",
		}),
		credRenewed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobcore_cred_renewed_total",
			Help: "Total successful credential renewals.",
		}),
		credRenewFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobcore_cred_renew_failed_total",
			Help: "Total failed credential renewal attempts.",
		}),
		arraysFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobcore_array_parents_finished_total",
			Help: "Total array parents that reached Finished via chk_array_doneness.",
		}),
	}

	reg.MustRegister(
		c.subjobState,
		c.subjobsDispatched,
		c.subjobsPurged,
		c.credRenewed,
		c.credRenewFailed,
		c.arraysFinished,
	)
	return c
}

// RecordDispatch records one subjob materialization.
func (c *Collector) RecordDispatch() { c.subjobsDispatched.Inc() }

// RecordPurge records one subjob purged after enqueue refusal.
func (c *Collector) RecordPurge() { c.subjobsPurged.Inc() }

// RecordCredRenewed records one successful credential renewal.
func (c *Collector) RecordCredRenewed() { c.credRenewed.Inc() }

// RecordCredRenewFailed records one failed credential renewal attempt.
func (c *Collector) RecordCredRenewFailed() { c.credRenewFailed.Inc() }

// RecordArrayFinished records one array parent reaching Finished.
func (c *Collector) RecordArrayFinished() { c.arraysFinished.Inc() }

// stateLabels are the four states array_state_count reports, in its order;
// labelStates holds the job.State whose StateCounts slot each label reads.
var stateLabels = [...]string{"Queued", "Running", "Exiting", "Expired"}
var labelStates = [...]job.State{job.Queued, job.Running, job.Exiting, job.Expired}

// SetArrayStateCounts publishes one array parent's current StateCounts
// snapshot, keyed by state label.
func (c *Collector) SetArrayStateCounts(info *job.ArrayInfo) {
	if info == nil {
		return
	}
	for i, label := range stateLabels {
		c.subjobState.WithLabelValues(label).Set(float64(info.StateCounts[job.StateIndex(labelStates[i])]))
	}
}

// Serve starts a blocking HTTP server exposing /metrics on addr (e.g.
// ":9090"). Callers run it in its own goroutine.
func Serve(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics: serve %s: %w", addr, err)
	}
	return nil
}
