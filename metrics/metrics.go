// Package metrics is the vault core's observability surface: a thin
// set of prometheus counters/gauges handlers increment at the same
// call sites the teacher instruments its xactions. A nil *Set disables
// instrumentation: handlers check their *Set for nil before touching
// its fields, and Incr/SetGauge are no-ops on a nil counter or gauge.
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set is the handful of counters/gauges the core reports. Pass it to a
// handler's constructor; pass nil to disable.
type Set struct {
	WatchListAdds      prometheus.Counter
	WatchListRemovals  prometheus.Counter
	WatchListRefunds   prometheus.Counter
	ChunkInfosLive     prometheus.Gauge
	TasksCreated       prometheus.Counter
	TasksSucceeded     prometheus.Counter
	TasksFailed        prometheus.Counter
	TasksCancelled     prometheus.Counter
	PendingOpsLive     prometheus.Gauge
	PendingOpsPruned   prometheus.Counter
	AccountGroupUpdates prometheus.Counter
}

// NewSet registers a fresh Set of vault-core metrics under the "vault"
// namespace on reg. Pass prometheus.NewRegistry() in tests to avoid
// colliding with the default registry across parallel test binaries.
func NewSet(reg prometheus.Registerer) *Set {
	s := &Set{
		WatchListAdds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vault", Subsystem: "chunkinfo", Name: "watch_list_adds_total",
			Help: "Number of successful watch-list commits.",
		}),
		WatchListRemovals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vault", Subsystem: "chunkinfo", Name: "watch_list_removals_total",
			Help: "Number of watch-list removals processed.",
		}),
		WatchListRefunds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vault", Subsystem: "chunkinfo", Name: "watch_list_refunds_total",
			Help: "Number of creditor refunds issued.",
		}),
		ChunkInfosLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vault", Subsystem: "chunkinfo", Name: "live_chunks",
			Help: "Number of ChunkInfo records currently held.",
		}),
		TasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vault", Subsystem: "tasks", Name: "created_total",
			Help: "Number of tasks created (root or child).",
		}),
		TasksSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vault", Subsystem: "tasks", Name: "succeeded_total",
			Help: "Number of tasks that transitioned to Succeeded.",
		}),
		TasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vault", Subsystem: "tasks", Name: "failed_total",
			Help: "Number of tasks that transitioned to Failed.",
		}),
		TasksCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vault", Subsystem: "tasks", Name: "cancelled_total",
			Help: "Number of tasks that transitioned to Cancelled.",
		}),
		PendingOpsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vault", Subsystem: "pendingops", Name: "live_rows",
			Help: "Number of pending-operation rows currently held.",
		}),
		PendingOpsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vault", Subsystem: "pendingops", Name: "pruned_total",
			Help: "Number of pending-operation rows erased by age.",
		}),
		AccountGroupUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vault", Subsystem: "accountholders", Name: "updates_total",
			Help: "Number of account-holder-group refresh lookups issued.",
		}),
	}
	for _, c := range []prometheus.Collector{
		s.WatchListAdds, s.WatchListRemovals, s.WatchListRefunds, s.ChunkInfosLive,
		s.TasksCreated, s.TasksSucceeded, s.TasksFailed, s.TasksCancelled,
		s.PendingOpsLive, s.PendingOpsPruned, s.AccountGroupUpdates,
	} {
		reg.MustRegister(c)
	}
	return s
}

// Incr is a nil-safe counter bump helper: it does nothing when c is
// nil. The *Set holding c must itself be non-nil.
func Incr(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

func SetGauge(g prometheus.Gauge, v float64) {
	if g != nil {
		g.Set(v)
	}
}
