// Package locks implements a table of per-record exclusive locks whose
// ownership is proven by an unpredictable 64-bit cookie. Acquire blocks
// until the record's lock is free; Release and Validate authorize against
// the cookie returned by Acquire.
//
// A Table is an explicitly-owned component: callers which must share lock
// state (eg, several facades over one data file) share a Table instance,
// and callers which must not (eg, tests) construct their own.
package locks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	acquiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flatdb_lock_acquires_total",
		Help: "Cumulative number of record locks acquired.",
	})
	contendedAcquiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flatdb_lock_contended_acquires_total",
		Help: "Cumulative number of record lock acquisitions which blocked on another holder.",
	})
	authFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flatdb_lock_authorization_failures_total",
		Help: "Cumulative number of release or validate attempts with a wrong cookie.",
	})
)
