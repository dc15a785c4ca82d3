// Package db composes the file store and the record lock table behind the
// six public operations of the engine: Read, Update, Delete, Find, Create,
// Lock and Unlock.
//
// All operations except Lock run inside one per-instance critical section,
// giving them the appearance of a single sequential history: several of them
// (Find, Create) must observe a self-consistent view of every slot at once,
// and whole-engine mutual exclusion is deliberately chosen over fine-grained
// locking for them. Lock instead blocks on the record's own lock entry,
// strictly outside the critical section, so a contended lock never stalls
// unrelated reads, searches, or creates.
package db

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flatdb_operations_total",
		Help: "Cumulative number of engine operations, by operation and outcome.",
	}, []string{"op", "status"})
)

const (
	statusOK   = "ok"
	statusFail = "fail"
)
