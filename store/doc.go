// Package store implements positional, byte-level access to one open flatdb
// data file: header validation at open, fixed-width slot reads and writes,
// and record-count derivation from the file length.
//
// A Store serializes all access at file-handle granularity. It makes no
// ordering promises across records; the whole-engine critical section which
// multi-slot operations require is owned by package db.
package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	slotReadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flatdb_store_slot_reads_total",
		Help: "Cumulative number of record slots read from the data file.",
	})
	slotWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flatdb_store_slot_writes_total",
		Help: "Cumulative number of record slots written to the data file.",
	})
	unreadableSlotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flatdb_store_unreadable_slots_total",
		Help: "Cumulative number of slots classified as deleted because they could not be read.",
	})
)
