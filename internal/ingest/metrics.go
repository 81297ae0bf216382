// Package ingest – Prometheus instrumentation for the ingestion pipeline.
//
// Labels are limited to topic and partition to keep cardinality bounded;
// partition counts are small and fixed per deployment.
package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// recordsFetched counts raw records pulled from the broker.
	recordsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_fetched_total",
			Help: "Total number of raw records fetched from the broker.",
		},
		[]string{"topic"},
	)

	// recordsPersisted counts messages durably written to the store.
	recordsPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_persisted_total",
			Help: "Total number of messages durably persisted.",
		},
		[]string{"topic"},
	)

	// recordsDuplicate counts records dropped as broker redeliveries.
	recordsDuplicate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_duplicate_total",
			Help: "Total number of records dropped as redelivered duplicates.",
		},
		[]string{"topic"},
	)

	// recordsDeadLettered counts records routed to the dead-letter sink.
	recordsDeadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_dead_letter_total",
			Help: "Total number of records routed to the dead-letter sink.",
		},
		[]string{"topic", "reason"},
	)

	// persistRetries counts transient persistence failures that triggered
	// a batch retry.
	persistRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_persist_retries_total",
			Help: "Total number of batch persistence retries.",
		},
		[]string{"topic"},
	)

	// pipelinesHalted gauges pipelines stopped on an exhausted retry budget
	// and awaiting operator intervention.
	pipelinesHalted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_pipelines_halted",
			Help: "Number of pipeline workers halted pending intervention.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		recordsFetched,
		recordsPersisted,
		recordsDuplicate,
		recordsDeadLettered,
		persistRetries,
		pipelinesHalted,
	)
}
