// Package metrics exposes Prometheus collectors for domain lookups.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for LookupsTotal besides error codes.
const (
	OutcomeFound = "found"
	OutcomeEmpty = "empty"
)

var (
	// LookupsTotal counts finished lookups by outcome: "found", "empty"
	// or the error code of a failed lookup.
	LookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailscout",
		Name:      "lookups_total",
		Help:      "Finished domain lookups by outcome.",
	}, []string{"outcome"})

	// LookupDuration observes wall time per lookup.
	LookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mailscout",
		Name:      "lookup_duration_seconds",
		Help:      "Wall time of a domain lookup.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
	})

	// PagesVisited counts documents scanned for addresses.
	PagesVisited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mailscout",
		Name:      "pages_visited_total",
		Help:      "Documents scanned for addresses.",
	})

	// NavigationFailures counts error records written by lookups.
	NavigationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mailscout",
		Name:      "navigation_failures_total",
		Help:      "Navigation steps that failed and were recorded.",
	})
)

// ObserveLookup records one finished lookup.
func ObserveLookup(outcome string, d time.Duration, pages, failures int) {
	LookupsTotal.WithLabelValues(outcome).Inc()
	LookupDuration.Observe(d.Seconds())
	PagesVisited.Add(float64(pages))
	NavigationFailures.Add(float64(failures))
}
