package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchesTotal counts similarity searches by result.
	// Labels: result (success, error)
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verifyd",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of similarity searches",
		},
		[]string{"result"},
	)

	// SearchDuration tracks similarity search latency.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "verifyd",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of similarity searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// EmbedDuration tracks batch embedding latency during writes.
	EmbedDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "verifyd",
			Subsystem: "vectorstore",
			Name:      "embed_duration_seconds",
			Help:      "Duration of batch embedding during document writes in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// DocumentsAdded counts documents written to the store.
	DocumentsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "verifyd",
			Subsystem: "vectorstore",
			Name:      "documents_added_total",
			Help:      "Total number of documents added to the vector store",
		},
	)

	// DocumentsDeleted counts documents removed from the store.
	DocumentsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "verifyd",
			Subsystem: "vectorstore",
			Name:      "documents_deleted_total",
			Help:      "Total number of documents deleted from the vector store",
		},
	)
)
