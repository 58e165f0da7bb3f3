// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InferenceRequests counts adapter calls by capability (image, text,
	// audio, embedding), mode (mock, hf) and outcome (ok, error).
	InferenceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "melodymind",
		Name:      "inference_requests_total",
		Help:      "Mood inference and embedding calls.",
	}, []string{"capability", "mode", "outcome"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "melodymind",
		Name:      "inference_duration_seconds",
		Help:      "Latency of external inference provider calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"capability"})

	// CascadeSongs counts songs contributed by each selector tier
	// (match, local, any).
	CascadeSongs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "melodymind",
		Name:      "playlist_cascade_songs_total",
		Help:      "Songs selected per fallback tier.",
	}, []string{"tier"})

	PlaylistSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "melodymind",
		Name:      "playlist_generated_size",
		Help:      "Item count of generated playlists.",
		Buckets:   []float64{0, 5, 10, 20, 50, 100},
	})

	RecommendCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "melodymind",
		Name:      "recommendation_cache_total",
		Help:      "Recommendation cache lookups by result (hit, miss).",
	}, []string{"result"})
)
