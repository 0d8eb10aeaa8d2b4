package flood

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flood_checks_total",
		Help: "Total number of flood checks.",
	}, []string{"verdict" /* fresh | similar | repeat */})
	similarityScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flood_similarity_score",
		Help:    "Best similarity score of checked texts that had something to compare with.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
	exactFilterResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flood_exact_filter_resets_total",
		Help: "Total number of times the exact-repeat filter was cleared.",
	})
)
