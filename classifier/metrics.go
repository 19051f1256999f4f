package classifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_classifier_requests",
	Help: "Number of classification requests, by kind and outcome",
}, []string{"kind", "outcome"})

var requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "moderator_classifier_duration_sec",
	Help: "Duration of classification requests",
})
