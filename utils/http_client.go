package utils

import (
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var outboundDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "moderator_outbound_request_duration_seconds",
	Help:    "Duration of outbound HTTP requests, by client",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
}, []string{"client", "code", "method"})

var outboundRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_outbound_requests_total",
	Help: "Outbound HTTP requests, by client and status code",
}, []string{"client", "code", "method"})

// sharedTransport pools connections for every outbound client.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:          100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	MaxIdleConnsPerHost:   10, // Limit idle connections per host
}

// NewHTTPClient returns a client on the shared transport whose requests are
// recorded under the given client label. A zero timeout leaves the deadline
// to the request context.
func NewHTTPClient(name string, timeout time.Duration) *http.Client {
	labels := prometheus.Labels{"client": name}
	rt := promhttp.InstrumentRoundTripperCounter(outboundRequests.MustCurryWith(labels),
		promhttp.InstrumentRoundTripperDuration(outboundDuration.MustCurryWith(labels), sharedTransport))
	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
	}
}
