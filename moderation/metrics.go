package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_messages_processed_total",
	Help: "Messages seen by the moderation pipeline, by outcome",
}, []string{"outcome"})

var actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_actions_total",
	Help: "Enforcement actions executed, by kind",
}, []string{"action"})

var platformErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_platform_errors_total",
	Help: "Failed platform calls during enforcement, by operation",
}, []string{"op"})

var banRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_ban_requests_total",
	Help: "Ban requests raised, by delivery route",
}, []string{"delivered_via"})

var banResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_ban_resolutions_total",
	Help: "Ban request resolutions, by decision and result",
}, []string{"decision", "result"})
