package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 保活监控指标
var (
	pingsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keepalive_pings_sent_total",
			Help: "Number of keepalive pings sent across all sessions.",
		})
	pongsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keepalive_pongs_sent_total",
			Help: "Number of pong replies sent across all sessions.",
		})
	pongsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keepalive_pongs_received_total",
			Help: "Number of pong replies received across all sessions.",
		})
	rttPublished = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "keepalive_round_trip_seconds",
			Help: "Published round-trip time estimates.",
			Buckets: []float64{
				.0005, .001, .0025, .005, .01, .025,
				.05, .1, .25, .5, 1, 2.5, 5},
		})
	peerQueueTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "keepalive_peer_queue_seconds",
			Help: "Queueing delay reported by the peer in pong replies.",
			Buckets: []float64{
				.0001, .00025, .0005, .001, .0025, .005,
				.01, .025, .05, .1, .25, .5, 1},
		})
	trackedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "keepalive_tracked_sessions",
			Help: "Number of sessions currently tracked by the registry.",
		})
)
