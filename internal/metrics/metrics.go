package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	OperationRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcbridge_limiter_retries_total",
		Help: "The total number of retried operations by operation type",
	}, []string{"operation"})

	ThrottleWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtcbridge_limiter_throttle_waits_total",
		Help: "The total number of times an operation waited out the minimum request interval",
	})

	GateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcbridge_limiter_rejections_total",
		Help: "The total number of operations rejected before invocation by gate",
	}, []string{"gate"})

	BlockedOperationKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rtcbridge_limiter_blocked_keys",
		Help: "The number of operation keys currently under cooldown",
	})

	OverloadExtendedSleeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtcbridge_limiter_overload_extended_sleeps_total",
		Help: "The total number of sleeps extended by the overload heuristic",
	})

	ChannelCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtcbridge_sessions_channel_cache_hits_total",
		Help: "The total number of channel opens served from the cache",
	})

	LiveChatSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rtcbridge_sessions_chat_active",
		Help: "The number of connected chat sessions",
	})

	LiveVideoClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rtcbridge_sessions_video_active",
		Help: "The number of live video clients",
	})

	PlatformRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcbridge_platform_requests_total",
		Help: "The total number of requests issued to the platform by outcome",
	}, []string{"outcome"})
)

// Serve starts the metrics endpoint
func Serve(port int) {
	log.Info().Msgf("Starting metrics endpoint on port %d", port)
	c := make(chan bool, 1)
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		c <- true
		err := http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
		log.Warn().Err(err).Msg("Metrics server stopped listening")
	}()
	<-c
	log.Info().Msgf("Metrics endpoint started on port %d", port)
}
