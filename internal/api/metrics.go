package api

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK             = "ok"
	outcomeLogical        = "logical"
	outcomeSessionExpired = "session_expired"
	outcomeHTTP           = "http"
	outcomeInvalidJSON    = "invalid_json"
	outcomeNetwork        = "network"
)

var (
	rpcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maintsync_rpc_requests_total",
		Help: "Action RPC calls by action and outcome.",
	}, []string{"action", "outcome"})

	rpcDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maintsync_rpc_duration_seconds",
		Help:    "Action RPC latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
)

func outcomeOf(err error) string {
	if err == nil {
		return outcomeOK
	}
	var e *Error
	if !errors.As(err, &e) {
		return outcomeNetwork
	}
	switch e.Kind {
	case KindLogical:
		if e.SessionExpired {
			return outcomeSessionExpired
		}
		return outcomeLogical
	case KindHTTP:
		return outcomeHTTP
	case KindInvalidJSON:
		return outcomeInvalidJSON
	default:
		return outcomeNetwork
	}
}

func observe(action, outcome string, elapsed time.Duration) {
	rpcRequestsTotal.WithLabelValues(action, outcome).Inc()
	rpcDurationSeconds.WithLabelValues(action).Observe(elapsed.Seconds())
}
