// Package metrics exposes the agent's Prometheus metrics:
//   - agent_decisions_total{action}        guardrail outcomes (BUY|SELL|HOLD)
//   - agent_trades_total{action}           executed trades by side
//   - agent_posts_total{channel,result}    post attempts by channel and outcome
//   - agent_breaker_open{channel}          1 while a channel's breaker is open
//   - agent_ticks_total{eventful}          ticks by whether activity was seen
//
// Registered in init() and served at /metrics by cmd/agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_decisions_total",
			Help: "Guardrail decisions by final action",
		},
		[]string{"action"},
	)

	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_trades_total",
			Help: "Executed trades by side",
		},
		[]string{"action"},
	)

	PostsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_posts_total",
			Help: "Social post attempts by channel and outcome",
		},
		[]string{"channel", "result"},
	)

	breakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_breaker_open",
			Help: "Whether the channel's circuit breaker is currently open",
		},
		[]string{"channel"},
	)

	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_ticks_total",
			Help: "Agent ticks by whether wallet activity was detected",
		},
		[]string{"eventful"},
	)
)

func init() {
	prometheus.MustRegister(DecisionsTotal, TradesTotal, PostsTotal, breakerOpen, TicksTotal)
}

// SetBreakerOpen flips the per-channel breaker gauge.
func SetBreakerOpen(channel string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	breakerOpen.WithLabelValues(channel).Set(v)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
