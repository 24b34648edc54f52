// Package metrics provides Prometheus metrics for the reconciliation engine
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// 行情侧
	TicksApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terminal_ticks_applied_total",
		Help: "Ticks merged into the price table",
	})
	TicksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terminal_ticks_dropped_total",
		Help: "Inbound frames dropped as malformed",
	})
	PriceTableSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "terminal_price_table_tokens",
		Help: "Tokens currently held in the price table",
	})
	LastPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "terminal_last_price",
		Help: "Last known price per instrument token",
	}, []string{"token"})

	// 连接侧
	StreamConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "terminal_stream_connected",
		Help: "1 when the tick stream is connected",
	})
	StreamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terminal_stream_reconnects_total",
		Help: "Tick stream reconnect attempts",
	})

	// 轮询侧
	PollCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terminal_poll_completed_total",
		Help: "Completed view polls by outcome",
	}, []string{"view", "outcome"})
	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "terminal_poll_duration_seconds",
		Help:    "View poll round-trip latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"view"})
	ViewRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "terminal_view_rows",
		Help: "Rows in the latest snapshot per view",
	}, []string{"view"})

	// 对账侧
	ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terminal_reconcile_runs_total",
		Help: "Reconciliation passes executed",
	})
	PendingRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "terminal_pending_rows",
		Help: "Rows awaiting a first price per view",
	}, []string{"view"})
)

// UpdateLastPrice 更新单 token 最新价。
func UpdateLastPrice(token string, price float64) {
	LastPrice.WithLabelValues(token).Set(price)
}

// RecordPoll 记录一次轮询完成。
func RecordPoll(view string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PollCompleted.WithLabelValues(view, outcome).Inc()
	PollDuration.WithLabelValues(view).Observe(seconds)
}

// UpdateViewMetrics 更新视图快照规模。
func UpdateViewMetrics(view string, rows, pending int) {
	ViewRows.WithLabelValues(view).Set(float64(rows))
	PendingRows.WithLabelValues(view).Set(float64(pending))
}

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
