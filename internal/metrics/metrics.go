// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weixiu_http_requests_total",
		Help: "HTTP请求总数",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weixiu_http_request_duration_seconds",
		Help:    "HTTP请求延迟",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"method", "path"})

	scheduleGenerationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weixiu_schedule_generation_total",
		Help: "排程生成次数",
	}, []string{"strategy", "status"})

	scheduleGenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weixiu_schedule_generation_duration_seconds",
		Help:    "排程生成延迟",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0},
	}, []string{"strategy"})

	schedulingRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "weixiu_scheduling_rate",
		Help: "最近一次运行的排定率（百分比）",
	}, []string{"strategy"})

	makespanMinutes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "weixiu_makespan_minutes",
		Help: "最近一次运行的排程跨度（分钟）",
	}, []string{"strategy"})

	solverIterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weixiu_solver_iterations_total",
		Help: "求解器迭代次数",
	}, []string{"strategy"})
)

// Handler 返回指标HTTP处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest 记录请求指标
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGeneration 记录排程生成指标
func RecordGeneration(strategy string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	scheduleGenerationTotal.WithLabelValues(strategy, status).Inc()
	scheduleGenerationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordRunStats 记录一次运行的结果指标
func RecordRunStats(strategy string, rate, makespan float64, iterations int) {
	schedulingRate.WithLabelValues(strategy).Set(rate)
	makespanMinutes.WithLabelValues(strategy).Set(makespan)
	solverIterations.WithLabelValues(strategy).Add(float64(iterations))
}
