// Package metrics Prometheus 指标：HTTP 请求与页面缓存
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/pkg/logger"
)

const namespace = "yatube"

// Metrics 持有独立的 registry，测试之间互不干扰
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterCache 把页面缓存计数器导出为 counter
func (m *Metrics) RegisterCache(c cache.PageCache) {
	counter := func(name, help string, pick func(cache.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "page_cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(c.Stats())) })
	}
	m.registry.MustRegister(
		counter("hits_total", "Page cache hits.", func(s cache.Stats) int64 { return s.Hits }),
		counter("misses_total", "Page cache misses.", func(s cache.Stats) int64 { return s.Misses }),
		counter("renders_total", "Pages rendered on a cache miss.", func(s cache.Stats) int64 { return s.Renders }),
	)
}

// Middleware 记录请求数与耗时；route 使用 gin 的路由模板，未匹配的记为 "unmatched"
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 的处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

type promLogger struct{}

// Println implements promhttp.Logger.
func (promLogger) Println(v ...interface{}) {
	logger.Error("prometheus handler: " + fmt.Sprint(v...))
}
