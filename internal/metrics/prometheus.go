// 本文件用于 Prometheus 指标聚合与导出 将运行时指标统一收口便于监控接入

package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carlos"

// Collector 持有独立注册表 测试可以各自新建互不干扰
type Collector struct {
	registry *prometheus.Registry

	queriesTotal      *prometheus.CounterVec
	replyLatency      prometheus.Histogram
	sessionsOpened    prometheus.Counter
	sessionsClosed    prometheus.Counter
	panelsOpened      prometheus.Counter
	stepToggles       *prometheus.CounterVec
	resolvedTotal     prometheus.Counter
	escalationsTotal  *prometheus.CounterVec
	rateLimitedTotal  prometheus.Counter
	httpRequestsTotal *prometheus.CounterVec

	mu       sync.RWMutex
	sessions func() int
	panels   func() int
}

var globalCollector = NewCollector()

// Global 返回进程级全局指标收集器。
func Global() *Collector {
	return globalCollector
}

// NewCollector 创建指标收集器。
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	c := &Collector{registry: reg}

	c.queriesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "match",
		Name:      "queries_total",
		Help:      "Answered queries by matching pass (rule, content, none)",
	}, []string{"pass"})
	c.replyLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "reply_latency_seconds",
		Help:      "Time between a submitted message and the assistant reply",
		Buckets:   []float64{0.05, 0.25, 0.5, 1, 1.5, 2, 3, 5},
	})
	c.sessionsOpened = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "opened_total",
		Help:      "Conversation sessions created",
	})
	c.sessionsClosed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "closed_total",
		Help:      "Conversation sessions closed explicitly or by idle sweep",
	})
	c.panelsOpened = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolution",
		Name:      "panels_opened_total",
		Help:      "Resolution panels opened",
	})
	c.stepToggles = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolution",
		Name:      "step_toggles_total",
		Help:      "Step toggles by resulting state",
	}, []string{"state"})
	c.resolvedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolution",
		Name:      "fully_resolved_total",
		Help:      "Toggles that completed every step of a resolution",
	})
	c.escalationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "escalation",
		Name:      "tickets_total",
		Help:      "Escalation attempts by outcome",
	}, []string{"outcome"})
	c.rateLimitedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "rate_limited_total",
		Help:      "Message submissions rejected by the rate limiter",
	})
	c.httpRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP requests by route group and status class",
	}, []string{"route", "class"})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "active",
		Help:      "Sessions currently held in memory",
	}, func() float64 { return c.read(func() func() int { return c.sessions }) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "resolution",
		Name:      "panels_open",
		Help:      "Resolution panels currently open",
	}, func() float64 { return c.read(func() func() int { return c.panels }) })
	return c
}

func (c *Collector) read(pick func() func() int) float64 {
	c.mu.RLock()
	fn := pick()
	c.mu.RUnlock()
	if fn == nil {
		return 0
	}
	return float64(fn())
}

// BindGauges 绑定活跃会话数和打开面板数的数据源 抓取时实时读取
func (c *Collector) BindGauges(sessions, panels func() int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = sessions
	c.panels = panels
}

func (c *Collector) ObserveQuery(pass string, latency time.Duration) {
	c.queriesTotal.WithLabelValues(pass).Inc()
	if latency > 0 {
		c.replyLatency.Observe(latency.Seconds())
	}
}

func (c *Collector) IncSessionOpened() {
	c.sessionsOpened.Inc()
}

func (c *Collector) AddSessionsClosed(n int) {
	if n > 0 {
		c.sessionsClosed.Add(float64(n))
	}
}

func (c *Collector) IncPanelOpened() {
	c.panelsOpened.Inc()
}

// ObserveToggle 记录一次步骤切换 resolved 表示此次切换让处置全部完成
func (c *Collector) ObserveToggle(completed, resolved bool) {
	state := "cleared"
	if completed {
		state = "completed"
	}
	c.stepToggles.WithLabelValues(state).Inc()
	if resolved {
		c.resolvedTotal.Inc()
	}
}

// ObserveEscalation outcome 取值 created invalid sink_error
func (c *Collector) ObserveEscalation(outcome string) {
	c.escalationsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) IncRateLimited() {
	c.rateLimitedTotal.Inc()
}

func (c *Collector) ObserveHTTP(route string, status int) {
	c.httpRequestsTotal.WithLabelValues(route, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Handler 返回抓取入口
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
