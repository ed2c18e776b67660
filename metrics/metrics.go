// Package metrics provides Prometheus metrics for the backtest kernel
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Namespace: "mbo", Subsystem: "backtest"}
}

// Recorder 收集一次回测的计数与状态。每个 Recorder 拥有独立的 registry。
type Recorder struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	deltas       *prometheus.CounterVec
	signals      prometheus.Counter
	orders       *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	fills        prometheus.Counter
	fillVolume   prometheus.Counter
	implicitAdds prometheus.Counter

	queueDepth prometheus.Gauge
	equity     prometheus.Gauge
	realized   prometheus.Gauge
	drawdown   prometheus.Gauge
	simTime    prometheus.Gauge
	runSeconds prometheus.Histogram
}

// New 创建新的Recorder实例
func New(cfg Config) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help}
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts(opts(name, help)))
	}
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts(opts(name, help)))
	}
	return &Recorder{
		registry:     reg,
		events:       factory.NewCounterVec(prometheus.CounterOpts(opts("events_total", "Events dispatched by kind")), []string{"kind"}),
		deltas:       factory.NewCounterVec(prometheus.CounterOpts(opts("market_deltas_total", "MBO records applied by action")), []string{"action"}),
		signals:      counter("signals_total", "Strategy signals emitted"),
		orders:       factory.NewCounterVec(prometheus.CounterOpts(opts("orders_total", "Orders accepted by risk by action")), []string{"action"}),
		rejections:   factory.NewCounterVec(prometheus.CounterOpts(opts("rejections_total", "Signals rejected by risk by reason")), []string{"reason"}),
		fills:        counter("fills_total", "Simulated fills processed"),
		fillVolume:   counter("fill_volume_total", "Contracts or shares filled"),
		implicitAdds: counter("implicit_adds_total", "Modify records for unknown orders treated as adds"),
		queueDepth:   gauge("queue_depth", "Events waiting in the queue"),
		equity:       gauge("equity", "Total equity in currency units"),
		realized:     gauge("realized_pnl", "Realized PnL in currency units"),
		drawdown:     gauge("drawdown_ratio", "Current drawdown from peak equity"),
		simTime:      gauge("simulation_time_seconds", "Timestamp of the last processed event"),
		runSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "run_duration_seconds", Help: "Wall clock duration of a backtest run",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
}

// Registry 返回底层 registry。
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) ObserveEvent(kind string)     { r.events.WithLabelValues(kind).Inc() }
func (r *Recorder) ObserveDelta(action string)   { r.deltas.WithLabelValues(action).Inc() }
func (r *Recorder) ObserveSignals(n int)         { r.signals.Add(float64(n)) }
func (r *Recorder) ObserveOrder(action string)   { r.orders.WithLabelValues(action).Inc() }
func (r *Recorder) ObserveRejection(code string) { r.rejections.WithLabelValues(code).Inc() }
func (r *Recorder) ObserveImplicitAdd()          { r.implicitAdds.Inc() }

// ObserveFill 记录成交笔数与数量。
func (r *Recorder) ObserveFill(qty uint32) {
	r.fills.Inc()
	r.fillVolume.Add(float64(qty))
}

// SetQueueDepth 更新队列长度。
func (r *Recorder) SetQueueDepth(n int) { r.queueDepth.Set(float64(n)) }

// SetAccount 更新权益、已实现盈亏（货币单位）与回撤比例。
func (r *Recorder) SetAccount(equity, realized, drawdown float64) {
	r.equity.Set(equity)
	r.realized.Set(realized)
	r.drawdown.Set(drawdown)
}

// SetSimTime 以纳秒时间戳更新模拟时钟。
func (r *Recorder) SetSimTime(tsNanos int64) {
	r.simTime.Set(float64(tsNanos) / 1e9)
}

// ObserveRun 记录一次回测的耗时。
func (r *Recorder) ObserveRun(d time.Duration) { r.runSeconds.Observe(d.Seconds()) }

// Current 持有最近一次回测的 Recorder。watch 模式下每次重跑换一个新的，
// /metrics 只反映当前这一次。
type Current struct {
	cfg Config
	rec atomic.Pointer[Recorder]
}

func NewCurrent(cfg Config) *Current {
	return &Current{cfg: cfg}
}

// Next 创建新的 Recorder 并替换当前值。
func (c *Current) Next() *Recorder {
	r := New(c.cfg)
	c.rec.Store(r)
	return r
}

// Recorder 返回当前 Recorder；尚未开始任何回测时为 nil。
func (c *Current) Recorder() *Recorder { return c.rec.Load() }

// Gather 实现 prometheus.Gatherer。
func (c *Current) Gather() ([]*dto.MetricFamily, error) {
	r := c.rec.Load()
	if r == nil {
		return nil, nil
	}
	return r.registry.Gather()
}

// Serve 在 addr 上暴露 /metrics，返回的 server 由调用方关闭。
func Serve(addr string, g prometheus.Gatherer, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
