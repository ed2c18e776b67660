// Package backtest 驱动事件循环：多源行情归并、订单簿更新、策略、风控、模拟成交与记账。
package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mbo-backtester/event"
	"mbo-backtester/feed"
	"mbo-backtester/fixed"
	"mbo-backtester/market"
	"mbo-backtester/metrics"
	"mbo-backtester/portfolio"
	"mbo-backtester/posttrade"
	"mbo-backtester/risk"
)

var ErrInvalidWindow = errors.New("end_time must be after start_time")

const day = int64(24 * time.Hour)

// Strategies 是循环看到的策略层。
type Strategies interface {
	Depth() int
	OnMarketEvent(d event.MarketDelta, snap []market.BidAskPair) []event.StrategySignal
	OnFill(f event.Fill)
	OnReject(sig event.StrategySignal, err error)
	OnEndOfDay(ts int64)
}

// Executor 把订单变成未来的成交；Settle 在成交出队时确认它仍然有效。
type Executor interface {
	OnOrder(o event.StrategyOrder) []event.Fill
	Settle(f event.Fill) bool
}

// Config 是一次回测的时间窗与调度参数，时间为纳秒。
type Config struct {
	StartTime         int64
	EndTime           int64
	SnapshotDepth     int
	SnapshotInterval  time.Duration // 0 表示不做周期快照
	EndOfDay          bool          // 在每个 UTC 零点发出 EndOfDay
	ActiveInstruments []uint32
	MarkoutHorizons   []time.Duration // 为空时用 posttrade.DefaultHorizons
}

// Deps 是循环独占的组件。
type Deps struct {
	State      *market.State
	Strategies Strategies
	Portfolio  *portfolio.Manager
	Executor   Executor
	Log        *zap.Logger
	Metrics    *metrics.Recorder
}

// Engine 是单线程事件循环。Run 只能调用一次。
type Engine struct {
	cfg     Config
	queue   *event.Queue
	sources sources

	state      *market.State
	strategies Strategies
	pf         *portfolio.Manager
	exec       Executor
	post       *posttrade.Analyzer
	rec        *metrics.Recorder
	log        *zap.Logger

	res     *Result
	stopped bool
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if cfg.EndTime <= cfg.StartTime {
		return nil, fmt.Errorf("%w: %d <= %d", ErrInvalidWindow, cfg.EndTime, cfg.StartTime)
	}
	if deps.State == nil || deps.Strategies == nil || deps.Portfolio == nil || deps.Executor == nil {
		return nil, errors.New("backtest: state, strategies, portfolio and executor are required")
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.New(metrics.DefaultConfig())
	}
	return &Engine{
		cfg:        cfg,
		queue:      event.NewQueue(64),
		sources:    sources{log: log},
		state:      deps.State,
		strategies: deps.Strategies,
		pf:         deps.Portfolio,
		exec:       deps.Executor,
		post:       posttrade.NewAnalyzer(cfg.MarkoutHorizons...),
		rec:        rec,
		log:        log,
	}, nil
}

// AddSource 注册数据源，返回分配的 SourceID。必须在 Run 之前调用。
func (e *Engine) AddSource(name string, src feed.Source) (uint16, error) {
	return e.sources.add(name, src)
}

// Schedule 在 Run 之前追加事件（例如额外的控制事件）。
func (e *Engine) Schedule(ev event.Event) {
	e.queue.Push(ev)
}

// Close 关闭所有尚未耗尽的数据源。
func (e *Engine) Close() {
	e.sources.closeAll()
}

// Run 执行回测直到 EndOfBacktest、队列为空或事件时间超过 EndTime。
// 数据完整性错误直接返回；风控拒绝只计数。
func (e *Engine) Run() (*Result, error) {
	if e.res != nil {
		return nil, errors.New("backtest: Run called twice")
	}
	wall := time.Now()
	e.res = newResult(uuid.NewString(), e.cfg, e.pf.InitialCash())
	e.log = e.log.With(zap.String("run_id", e.res.RunID))
	defer e.sources.closeAll()

	e.state.Initialize(e.cfg.ActiveInstruments)
	for id := 0; id < e.sources.len(); id++ {
		if err := e.refill(uint16(id)); err != nil {
			return e.res, err
		}
	}
	e.scheduleControls()

	e.log.Info("backtest started",
		zap.Int64("start", e.cfg.StartTime),
		zap.Int64("end", e.cfg.EndTime),
		zap.Int("sources", e.sources.len()),
		zap.Int("instruments", len(e.cfg.ActiveInstruments)))

	for !e.stopped {
		ev, ok := e.queue.Pop()
		if !ok {
			e.res.StopReason = StopQueueDrained
			break
		}
		if ev.Timestamp() > e.cfg.EndTime {
			e.res.StopReason = StopEndTime
			break
		}
		if err := e.dispatch(ev); err != nil {
			e.log.Error("数据完整性错误，回测中止", zap.Int64("ts", ev.Timestamp()), zap.Stringer("kind", ev.Kind()), zap.Error(err))
			e.finish(wall)
			return e.res, err
		}
	}
	e.finish(wall)
	return e.res, nil
}

func (e *Engine) dispatch(ev event.Event) error {
	ts := ev.Timestamp()
	e.res.Events++
	e.res.LastEventTs = ts
	e.rec.ObserveEvent(ev.Kind().String())
	e.rec.SetSimTime(ts)
	defer func() { e.rec.SetQueueDepth(e.queue.Len()) }()

	switch ev := ev.(type) {
	case event.MarketDelta:
		return e.onMarket(ev)
	case event.StrategySignal:
		e.onSignal(ev)
		return nil
	case event.StrategyOrder:
		e.onOrder(ev)
		return nil
	case event.Fill:
		return e.onFill(ev)
	case event.Control:
		e.onControl(ev)
		return nil
	}
	return fmt.Errorf("unexpected event %T", ev)
}

func (e *Engine) onMarket(d event.MarketDelta) error {
	e.res.MarketEvents++
	before := e.state.ImplicitAdds()
	if err := e.state.OnMarketEvent(d); err != nil {
		return err
	}
	if e.state.ImplicitAdds() != before {
		e.rec.ObserveImplicitAdd()
	}
	e.rec.ObserveDelta(d.Action.String())
	if bbo, ok := e.state.Bbo(d.InstrumentID); ok {
		if mid, ok := bbo.Mid(); ok {
			e.post.OnMid(d.InstrumentID, d.TsEvent, mid)
		}
	}

	// 开始时间之前只用于预热订单簿
	if d.TsEvent >= e.cfg.StartTime {
		depth := max(e.cfg.SnapshotDepth, e.strategies.Depth())
		snap := e.state.Snapshot(d.InstrumentID, d.PublisherID, depth)
		signals := e.strategies.OnMarketEvent(d, snap)
		for _, sig := range signals {
			e.queue.Push(sig)
		}
		e.res.Signals += len(signals)
		e.rec.ObserveSignals(len(signals))
	}
	return e.refill(d.SourceID)
}

func (e *Engine) onSignal(sig event.StrategySignal) {
	o, err := e.pf.RequestOrder(sig, e.state.AllBbo())
	if err != nil {
		code := risk.CodeOf(err)
		e.res.Rejections++
		e.res.RejectionsByCode[code]++
		e.rec.ObserveRejection(code)
		e.log.Warn("signal rejected",
			zap.String("reason", code),
			zap.String("strategy", sig.StrategyID),
			zap.Uint64("signal_id", sig.SignalID),
			zap.Uint32("instrument_id", sig.InstrumentID),
			zap.Stringer("signal", sig.Signal),
			zap.String("price", fixed.Format(sig.Price)),
			zap.Uint32("qty", sig.Quantity),
			zap.Error(err))
		e.strategies.OnReject(sig, err)
		return
	}
	e.res.Orders++
	e.rec.ObserveOrder(o.Action.String())
	e.queue.Push(o)
}

func (e *Engine) onOrder(o event.StrategyOrder) {
	for _, f := range e.exec.OnOrder(o) {
		e.queue.Push(f)
	}
}

func (e *Engine) onFill(f event.Fill) error {
	if !e.exec.Settle(f) {
		// 订单在成交前已被改单或撤单
		e.res.StaleFills++
		return nil
	}
	rec, err := e.pf.ProcessFill(f)
	if err != nil {
		return err
	}
	e.post.OnFill(rec)
	e.res.Fills++
	e.rec.ObserveFill(f.Quantity)
	e.strategies.OnFill(f)
	e.markEquity(f.Ts, false)
	return nil
}

func (e *Engine) onControl(c event.Control) {
	switch c.Type {
	case event.ControlStart:
		e.log.Info("backtest window opened", zap.Int64("ts", c.Ts))
		e.markEquity(c.Ts, true)
	case event.ControlSnapshot:
		e.markEquity(c.Ts, true)
		if next := c.Ts + e.cfg.SnapshotInterval.Nanoseconds(); next < e.cfg.EndTime {
			e.queue.Push(event.Control{Ts: next, Type: event.ControlSnapshot})
		}
	case event.ControlEndOfDay:
		e.strategies.OnEndOfDay(c.Ts)
		e.markEquity(c.Ts, true)
		if next := c.Ts + day; next < e.cfg.EndTime {
			e.queue.Push(event.Control{Ts: next, Type: event.ControlEndOfDay})
		}
	case event.ControlEndOfBacktest:
		e.markEquity(c.Ts, true)
		e.res.StopReason = StopEndOfBacktest
		e.stopped = true
	}
}

// refill 从源拉取下一条记录入队，保持每个源最多一条在途记录。
func (e *Engine) refill(id uint16) error {
	d, ok, err := e.sources.next(id)
	if err != nil || !ok {
		return err
	}
	e.queue.Push(d)
	return nil
}

func (e *Engine) scheduleControls() {
	e.queue.Push(event.Control{Ts: e.cfg.StartTime, Type: event.ControlStart})
	if iv := e.cfg.SnapshotInterval.Nanoseconds(); iv > 0 && e.cfg.StartTime+iv < e.cfg.EndTime {
		e.queue.Push(event.Control{Ts: e.cfg.StartTime + iv, Type: event.ControlSnapshot})
	}
	if e.cfg.EndOfDay {
		if next := nextMidnight(e.cfg.StartTime); next < e.cfg.EndTime {
			e.queue.Push(event.Control{Ts: next, Type: event.ControlEndOfDay})
		}
	}
	e.queue.Push(event.Control{Ts: e.cfg.EndTime, Type: event.ControlEndOfBacktest})
}

// nextMidnight 返回严格晚于 ts 的下一个 UTC 零点。
func nextMidnight(ts int64) int64 {
	d := ts / day
	if ts < 0 && ts%day != 0 {
		d--
	}
	return (d + 1) * day
}

// markEquity 读取权益（同时推高峰值），更新最大回撤；point 为 true 时记入权益曲线。
func (e *Engine) markEquity(ts int64, point bool) {
	quotes := e.state.AllBbo()
	eq := e.pf.TotalEquity(quotes)
	dd := e.pf.CurrentDrawdown(quotes)
	if dd > e.res.MaxDrawdown {
		e.res.MaxDrawdown = dd
	}
	if point {
		e.res.EquityCurve = append(e.res.EquityCurve, EquityPoint{Ts: ts, Equity: eq, Drawdown: dd})
	}
	e.rec.SetAccount(fixed.Float(eq), fixed.Float(e.pf.RealizedPnL()), fixed.Float(dd))
}

func (e *Engine) finish(wall time.Time) {
	quotes := e.state.AllBbo()
	r := e.res
	r.FinalEquity = e.pf.TotalEquity(quotes)
	r.Cash = e.pf.Cash()
	r.RealizedPnL = e.pf.RealizedPnL()
	r.UnrealizedPnL = e.pf.UnrealizedPnL(quotes)
	r.Commissions = e.pf.Commissions()
	r.MaxEquity = e.pf.MaxEquitySeen()
	r.ImplicitAdds = e.state.ImplicitAdds()
	r.Trades = e.pf.TradeHistory()
	r.Positions = e.pf.Positions()
	r.Summary = posttrade.Summarize(r.Trades)
	r.Markouts = e.post.Stats()
	r.Elapsed = time.Since(wall)
	e.rec.ObserveRun(r.Elapsed)
	e.log.Info("backtest finished",
		zap.String("stop", string(r.StopReason)),
		zap.Uint64("events", r.Events),
		zap.Int("fills", r.Fills),
		zap.Int("rejections", r.Rejections),
		zap.String("final_equity", fixed.Format(r.FinalEquity)),
		zap.String("realized_pnl", fixed.Format(r.RealizedPnL)),
		zap.String("max_drawdown", fixed.Format(r.MaxDrawdown)),
		zap.Duration("elapsed", r.Elapsed))
}
