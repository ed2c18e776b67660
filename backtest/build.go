package backtest

import (
	"fmt"

	"go.uber.org/zap"

	"mbo-backtester/config"
	"mbo-backtester/feed"
	"mbo-backtester/inventory"
	"mbo-backtester/market"
	"mbo-backtester/metrics"
	"mbo-backtester/portfolio"
	"mbo-backtester/risk"
	"mbo-backtester/sim"
	"mbo-backtester/strategy"
)

// Build 按配置组装引擎：合约、组合与风控、策略、模拟成交和所有数据流。
// 出错时已打开的数据流会被关闭。
func Build(cfg config.AppConfig, log *zap.Logger, rec *metrics.Recorder) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	instruments, err := Instruments(cfg.TradedInstruments)
	if err != nil {
		return nil, err
	}
	pf, err := portfolio.New(portfolio.Config{
		InitialCash: cfg.InitialCash.Int64(),
		Instruments: instruments,
		Limits:      Limits(cfg.RiskLimits),
	}, log.Named("portfolio"))
	if err != nil {
		return nil, err
	}

	strategies := strategy.NewManager(log.Named("strategy"))
	for _, sc := range cfg.Strategies {
		s, err := strategy.Create(strategy.Config{
			Name:         sc.Name,
			ID:           sc.ID,
			InstrumentID: sc.InstrumentID,
			Params:       sc.Params,
			MaxLobLvl:    sc.MaxLobLvl,
		})
		if err != nil {
			return nil, err
		}
		if err := strategies.Add(s); err != nil {
			return nil, err
		}
	}

	engine, err := New(Config{
		StartTime:         cfg.StartTime.Int64(),
		EndTime:           cfg.EndTime.Int64(),
		SnapshotDepth:     cfg.SnapshotDepth,
		SnapshotInterval:  cfg.SnapshotInterval,
		EndOfDay:          true,
		ActiveInstruments: cfg.ActiveInstruments,
	}, Deps{
		State:      market.NewState(log.Named("market")),
		Strategies: strategies,
		Portfolio:  pf,
		Executor:   sim.NewLatencyExecutor(cfg.ExecutionLatency, cfg.Commission.Int64(), log.Named("sim")),
		Log:        log,
		Metrics:    rec,
	})
	if err != nil {
		return nil, err
	}

	for _, sc := range cfg.DataStreams {
		r, err := feed.Open(sc.Path, feed.Options{
			Schema:          sc.Schema,
			Encoding:        sc.Encoding,
			Compression:     feed.Compression(sc.Compression),
			PriceFormat:     feed.PriceFormat(sc.PriceFormat),
			TimestampFormat: feed.TimestampFormat(sc.TimestampFormat),
		})
		if err != nil {
			engine.Close()
			return nil, fmt.Errorf("open stream %s: %w", sc.Name, err)
		}
		if _, err := engine.AddSource(sc.Name, r); err != nil {
			_ = r.Close()
			engine.Close()
			return nil, err
		}
	}
	return engine, nil
}

// Instruments 把配置转换为合约参数。
func Instruments(cfgs []config.InstrumentConfig) ([]inventory.Instrument, error) {
	out := make([]inventory.Instrument, 0, len(cfgs))
	for _, c := range cfgs {
		typ, err := inventory.ParseInstrumentType(c.InstrumentType)
		if err != nil {
			return nil, fmt.Errorf("instrument %d: %w", c.InstrumentID, err)
		}
		out = append(out, inventory.Instrument{
			ID:                c.InstrumentID,
			Type:              typ,
			TickSize:          c.TickSize.Int64(),
			TickValue:         c.TickValue.Int64(),
			MarginRequirement: c.MarginRequirement.Int64(),
		})
	}
	return out, nil
}

// Limits 把配置转换为风控限额。
func Limits(c config.RiskConfig) risk.Limits {
	return risk.Limits{
		MaxPositionSize:    c.MaxPositionSize,
		MaxRiskPerTradePct: c.MaxRiskPerTradePct.Int64(),
		MaxPortfolioDelta:  c.MaxPortfolioDelta.Int64(),
		MaxDrawdownPct:     c.MaxDrawdownPct.Int64(),
		MaxDeltaPerTrade:   c.MaxDeltaPerTrade.Int64(),
	}
}
