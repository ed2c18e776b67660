package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mbo-backtester/fixed"
	"mbo-backtester/infrastructure/logger"
)

// AppConfig holds the backtest configuration.
type AppConfig struct {
	StartTime         Timestamp          `yaml:"start_time"`
	EndTime           Timestamp          `yaml:"end_time"`
	InitialCash       Fixed              `yaml:"initial_cash"`
	ExecutionLatency  time.Duration      `yaml:"execution_latency"`
	Commission        Fixed              `yaml:"commission_per_contract"`
	SnapshotDepth     int                `yaml:"snapshot_depth"`
	SnapshotInterval  time.Duration      `yaml:"snapshot_interval"`
	TradedInstruments []InstrumentConfig `yaml:"traded_instruments"`
	RiskLimits        RiskConfig         `yaml:"risk_limits"`
	DataStreams       []StreamConfig     `yaml:"data_streams"`
	ActiveInstruments []uint32           `yaml:"active_instruments"`
	Strategies        []StrategyConfig   `yaml:"strategies"`
	Log               logger.Config      `yaml:"log"`
	MetricsAddr       string             `yaml:"metrics_addr"`
}

// InstrumentConfig 描述可交易合约；价格类字段为十进制字符串。
type InstrumentConfig struct {
	InstrumentID      uint32 `yaml:"instrument_id"`
	InstrumentType    string `yaml:"instrument_type"` // FUT / STOCK / OPTION
	TickSize          Fixed  `yaml:"tick_size"`
	TickValue         Fixed  `yaml:"tick_value"`
	MarginRequirement Fixed  `yaml:"margin_requirement"`
}

// RiskConfig 对应组合风控限额，0 表示不限制。
type RiskConfig struct {
	MaxPositionSize    int64 `yaml:"max_position_size"`
	MaxRiskPerTradePct Fixed `yaml:"max_risk_per_trade_pct"` // 0.02 == 2%
	MaxPortfolioDelta  Fixed `yaml:"max_portfolio_delta"`
	MaxDrawdownPct     Fixed `yaml:"max_drawdown_pct"`
	MaxDeltaPerTrade   Fixed `yaml:"max_delta_per_trade"`
}

// StreamConfig 描述一个行情文件。
type StreamConfig struct {
	Name            string   `yaml:"name"`
	Path            string   `yaml:"path"`
	Schema          string   `yaml:"schema"`           // MBO
	Encoding        string   `yaml:"encoding"`         // CSV
	Compression     string   `yaml:"compression"`      // NONE / ZSTD，留空按后缀判断
	PriceFormat     string   `yaml:"price_format"`     // DECIMAL / FIXPNTINT
	TimestampFormat string   `yaml:"timestamp_format"` // UNIX / ISO
	Instruments     []uint32 `yaml:"instruments"`
}

// StrategyConfig 描述一个策略实例。
type StrategyConfig struct {
	Name         string  `yaml:"name"`
	ID           string  `yaml:"id"`
	InstrumentID uint32  `yaml:"instrument_id"`
	Params       []int64 `yaml:"params"`
	MaxLobLvl    int     `yaml:"max_lob_lvl"`
}

const defaultSnapshotDepth = 10

// Fixed 是 1e9 定点数，YAML 中写作十进制数字或字符串。
type Fixed int64

func (f *Fixed) UnmarshalYAML(value *yaml.Node) error {
	v, err := fixed.Parse(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*f = Fixed(v)
	return nil
}

func (f Fixed) Int64() int64 { return int64(f) }

func (f Fixed) String() string { return fixed.Format(int64(f)) }

// Timestamp 是纳秒时间戳，YAML 中可写整数纳秒或 RFC3339。
type Timestamp int64

func (t *Timestamp) UnmarshalYAML(value *yaml.Node) error {
	raw := strings.TrimSpace(value.Value)
	if ns, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*t = Timestamp(ns)
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("line %d: timestamp %q: want ns integer or RFC3339", value.Line, raw)
	}
	*t = Timestamp(ts.UnixNano())
	return nil
}

func (t Timestamp) Int64() int64 { return int64(t) }

func (t Timestamp) String() string {
	return time.Unix(0, int64(t)).UTC().Format(time.RFC3339Nano)
}

// Load reads YAML config from path, fills defaults and validates it.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse 解析内存中的 YAML。
func Parse(raw []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides runtime fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("MBO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MBO_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.SnapshotDepth == 0 {
		cfg.SnapshotDepth = defaultSnapshotDepth
	}
	if cfg.Log.Level == "" {
		cfg.Log = logger.DefaultConfig()
	}
	for i := range cfg.DataStreams {
		s := &cfg.DataStreams[i]
		if s.Schema == "" {
			s.Schema = "MBO"
		}
		if s.Encoding == "" {
			s.Encoding = "CSV"
		}
		if s.PriceFormat == "" {
			s.PriceFormat = "DECIMAL"
		}
		if s.TimestampFormat == "" {
			s.TimestampFormat = "UNIX"
		}
		if s.Name == "" {
			s.Name = s.Path
		}
	}
	if len(cfg.ActiveInstruments) == 0 {
		// 默认：各数据流声明的合约加上可交易合约，去重保序
		seen := make(map[uint32]bool)
		add := func(id uint32) {
			if !seen[id] {
				seen[id] = true
				cfg.ActiveInstruments = append(cfg.ActiveInstruments, id)
			}
		}
		for _, s := range cfg.DataStreams {
			for _, id := range s.Instruments {
				add(id)
			}
		}
		for _, inst := range cfg.TradedInstruments {
			add(inst.InstrumentID)
		}
	}
}
