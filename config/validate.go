package config

import (
	"errors"
	"fmt"
	"strings"

	"mbo-backtester/fixed"
)

// Validate ensures required fields are present and consistent.
func Validate(cfg AppConfig) error {
	if cfg.StartTime <= 0 || cfg.EndTime <= 0 {
		return errors.New("start_time and end_time are required")
	}
	if cfg.EndTime <= cfg.StartTime {
		return fmt.Errorf("end_time %s must be after start_time %s", cfg.EndTime, cfg.StartTime)
	}
	if cfg.InitialCash <= 0 {
		return errors.New("initial_cash must be > 0")
	}
	if cfg.ExecutionLatency < 0 {
		return errors.New("execution_latency must be >= 0")
	}
	if cfg.Commission < 0 {
		return errors.New("commission_per_contract must be >= 0")
	}
	if cfg.SnapshotDepth < 0 {
		return errors.New("snapshot_depth must be >= 0")
	}
	if cfg.SnapshotInterval < 0 {
		return errors.New("snapshot_interval must be >= 0")
	}
	if len(cfg.TradedInstruments) == 0 {
		return errors.New("traded_instruments is required")
	}
	seen := make(map[uint32]bool)
	for _, inst := range cfg.TradedInstruments {
		if err := validateInstrument(inst); err != nil {
			return err
		}
		if seen[inst.InstrumentID] {
			return fmt.Errorf("instrument %d declared twice", inst.InstrumentID)
		}
		seen[inst.InstrumentID] = true
	}
	if err := validateRisk(cfg.RiskLimits); err != nil {
		return err
	}
	if len(cfg.DataStreams) == 0 {
		return errors.New("data_streams is required")
	}
	names := make(map[string]bool)
	for _, s := range cfg.DataStreams {
		if s.Path == "" {
			return fmt.Errorf("data stream %q path is required", s.Name)
		}
		if names[s.Name] {
			return fmt.Errorf("data stream %q declared twice", s.Name)
		}
		names[s.Name] = true
		if !strings.EqualFold(s.Schema, "MBO") {
			return fmt.Errorf("data stream %q: unsupported schema %s", s.Name, s.Schema)
		}
	}
	for i, st := range cfg.Strategies {
		if st.Name == "" {
			return fmt.Errorf("strategies[%d].name is required", i)
		}
		if st.MaxLobLvl < 0 {
			return fmt.Errorf("strategy %s max_lob_lvl must be >= 0", st.Name)
		}
	}
	return nil
}

func validateInstrument(inst InstrumentConfig) error {
	id := inst.InstrumentID
	switch strings.ToUpper(inst.InstrumentType) {
	case "FUT", "FUTURE":
		if inst.TickValue <= 0 {
			return fmt.Errorf("instrument %d tick_value must be > 0", id)
		}
		if inst.MarginRequirement < 0 {
			return fmt.Errorf("instrument %d margin_requirement must be >= 0", id)
		}
	case "STOCK", "EQUITY", "STK", "OPTION", "OPT":
	default:
		return fmt.Errorf("instrument %d: unknown instrument_type %q", id, inst.InstrumentType)
	}
	if inst.TickSize <= 0 {
		return fmt.Errorf("instrument %d tick_size must be > 0", id)
	}
	return nil
}

func validateRisk(r RiskConfig) error {
	if r.MaxPositionSize < 0 {
		return errors.New("risk_limits.max_position_size must be >= 0")
	}
	for name, v := range map[string]Fixed{
		"max_risk_per_trade_pct": r.MaxRiskPerTradePct,
		"max_drawdown_pct":       r.MaxDrawdownPct,
	} {
		if v < 0 || int64(v) > fixed.Scale {
			return fmt.Errorf("risk_limits.%s must be within [0, 1]", name)
		}
	}
	if r.MaxPortfolioDelta < 0 || r.MaxDeltaPerTrade < 0 {
		return errors.New("risk_limits delta limits must be >= 0")
	}
	return nil
}
