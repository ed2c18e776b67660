package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mbo-backtester/backtest"
	"mbo-backtester/config"
	"mbo-backtester/fixed"
	"mbo-backtester/infrastructure/logger"
	"mbo-backtester/metrics"
)

// 配置驱动的 MBO 回测。
// 用法：
//
//	go run ./cmd/backtest -config configs/backtest.yaml -out trades.csv
//	go run ./cmd/backtest -config configs/backtest.yaml -watch -metrics-addr :9108
func main() {
	cfgPath := flag.String("config", "configs/backtest.yaml", "配置文件路径")
	outPath := flag.String("out", "", "若指定则写入成交明细 CSV")
	watch := flag.Bool("watch", false, "配置文件变更后自动重跑")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus 监听地址，覆盖配置中的 metrics_addr")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	// 每次回测使用新的 registry，/metrics 总是暴露最近一次
	runs := metrics.NewCurrent(metrics.DefaultConfig())
	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr, runs, lg.Logger)
		defer srv.Close()
		lg.Info("metrics server started", zap.String("addr", cfg.MetricsAddr))
	}

	if err := runOnce(cfg, lg.Logger, runs.Next(), *outPath); err != nil {
		lg.Error("回测失败", zap.Error(err))
		if !*watch {
			lg.Close()
			os.Exit(1)
		}
	}
	if !*watch {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	lg.Info("watching config for changes", zap.String("path", *cfgPath))
	err = config.Watch(ctx, *cfgPath, lg.Logger, func(next config.AppConfig) {
		if *metricsAddr != "" {
			next.MetricsAddr = *metricsAddr
		}
		if err := runOnce(next, lg.Logger, runs.Next(), *outPath); err != nil {
			lg.Error("回测失败", zap.Error(err))
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("config watcher stopped", zap.Error(err))
	}
}

func runOnce(cfg config.AppConfig, lg *zap.Logger, rec *metrics.Recorder, outPath string) error {
	engine, err := backtest.Build(cfg, lg, rec)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	res, err := engine.Run()
	if res != nil {
		res.Print(os.Stdout)
	}
	if err != nil {
		return err
	}
	if outPath != "" {
		if err := writeTradesCSV(outPath, res); err != nil {
			lg.Warn("写入成交 CSV 失败", zap.Error(err))
		} else {
			lg.Info("已写入成交明细", zap.String("path", outPath), zap.Int("rows", len(res.Trades)))
		}
	}
	return nil
}

func writeTradesCSV(path string, res *backtest.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	header := []string{"ts", "run_id", "strategy_id", "order_id", "instrument_id", "side", "price", "qty", "commission", "realized_pnl", "position_after", "avg_entry_after"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range res.Trades {
		record := []string{
			time.Unix(0, t.Ts).UTC().Format(time.RFC3339Nano),
			res.RunID,
			t.StrategyID,
			strconv.FormatUint(t.OrderID, 10),
			strconv.FormatUint(uint64(t.InstrumentID), 10),
			t.Side.String(),
			fixed.Format(t.Price),
			strconv.FormatUint(uint64(t.Quantity), 10),
			fixed.Format(t.Commission),
			fixed.Format(t.RealizedPnL),
			strconv.FormatInt(t.PositionAfter, 10),
			fixed.Format(t.AvgEntryAfter),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
