package backtest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbo-backtester/config"
	"mbo-backtester/inventory"
	"mbo-backtester/metrics"
)

const csvHeader = "ts_recv,ts_event,rtype,publisher_id,instrument_id,action,side,price,size,channel_id,order_id,flags,ts_in_delta,sequence,symbol\n"

func writeFeed(t *testing.T, dir string) string {
	t.Helper()
	rows := csvHeader +
		"1700000000000000100,1700000000000000100,160,1,5482,A,B,4000.00,5,0,1,0,0,1,ESZ3\n" +
		"1700000000000000200,1700000000000000200,160,1,5482,A,A,4000.50,5,0,2,0,0,2,ESZ3\n" +
		"1700000000000000300,1700000000000000300,160,1,5482,M,B,4000.25,5,0,1,0,0,3,ESZ3\n" +
		"1700000000000000400,1700000000000000400,160,1,5482,C,A,4000.50,5,0,2,0,0,4,ESZ3\n" +
		"1700000000000000500,1700000000000000500,160,1,5482,A,A,4000.75,2,0,3,0,0,5,ESZ3\n" +
		"1700000000000005000,1700000000000005000,160,1,5482,A,A,4001.00,1,0,4,0,0,6,ESZ3\n"
	path := filepath.Join(dir, "es.csv")
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))
	return path
}

func testConfig(t *testing.T, feedPath, strategies string) config.AppConfig {
	t.Helper()
	raw := fmt.Sprintf(`
start_time: 1700000000000000000
end_time: 1700000000000001000
initial_cash: 100000
execution_latency: 10ns
commission_per_contract: 2.5
traded_instruments:
  - instrument_id: 5482
    instrument_type: FUT
    tick_size: 0.25
    tick_value: 12.5
    margin_requirement: 500
risk_limits:
  max_position_size: 5
data_streams:
  - name: es
    path: %s
    instruments: [5482]
%s`, feedPath, strategies)
	cfg, err := config.Parse([]byte(raw))
	require.NoError(t, err)
	return cfg
}

func TestBuildAndRun(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, writeFeed(t, dir), `
strategies:
  - name: join_bbo
    id: jb
    instrument_id: 5482
    params: [1, 2]
`)
	engine, err := Build(cfg, nil, metrics.New(metrics.DefaultConfig()))
	require.NoError(t, err)

	res, err := engine.Run()
	require.NoError(t, err)
	assert.Equal(t, StopEndOfBacktest, res.StopReason)
	assert.Equal(t, uint64(5), res.MarketEvents)
	assert.NotEmpty(t, res.RunID)
	assert.Positive(t, res.Signals)
	assert.Zero(t, res.ImplicitAdds)
	assert.Equal(t, res.Rejections, sumCodes(res.RejectionsByCode))

	var buf bytes.Buffer
	res.Print(&buf)
	assert.Contains(t, buf.String(), res.RunID)
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, filepath.Join(dir, "missing.csv"), "")
	_, err := Build(cfg, nil, nil)
	assert.Error(t, err)

	cfg = testConfig(t, writeFeed(t, dir), `
strategies:
  - name: no_such_strategy
`)
	_, err = Build(cfg, nil, nil)
	assert.Error(t, err)
}

func TestInstrumentsAndLimits(t *testing.T) {
	cfg := testConfig(t, "unused.csv", "")
	insts, err := Instruments(cfg.TradedInstruments)
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.Equal(t, inventory.Future, insts[0].Type)
	assert.Equal(t, int64(250_000_000), insts[0].TickSize)
	assert.Equal(t, int64(5), Limits(cfg.RiskLimits).MaxPositionSize)

	_, err = Instruments([]config.InstrumentConfig{{InstrumentID: 1, InstrumentType: "SWAP"}})
	assert.Error(t, err)
}

func sumCodes(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
