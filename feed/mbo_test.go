package feed

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbo-backtester/event"
	"mbo-backtester/fixed"
)

const header = "ts_recv,ts_event,rtype,publisher_id,instrument_id,action,side,price,size,channel_id,order_id,flags,ts_in_delta,sequence,symbol\n"

const sample = header +
	"1700000000000000100,1700000000000000000,160,1,5482,A,B,4000.25,3,0,101,128,165,10,ESZ3\n" +
	"1700000000000000200,1700000000000000100,160,1,5482,C,B,4000.25,1,0,101,128,165,11,ESZ3\n" +
	"1700000000000000300,1700000000000000200,160,1,5482,R,N,,0,0,0,8,0,12,ESZ3\n"

func TestCSVReaderParsesRecords(t *testing.T) {
	r, err := NewCSVReader(strings.NewReader(sample), Options{})
	require.NoError(t, err)

	d, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.MarketDelta{
		TsRecv:       1700000000000000100,
		TsEvent:      1700000000000000000,
		PublisherID:  1,
		InstrumentID: 5482,
		Action:       event.ActionAdd,
		Side:         event.SideBid,
		Price:        fixed.Price(fixed.MustParse("4000.25")),
		Size:         3,
		OrderID:      101,
		Flags:        128,
		TsInDelta:    165,
		Sequence:     10,
		Symbol:       "ESZ3",
	}, d)

	d, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.ActionCancel, d.Action)

	d, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.ActionClear, d.Action)
	assert.False(t, d.HasPrice())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCSVReaderFixedIntAndISO(t *testing.T) {
	in := header + "2023-11-14T22:13:20.000000100Z,2023-11-14T22:13:20Z,160,2,7,M,A,4000250000000,1,,5,0,0,1,\n"
	r, err := NewCSVReader(strings.NewReader(in), Options{PriceFormat: PriceFixedInt, TimestampFormat: TimestampISO})
	require.NoError(t, err)
	d, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000000000), d.TsEvent)
	assert.Equal(t, int64(1700000000000000100), d.TsRecv)
	assert.Equal(t, fixed.Price(fixed.MustParse("4000.25")), d.Price)
	assert.Equal(t, event.ActionModify, d.Action)
	assert.Equal(t, event.SideAsk, d.Side)
}

func TestCSVReaderUndefSentinelIsNoPrice(t *testing.T) {
	in := header + "1,1,160,1,7,R,N,9223372036854775807,0,,0,8,0,1,\n"
	r, err := NewCSVReader(strings.NewReader(in), Options{PriceFormat: PriceFixedInt})
	require.NoError(t, err)
	d, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.ActionClear, d.Action)
	assert.False(t, d.HasPrice())
	assert.Equal(t, fixed.NoPrice, d.Price)
}

func TestCSVReaderErrors(t *testing.T) {
	_, err := NewCSVReader(strings.NewReader("a,b\n"), Options{})
	assert.ErrorIs(t, err, ErrBadHeader)

	_, err = NewCSVReader(strings.NewReader(""), Options{})
	assert.ErrorIs(t, err, ErrBadHeader)

	_, err = NewCSVReader(strings.NewReader(header), Options{Schema: "OHLCV"})
	assert.ErrorIs(t, err, ErrUnknownSchema)

	bad := []string{
		"x,1,160,1,1,A,B,1,1,0,1,0,0,1,S\n",
		"1,1,160,1,1,Q,B,1,1,0,1,0,0,1,S\n",
		"1,1,160,1,1,A,B,1.0000000001,1,0,1,0,0,1,S\n",
		"1,1,160,1,1,A,B,1,-1,0,1,0,0,1,S\n",
		"1,1,160,1,1,A,B,1,1,0,1,0,0,1\n",
	}
	for _, line := range bad {
		r, err := NewCSVReader(strings.NewReader(header+line), Options{})
		require.NoError(t, err)
		_, err = r.Next()
		assert.ErrorIs(t, err, ErrMalformedRecord, line)
	}

	r, err := NewCSVReader(strings.NewReader(header+"1,1,161,1,1,A,B,1,1,0,1,0,0,1,S\n"), Options{})
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrUnknownSchema)
}

func TestOpenZstd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "day.mbo.csv.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = enc.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	r, err := Open(path, Options{})
	require.NoError(t, err)
	defer r.Close()
	n := 0
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 3, n)
	assert.NoError(t, r.Close())
}

func TestOpenPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "day.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	r, err := Open(path, Options{Compression: CompressionNone})
	require.NoError(t, err)
	d, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(101), d.OrderID)
	require.NoError(t, r.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	assert.Error(t, err)
}

func TestSliceSource(t *testing.T) {
	s := NewSliceSource(event.MarketDelta{OrderID: 1})
	d, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.OrderID)
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}
