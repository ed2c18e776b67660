// Package feed 读取逐笔（MBO）行情文件并逐条产出 event.MarketDelta。
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"mbo-backtester/event"
	"mbo-backtester/fixed"
)

var (
	ErrMalformedRecord = errors.New("malformed MBO record")
	ErrUnknownSchema   = errors.New("unknown schema")
	ErrBadHeader       = errors.New("unexpected CSV header")
)

// Source 是单个数据源：一次产出一条记录，结束时返回 io.EOF。
type Source interface {
	Next() (event.MarketDelta, error)
}

// mboRType 是 MBO 记录的 rtype。
const mboRType = 160

var mboHeader = []string{
	"ts_recv", "ts_event", "rtype", "publisher_id", "instrument_id", "action", "side", "price",
	"size", "channel_id", "order_id", "flags", "ts_in_delta", "sequence", "symbol",
}

const (
	colTsRecv = iota
	colTsEvent
	colRType
	colPublisher
	colInstrument
	colAction
	colSide
	colPrice
	colSize
	colChannel
	colOrderID
	colFlags
	colTsInDelta
	colSequence
	colSymbol
)

// PriceFormat 描述价格列的编码。
type PriceFormat string

const (
	PriceDecimal  PriceFormat = "DECIMAL"   // 如 4000.25
	PriceFixedInt PriceFormat = "FIXPNTINT" // 已放大 1e9 的整数
)

// TimestampFormat 描述时间戳列的编码。
type TimestampFormat string

const (
	TimestampUnix TimestampFormat = "UNIX" // 纳秒整数
	TimestampISO  TimestampFormat = "ISO"  // RFC3339Nano
)

// Compression 描述文件压缩方式。
type Compression string

const (
	CompressionNone Compression = "NONE"
	CompressionZstd Compression = "ZSTD"
	CompressionAuto Compression = ""
)

// Options 是数据流的解析参数。
type Options struct {
	Schema          string
	Encoding        string
	Compression     Compression
	PriceFormat     PriceFormat
	TimestampFormat TimestampFormat
}

func (o Options) withDefaults() Options {
	if o.Schema == "" {
		o.Schema = "MBO"
	}
	if o.Encoding == "" {
		o.Encoding = "CSV"
	}
	if o.PriceFormat == "" {
		o.PriceFormat = PriceDecimal
	}
	if o.TimestampFormat == "" {
		o.TimestampFormat = TimestampUnix
	}
	return o
}

func (o Options) validate() error {
	if !strings.EqualFold(o.Schema, "MBO") {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, o.Schema)
	}
	if !strings.EqualFold(o.Encoding, "CSV") {
		return fmt.Errorf("%w: encoding %s", ErrUnknownSchema, o.Encoding)
	}
	switch o.PriceFormat {
	case PriceDecimal, PriceFixedInt:
	default:
		return fmt.Errorf("unknown price format %q", o.PriceFormat)
	}
	switch o.TimestampFormat {
	case TimestampUnix, TimestampISO:
	default:
		return fmt.Errorf("unknown timestamp format %q", o.TimestampFormat)
	}
	return nil
}

// CSVReader 逐行解析 MBO CSV。
type CSVReader struct {
	opts   Options
	r      *csv.Reader
	line   int
	closer func() error
}

// NewCSVReader 包装 r 并校验表头。
func NewCSVReader(r io.Reader, opts Options) (*CSVReader, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(mboHeader)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrBadHeader)
		}
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	for i, name := range mboHeader {
		if strings.TrimSpace(header[i]) != name {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i, header[i], name)
		}
	}
	return &CSVReader{opts: opts, r: cr, line: 1}, nil
}

// Open 打开文件；Compression 为空时按 .zst 后缀判断是否解压。
func Open(path string, opts Options) (*CSVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var r io.Reader = f
	closers := []func() error{f.Close}

	zst := opts.Compression == CompressionZstd ||
		(opts.Compression == CompressionAuto && strings.HasSuffix(path, ".zst"))
	if zst {
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		r = dec
		closers = append([]func() error{func() error { dec.Close(); return nil }}, closers...)
	}

	cr, err := NewCSVReader(r, opts)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cr.closer = func() error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return cr, nil
}

// Next 返回下一条记录；文件结束返回 io.EOF。
func (c *CSVReader) Next() (event.MarketDelta, error) {
	rec, err := c.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return event.MarketDelta{}, io.EOF
		}
		return event.MarketDelta{}, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, c.line+1, err)
	}
	c.line++
	d, err := parseRecord(rec, c.opts)
	if err != nil {
		return event.MarketDelta{}, fmt.Errorf("line %d: %w", c.line, err)
	}
	return d, nil
}

// Close 释放文件与解压器。
func (c *CSVReader) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer()
	c.closer = nil
	return err
}

func parseRecord(rec []string, opts Options) (event.MarketDelta, error) {
	var d event.MarketDelta
	var err error
	bad := func(col int, err error) error {
		return fmt.Errorf("%w: %s=%q: %v", ErrMalformedRecord, mboHeader[col], rec[col], err)
	}

	if d.TsRecv, err = parseTs(rec[colTsRecv], opts.TimestampFormat); err != nil {
		return d, bad(colTsRecv, err)
	}
	if d.TsEvent, err = parseTs(rec[colTsEvent], opts.TimestampFormat); err != nil {
		return d, bad(colTsEvent, err)
	}
	rtype, err := strconv.ParseUint(rec[colRType], 10, 8)
	if err != nil {
		return d, bad(colRType, err)
	}
	if rtype != mboRType {
		return d, fmt.Errorf("%w: rtype %d", ErrUnknownSchema, rtype)
	}
	pub, err := strconv.ParseUint(rec[colPublisher], 10, 16)
	if err != nil {
		return d, bad(colPublisher, err)
	}
	d.PublisherID = uint16(pub)
	inst, err := strconv.ParseUint(rec[colInstrument], 10, 32)
	if err != nil {
		return d, bad(colInstrument, err)
	}
	d.InstrumentID = uint32(inst)

	if len(rec[colAction]) != 1 {
		return d, bad(colAction, errors.New("want one character"))
	}
	if d.Action, err = event.ParseAction(rec[colAction][0]); err != nil {
		return d, bad(colAction, err)
	}
	if len(rec[colSide]) != 1 {
		return d, bad(colSide, errors.New("want one character"))
	}
	if d.Side, err = event.ParseSide(rec[colSide][0]); err != nil {
		return d, bad(colSide, err)
	}

	if d.Price, err = parsePrice(rec[colPrice], opts.PriceFormat); err != nil {
		return d, bad(colPrice, err)
	}
	size, err := strconv.ParseUint(rec[colSize], 10, 32)
	if err != nil {
		return d, bad(colSize, err)
	}
	d.Size = uint32(size)
	if rec[colChannel] != "" {
		ch, err := strconv.ParseUint(rec[colChannel], 10, 8)
		if err != nil {
			return d, bad(colChannel, err)
		}
		d.ChannelID = uint8(ch)
	}
	if d.OrderID, err = strconv.ParseUint(rec[colOrderID], 10, 64); err != nil {
		return d, bad(colOrderID, err)
	}
	flags, err := strconv.ParseUint(rec[colFlags], 10, 8)
	if err != nil {
		return d, bad(colFlags, err)
	}
	d.Flags = uint8(flags)
	delta, err := strconv.ParseInt(rec[colTsInDelta], 10, 32)
	if err != nil {
		return d, bad(colTsInDelta, err)
	}
	d.TsInDelta = int32(delta)
	seq, err := strconv.ParseUint(rec[colSequence], 10, 32)
	if err != nil {
		return d, bad(colSequence, err)
	}
	d.Sequence = uint32(seq)
	d.Symbol = rec[colSymbol]
	return d, nil
}

// parsePrice: 空字段（Clear 等）与源数据的 UNDEF 哨兵都映射为 fixed.NoPrice。
func parsePrice(s string, format PriceFormat) (fixed.OptPrice, error) {
	if s == "" {
		return fixed.NoPrice, nil
	}
	var (
		v   int64
		err error
	)
	if format == PriceFixedInt {
		v, err = strconv.ParseInt(s, 10, 64)
	} else {
		v, err = fixed.Parse(s)
	}
	if err != nil {
		return fixed.NoPrice, err
	}
	return fixed.Price(v), nil
}

func parseTs(s string, format TimestampFormat) (int64, error) {
	if format == TimestampISO {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, err
		}
		return t.UnixNano(), nil
	}
	return strconv.ParseInt(s, 10, 64)
}
