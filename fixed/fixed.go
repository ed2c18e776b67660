// Package fixed 提供 1e9 缩放的整数定点数：价格、金额与比例都用 int64 表示。
package fixed

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/shopspring/decimal"
)

// Scale 是定点数的缩放因子，1.0 == Scale。
const Scale int64 = 1_000_000_000

// UndefPrice 是源数据中“无价格”的哨兵值。
const UndefPrice int64 = math.MaxInt64

var (
	ErrPrecision = errors.New("more than 9 fractional digits")
	ErrOverflow  = errors.New("fixed-point overflow")
	ErrSyntax    = errors.New("invalid decimal")
)

var (
	scaleDec = decimal.NewFromInt(Scale)
	maxDec   = decimal.NewFromInt(math.MaxInt64)
	minDec   = decimal.NewFromInt(math.MinInt64)
)

// Parse 把十进制字符串（如 "4000.25"）转换为定点数。
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return FromDecimal(d)
}

// MustParse 用于常量和测试。
func MustParse(s string) int64 {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromDecimal 将 decimal 转换为定点数，超出 9 位小数或 int64 范围时报错。
func FromDecimal(d decimal.Decimal) (int64, error) {
	scaled := d.Mul(scaleDec)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrPrecision, d.String())
	}
	if scaled.GreaterThan(maxDec) || scaled.LessThan(minDec) {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, d.String())
	}
	return scaled.IntPart(), nil
}

// ToDecimal 是 FromDecimal 的逆运算，只在报告/展示时使用。
func ToDecimal(v int64) decimal.Decimal {
	return decimal.New(v, -9)
}

// Format 输出最短的十进制表示。
func Format(v int64) string {
	if v == UndefPrice {
		return "undef"
	}
	return ToDecimal(v).String()
}

// Float 转成 float64，只用于指标与展示，不参与记账。
func Float(v int64) float64 {
	return ToDecimal(v).InexactFloat64()
}

// FromInt 把整数值（合约数、美元）放大为定点数。
func FromInt(v int64) int64 {
	return v * Scale
}

// MulDiv 计算 a*b/c，中间结果使用 128 位，结果向零截断；溢出时饱和。
func MulDiv(a, b, c int64) int64 {
	if c == 0 {
		panic("fixed: division by zero")
	}
	neg := (a < 0) != (b < 0) != (c < 0)
	hi, lo := bits.Mul64(abs(a), abs(b))
	uc := abs(c)
	if hi >= uc {
		if neg {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, uc)
	if neg {
		if q > 1<<63 {
			return math.MinInt64
		}
		return -int64(q)
	}
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}

// Mul 返回 v*n，溢出时饱和。
func Mul(v, n int64) int64 { return MulDiv(v, n, 1) }

// WeightedAvg 返回 (q1*p1 + q2*p2)/(q1+q2)，向零截断；中间乘积不受 int64 限制。
func WeightedAvg(q1, p1, q2, p2 int64) int64 {
	den := q1 + q2
	if den == 0 {
		panic("fixed: zero total weight")
	}
	num := decimal.NewFromInt(q1).Mul(decimal.NewFromInt(p1)).
		Add(decimal.NewFromInt(q2).Mul(decimal.NewFromInt(p2)))
	q, _ := num.QuoRem(decimal.NewFromInt(den), 0)
	return q.IntPart()
}

// Ratio 返回 num/den 的定点比例（1.0 == Scale）。
func Ratio(num, den int64) int64 {
	return MulDiv(num, Scale, den)
}

func abs(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}
