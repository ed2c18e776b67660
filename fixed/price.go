package fixed

// OptPrice 是可缺省的定点价格：空档位、未知报价都用它表达，不与 0 混淆。
type OptPrice struct {
	v  int64
	ok bool
}

// NoPrice 表示缺失的价格。
var NoPrice OptPrice

// Price 包装一个已定义的价格。
func Price(v int64) OptPrice {
	if v == UndefPrice {
		return NoPrice
	}
	return OptPrice{v: v, ok: true}
}

func (p OptPrice) Get() (int64, bool) { return p.v, p.ok }

func (p OptPrice) Valid() bool { return p.ok }

// Raw 返回价格；缺失时为 UndefPrice。
func (p OptPrice) Raw() int64 {
	if !p.ok {
		return UndefPrice
	}
	return p.v
}

// Or 在缺失时返回 fallback。
func (p OptPrice) Or(fallback int64) int64 {
	if !p.ok {
		return fallback
	}
	return p.v
}

func (p OptPrice) String() string {
	if !p.ok {
		return "undef"
	}
	return Format(p.v)
}
