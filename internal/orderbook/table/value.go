package table

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind 单元格值类型
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value 单元格值。零值为 Null。
type Value struct {
	kind Kind
	str  string
	num  decimal.Decimal
	b    bool
}

// Null 空值
func Null() Value { return Value{} }

// String 字符串值
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number 数值
func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }

// Int 整数值
func Int(i int64) Value { return Number(decimal.NewFromInt(i)) }

// Bool 布尔值
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// ParseNumber 将文本解析为数值；无法解析时 ok 为 false
func ParseNumber(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null(), false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Null(), false
	}
	return Number(d), true
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsString() bool { return v.kind == KindString }
func (v Value) IsNumber() bool { return v.kind == KindNumber }

// Str returns the string payload when v is a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Num returns the numeric payload when v is a number.
func (v Value) Num() (decimal.Decimal, bool) {
	return v.num, v.kind == KindNumber
}

// BoolVal returns the boolean payload when v is a bool.
func (v Value) BoolVal() (bool, bool) {
	return v.b, v.kind == KindBool
}

// IsZero reports whether v is the numeric sentinel 0.
func (v Value) IsZero() bool {
	return v.kind == KindNumber && v.num.IsZero()
}

// Text 文本形式：null 为空串，数值为最短精确十进制，布尔为 True/False
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	default:
		return ""
	}
}

// HasPrefix reports whether v is a string starting with prefix.
func (v Value) HasPrefix(prefix string) bool {
	return v.kind == KindString && strings.HasPrefix(v.str, prefix)
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num.Equal(o.num)
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "<null>"
	}
	return v.Text()
}

// Interface 转换为 excel/json 友好的 Go 值
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.num.IsInteger() {
			if v.num.Abs().LessThan(maxExactInt) {
				return v.num.IntPart()
			}
			return v.num.String()
		}
		return v.num.InexactFloat64()
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// excel keeps 15 significant digits; longer integers are written as text
var maxExactInt = decimal.New(1, 15)

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.num.String()), nil
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}
