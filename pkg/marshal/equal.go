package marshal

import (
	"bytes"
	"math"
)

// Equal 判断两个 Value 是否结构相等。
//
// 规则：
//   - 变体必须相同，不做任何隐式转换（Integer(1) 与 Float(1) 不相等）。
//   - RbString 只比较字节，忽略编码标记及其他实例变量。
//   - Float 按位比较，所有 NaN 互相相等。
//   - Array、RbHash、Object、Fields 按顺序逐项比较；RbHash 还比较 Default。
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Nil:
		return true
	case Bool:
		return x == b.(Bool)
	case Integer:
		return x == b.(Integer)
	case Float:
		y := b.(Float)
		if math.IsNaN(float64(x)) || math.IsNaN(float64(y)) {
			return math.IsNaN(float64(x)) && math.IsNaN(float64(y))
		}
		return math.Float64bits(float64(x)) == math.Float64bits(float64(y))
	case Symbol:
		return x == b.(Symbol)
	case RbString:
		return bytes.Equal(x.Data, b.(RbString).Data)
	case Array:
		y := b.(Array)
		return equalValues(x.Elems, y.Elems) && equalFields(x.Ivars, y.Ivars)
	case RbHash:
		y := b.(RbHash)
		if len(x.Entries) != len(y.Entries) || !Equal(x.Default, y.Default) {
			return false
		}
		for i := range x.Entries {
			if !Equal(x.Entries[i].Key, y.Entries[i].Key) || !Equal(x.Entries[i].Value, y.Entries[i].Value) {
				return false
			}
		}
		return equalFields(x.Ivars, y.Ivars)
	case Userdata:
		y := b.(Userdata)
		return x.Class == y.Class && bytes.Equal(x.Data, y.Data) && equalFields(x.Ivars, y.Ivars)
	case Object:
		y := b.(Object)
		return x.Class == y.Class && equalFields(x.Fields, y.Fields)
	}
	return false
}

func equalValues(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalFields(a, b Fields) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}
