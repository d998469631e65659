package marshal

import (
	"fmt"
	"strconv"
)

// Kind 标识 Value 的具体变体。
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInteger
	KindFloat
	KindString
	KindSymbol
	KindArray
	KindHash
	KindUserdata
	KindObject
)

var kindNames = [...]string{
	KindNil:      "nil",
	KindBool:     "bool",
	KindInteger:  "integer",
	KindFloat:    "float",
	KindString:   "string",
	KindSymbol:   "symbol",
	KindArray:    "array",
	KindHash:     "hash",
	KindUserdata: "userdata",
	KindObject:   "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value 是 Marshal 数据在内存中的封闭联合类型。
//
// 变体只有本包定义的十种：Nil、Bool、Integer、Float、RbString、Symbol、
// Array、RbHash、Userdata、Object。解码得到的 Value 树不包含共享引用，
// 回溯引用在解码时已被完整展开。
type Value interface {
	Kind() Kind
	isValue()
}

// 没有独立变体的 Ruby 类型在解码时映射到上面的变体，下面两个字段名标记映射结果。
const (
	// MarshalDataField 承载 U（marshal_dump）与 d（_dump_data）的结果，
	// 这两类值解码为只有该字段的 Object。
	MarshalDataField Symbol = "marshal_data"
	// RegexpFlagsField 是正则表达式解码为 RbString 后附加的选项位实例变量。
	RegexpFlagsField Symbol = "regexp_flags"
)

// 编译期断言：确保所有变体都实现了 Value。
var (
	_ Value = Nil{}
	_ Value = Bool(false)
	_ Value = Integer(0)
	_ Value = Float(0)
	_ Value = RbString{}
	_ Value = Symbol("")
	_ Value = Array{}
	_ Value = RbHash{}
	_ Value = Userdata{}
	_ Value = Object{}
)

type Nil struct{}

func (Nil) Kind() Kind { return KindNil }
func (Nil) isValue()   {}

type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) isValue()   {}

type Integer int64

func (Integer) Kind() Kind { return KindInteger }
func (Integer) isValue()   {}

type Float float64

func (Float) Kind() Kind { return KindFloat }
func (Float) isValue()   {}

// Symbol 是驻留名称。字节内容不要求是合法 UTF-8。
type Symbol string

func (Symbol) Kind() Kind { return KindSymbol }
func (Symbol) isValue()   {}

// IsIvarName 表示符号是否以 '@' 开头；仅用于展示，解码时不会据此过滤字段。
func (s Symbol) IsIvarName() bool {
	return len(s) > 0 && s[0] == '@'
}

// Array 是有序值序列，Ivars 保存 I 包装附带的实例变量。
type Array struct {
	Elems []Value
	Ivars Fields
}

func (Array) Kind() Kind { return KindArray }
func (Array) isValue()   {}

// NewArray 以给定元素构造 Array。
func NewArray(elems ...Value) Array {
	return Array{Elems: elems}
}

func (a Array) Len() int {
	return len(a.Elems)
}

// Userdata 是自定义 _dump 产生的不透明字节块，本包不解释其内容。
type Userdata struct {
	Class Symbol
	Data  []byte
	Ivars Fields
}

func (Userdata) Kind() Kind { return KindUserdata }
func (Userdata) isValue()   {}

// Object 是普通对象：类名加有序实例变量表。
// 变量名按原样保存，包括不以 '@' 开头的名称。
type Object struct {
	Class  Symbol
	Fields Fields
}

func (Object) Kind() Kind { return KindObject }
func (Object) isValue()   {}

// NewObject 以类名和字段构造 Object。
func NewObject(class Symbol, fields ...Field) Object {
	return Object{Class: class, Fields: Fields(fields)}
}

// Describe 返回用于日志与错误信息的简短描述。
func Describe(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case Nil:
		return "nil"
	case Bool:
		return strconv.FormatBool(bool(val))
	case Integer:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return formatFloat(float64(val))
	case RbString:
		return strconv.Quote(string(val.Data))
	case Symbol:
		return ":" + string(val)
	case Array:
		return fmt.Sprintf("array(%d)", len(val.Elems))
	case RbHash:
		return fmt.Sprintf("hash(%d)", len(val.Entries))
	case Userdata:
		return fmt.Sprintf("userdata(%s, %d bytes)", string(val.Class), len(val.Data))
	case Object:
		return fmt.Sprintf("object(%s, %d fields)", string(val.Class), len(val.Fields))
	default:
		return v.Kind().String()
	}
}
