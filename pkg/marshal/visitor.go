package marshal

// Visitor 接收从 Marshal 数据中读出的值。
//
// 叶子值通过 Visit* 方法送达。复合值以 Begin*/End* 成对出现：
//
//  1. 数组：BeginArray(n)，随后 n 次值访问，最后 EndArray。
//  2. Hash：BeginHash(n)，随后键、值交替共 2n 次值访问，最后 EndHash。
//
// 复合值嵌套时调用也嵌套，实现方需要自行维护层级。
// 任一方法返回错误都会立即终止解码，并把该错误返回给调用方。
//
// 基础接口只能表达通用数据模型。需要符号、对象、userdata、原始字节串
// 等精确信息的消费方可以额外实现下面的能力接口；未实现的能力会按
// 各接口注释中的规则降级到基础接口，而不是被静默丢弃。
type Visitor interface {
	VisitNil() error
	VisitBool(bool) error
	VisitInt(int64) error
	VisitFloat(float64) error
	// VisitString 接收字符串文本。字节内容不保证是合法 UTF-8。
	VisitString(string) error

	BeginArray(n int) error
	EndArray() error

	BeginHash(n int) error
	EndHash() error
}

// SymbolVisitor 接收符号。未实现时降级为 VisitString。
type SymbolVisitor interface {
	VisitSymbol(Symbol) error
}

// RawStringVisitor 接收原始字节与编码标记。未实现时降级为 VisitString。
type RawStringVisitor interface {
	VisitRawString(RbString) error
}

// UserdataVisitor 接收自定义 _dump 数据。未实现时降级为以载荷为内容的 VisitString。
type UserdataVisitor interface {
	VisitUserdata(Userdata) error
}

// ObjectVisitor 接收普通对象。
//
// 调用顺序为 BeginObject(class, n)，随后 n 组 ObjectField(name) 加一次值访问，
// 最后 EndObject。name 与线上字节完全一致，不做任何前缀过滤。
//
// 未实现时降级为 Hash：BeginHash(n)，字段名经符号路径送达
// （VisitSymbol 或 VisitString），随后是字段值，最后 EndHash；类名丢失。
type ObjectVisitor interface {
	BeginObject(class Symbol, n int) error
	ObjectField(name Symbol) error
	EndObject() error
}

// HashDefaultVisitor 接收带默认值的 Hash。
//
// 调用顺序为 BeginDefaultHash(n)，随后 2n 次键值访问，再 HashDefault()，
// 紧接一次默认值访问，最后 EndHash。未实现时以 BeginHash 送达，默认值被丢弃。
type HashDefaultVisitor interface {
	BeginDefaultHash(n int) error
	HashDefault() error
}

// IvarVisitor 接收数组、Hash、对象上附带的实例变量。
// VisitIvars 在其所属复合值的 Begin* 之前调用。未实现时实例变量被丢弃。
//
// 字符串与 userdata 的实例变量随 VisitRawString/VisitUserdata 一并送达，
// 不经过本接口。
type IvarVisitor interface {
	VisitIvars(Fields) error
}

// RegexpVisitor 接收正则表达式的源码与选项位，源码的编码实例变量随 source 送达。
// 未实现时降级为 VisitRawString，选项位以整数附加在实例变量末尾，名为 RegexpFlagsField。
type RegexpVisitor interface {
	VisitRegexp(source RbString, flags byte) error
}

// ClassWrapperVisitor 接收 C（内建类型的子类）与 e（extend 的模块）前缀。
// 回调紧挨在被包装值的事件之前；有实例变量时位于 VisitIvars 之后。
// 多层前缀按线上顺序由外到内送达。未实现时前缀被丢弃，只保留内部值。
type ClassWrapperVisitor interface {
	VisitUserClass(class Symbol) error
	VisitExtended(module Symbol) error
}

// ExtendedVisitor 是实现了全部能力的访问者，例如 *Encoder。
type ExtendedVisitor interface {
	Visitor
	SymbolVisitor
	RawStringVisitor
	UserdataVisitor
	ObjectVisitor
	HashDefaultVisitor
	IvarVisitor
}

// Producer 通过向访问者发出事件来描述一个值，用于 EncodeWith。
type Producer interface {
	Produce(v ExtendedVisitor) error
}

// ProducerFunc 把函数适配为 Producer。
type ProducerFunc func(v ExtendedVisitor) error

func (f ProducerFunc) Produce(v ExtendedVisitor) error {
	return f(v)
}

// capabilities 缓存一次类型断言的结果，读取器和 Walk 共用。
type capabilities struct {
	base      Visitor
	symbol    SymbolVisitor
	rawString RawStringVisitor
	userdata  UserdataVisitor
	object    ObjectVisitor
	hashDef   HashDefaultVisitor
	ivars     IvarVisitor
	regexp    RegexpVisitor
	wrapper   ClassWrapperVisitor
}

func newCapabilities(v Visitor) *capabilities {
	c := &capabilities{base: v}
	c.symbol, _ = v.(SymbolVisitor)
	c.rawString, _ = v.(RawStringVisitor)
	c.userdata, _ = v.(UserdataVisitor)
	c.object, _ = v.(ObjectVisitor)
	c.hashDef, _ = v.(HashDefaultVisitor)
	c.ivars, _ = v.(IvarVisitor)
	c.regexp, _ = v.(RegexpVisitor)
	c.wrapper, _ = v.(ClassWrapperVisitor)
	return c
}

func (c *capabilities) visitSymbol(s Symbol) error {
	if c.symbol != nil {
		return c.symbol.VisitSymbol(s)
	}
	return c.base.VisitString(string(s))
}

func (c *capabilities) visitRawString(s RbString) error {
	if c.rawString != nil {
		return c.rawString.VisitRawString(s)
	}
	return c.base.VisitString(string(s.Data))
}

func (c *capabilities) visitUserdata(u Userdata) error {
	if c.userdata != nil {
		return c.userdata.VisitUserdata(u)
	}
	return c.base.VisitString(string(u.Data))
}

func (c *capabilities) visitRegexp(source RbString, flags byte) error {
	if c.regexp != nil {
		return c.regexp.VisitRegexp(source, flags)
	}
	ivars := make(Fields, 0, len(source.Ivars)+1)
	ivars = append(ivars, source.Ivars...)
	source.Ivars = append(ivars, Field{Name: RegexpFlagsField, Value: Integer(flags)})
	return c.visitRawString(source)
}

func (c *capabilities) visitWrapper(tag Tag, name Symbol) error {
	if c.wrapper == nil {
		return nil
	}
	if tag == TagExtended {
		return c.wrapper.VisitExtended(name)
	}
	return c.wrapper.VisitUserClass(name)
}

func (c *capabilities) visitIvars(f Fields) error {
	if c.ivars != nil && len(f) > 0 {
		return c.ivars.VisitIvars(f)
	}
	return nil
}

func (c *capabilities) beginObject(class Symbol, n int) error {
	if c.object != nil {
		return c.object.BeginObject(class, n)
	}
	return c.base.BeginHash(n)
}

func (c *capabilities) objectField(name Symbol) error {
	if c.object != nil {
		return c.object.ObjectField(name)
	}
	return c.visitSymbol(name)
}

func (c *capabilities) endObject() error {
	if c.object != nil {
		return c.object.EndObject()
	}
	return c.base.EndHash()
}

// beginHash 返回默认值是否需要送达访问者。
func (c *capabilities) beginHash(n int, hasDefault bool) (bool, error) {
	if hasDefault && c.hashDef != nil {
		return true, c.hashDef.BeginDefaultHash(n)
	}
	return false, c.base.BeginHash(n)
}

// nopVisitor 丢弃所有事件，用于跳过降级后不需要的值。
type nopVisitor struct{}

func (nopVisitor) VisitNil() error          { return nil }
func (nopVisitor) VisitBool(bool) error     { return nil }
func (nopVisitor) VisitInt(int64) error     { return nil }
func (nopVisitor) VisitFloat(float64) error { return nil }
func (nopVisitor) VisitString(string) error { return nil }
func (nopVisitor) BeginArray(int) error     { return nil }
func (nopVisitor) EndArray() error          { return nil }
func (nopVisitor) BeginHash(int) error      { return nil }
func (nopVisitor) EndHash() error           { return nil }
