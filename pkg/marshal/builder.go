package marshal

import (
	"github.com/cockroachdb/errors"
)

type frameKind uint8

const (
	frameArray frameKind = iota
	frameHash
	frameDefaultHash
	frameObject
	frameIvars
)

func (k frameKind) String() string {
	switch k {
	case frameArray:
		return "array"
	case frameHash:
		return "hash"
	case frameDefaultHash:
		return "hash with default"
	case frameObject:
		return "object"
	default:
		return "instance variables"
	}
}

// builderFrame 是 valueBuilder 栈上的一个未完成的复合值。
type builderFrame struct {
	kind  frameKind
	ivars Fields

	elems []Value

	hash    RbHash
	key     Value
	hasKey  bool
	inDflt  bool
	dfltSet bool

	object  Object
	name    Symbol
	hasName bool
}

// valueBuilder 是把访问事件还原为 Value 树的访问者，Decode 与 Walk 测试都基于它。
type valueBuilder struct {
	stack   []*builderFrame
	pending Fields
	result  Value
	done    bool
}

var _ ExtendedVisitor = (*valueBuilder)(nil)

func newValueBuilder() *valueBuilder {
	return &valueBuilder{}
}

func (b *valueBuilder) reset() {
	b.stack = b.stack[:0]
	b.pending = nil
	b.result = nil
	b.done = false
}

// Value 返回构建完成的值；未完成时返回错误。
func (b *valueBuilder) Value() (Value, error) {
	if !b.done || len(b.stack) > 0 {
		return nil, errors.AssertionFailedf("value builder: incomplete value (depth %d)", len(b.stack))
	}
	return b.result, nil
}

func (b *valueBuilder) accept(v Value) error {
	if len(b.pending) > 0 {
		return errors.AssertionFailedf("value builder: instance variables not followed by a compound value")
	}
	if len(b.stack) == 0 {
		if b.done {
			return errors.AssertionFailedf("value builder: more than one top-level value")
		}
		b.result, b.done = v, true
		return nil
	}
	top := b.stack[len(b.stack)-1]
	switch top.kind {
	case frameArray:
		top.elems = append(top.elems, v)
	case frameHash, frameDefaultHash:
		switch {
		case top.inDflt:
			if top.dfltSet {
				return errors.AssertionFailedf("value builder: hash default visited twice")
			}
			top.hash.Default, top.dfltSet = v, true
		case !top.hasKey:
			top.key, top.hasKey = v, true
		default:
			top.hash.Entries = append(top.hash.Entries, HashEntry{Key: top.key, Value: v})
			top.key, top.hasKey = nil, false
		}
	case frameObject:
		if !top.hasName {
			return errors.AssertionFailedf("value builder: object field value without a name")
		}
		top.object.Fields = append(top.object.Fields, Field{Name: top.name, Value: v})
		top.hasName = false
	default:
		return errors.AssertionFailedf("value builder: unexpected value inside %s", top.kind)
	}
	return nil
}

func (b *valueBuilder) push(kind frameKind, n int) *builderFrame {
	f := &builderFrame{kind: kind, ivars: b.pending}
	b.pending = nil
	// n 来自不可信输入，只按剩余容量做有限的预分配。
	capHint := min(n, 1024)
	switch kind {
	case frameArray:
		f.elems = make([]Value, 0, capHint)
	case frameHash, frameDefaultHash:
		f.hash.Entries = make([]HashEntry, 0, capHint)
	case frameObject:
		f.object.Fields = make(Fields, 0, capHint)
	}
	b.stack = append(b.stack, f)
	return f
}

func (b *valueBuilder) pop(kinds ...frameKind) (*builderFrame, error) {
	if len(b.stack) == 0 {
		return nil, errors.AssertionFailedf("value builder: end without begin")
	}
	top := b.stack[len(b.stack)-1]
	for _, k := range kinds {
		if top.kind == k {
			b.stack = b.stack[:len(b.stack)-1]
			return top, nil
		}
	}
	return nil, errors.AssertionFailedf("value builder: mismatched end for %s", top.kind)
}

func (b *valueBuilder) VisitNil() error            { return b.accept(Nil{}) }
func (b *valueBuilder) VisitBool(v bool) error     { return b.accept(Bool(v)) }
func (b *valueBuilder) VisitInt(v int64) error     { return b.accept(Integer(v)) }
func (b *valueBuilder) VisitFloat(v float64) error { return b.accept(Float(v)) }

// VisitString 只会在生产方使用基础接口时出现，按 UTF-8 字符串处理。
func (b *valueBuilder) VisitString(v string) error {
	return b.accept(NewString(v))
}

func (b *valueBuilder) VisitSymbol(v Symbol) error      { return b.accept(v) }
func (b *valueBuilder) VisitRawString(v RbString) error { return b.accept(v) }
func (b *valueBuilder) VisitUserdata(v Userdata) error  { return b.accept(v) }

func (b *valueBuilder) VisitIvars(f Fields) error {
	b.pending = append(b.pending, f...)
	return nil
}

func (b *valueBuilder) BeginArray(n int) error {
	b.push(frameArray, n)
	return nil
}

func (b *valueBuilder) EndArray() error {
	f, err := b.pop(frameArray)
	if err != nil {
		return err
	}
	return b.accept(Array{Elems: f.elems, Ivars: f.ivars})
}

func (b *valueBuilder) BeginHash(n int) error {
	b.push(frameHash, n)
	return nil
}

func (b *valueBuilder) BeginDefaultHash(n int) error {
	b.push(frameDefaultHash, n)
	return nil
}

func (b *valueBuilder) HashDefault() error {
	if len(b.stack) == 0 || b.stack[len(b.stack)-1].kind != frameDefaultHash {
		return errors.AssertionFailedf("value builder: hash default outside a hash with default")
	}
	top := b.stack[len(b.stack)-1]
	if top.hasKey {
		return errors.AssertionFailedf("value builder: hash default after a dangling key")
	}
	top.inDflt = true
	return nil
}

func (b *valueBuilder) EndHash() error {
	f, err := b.pop(frameHash, frameDefaultHash)
	if err != nil {
		return err
	}
	if f.hasKey {
		return errors.AssertionFailedf("value builder: hash key without value")
	}
	h := f.hash
	h.Ivars = f.ivars
	if f.kind == frameDefaultHash && !f.dfltSet {
		return errors.AssertionFailedf("value builder: hash default missing")
	}
	return b.accept(h)
}

func (b *valueBuilder) BeginObject(class Symbol, n int) error {
	f := b.push(frameObject, n)
	f.object.Class = class
	return nil
}

func (b *valueBuilder) ObjectField(name Symbol) error {
	if len(b.stack) == 0 || b.stack[len(b.stack)-1].kind != frameObject {
		return errors.AssertionFailedf("value builder: object field outside an object")
	}
	top := b.stack[len(b.stack)-1]
	top.name, top.hasName = name, true
	return nil
}

func (b *valueBuilder) EndObject() error {
	f, err := b.pop(frameObject)
	if err != nil {
		return err
	}
	obj := f.object
	// I 包装对象时，实例变量并入字段表。
	obj.Fields = append(obj.Fields, f.ivars...)
	return b.accept(obj)
}
