package marshal

import (
	"fmt"
	"unicode/utf8"

	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

type encFrame struct {
	kind      frameKind
	remaining int
	ivars     Fields

	name        Symbol
	hasName     bool
	inDefault   bool
	defaultDone bool
}

// Encoder 是把访问事件写成 Marshal 字节的访问者。
//
// 它实现全部能力接口，因此既可以直接作为 DecodeWith 的目标做转码，
// 也可以由 Walk 或 Producer 驱动。事件序列不合法时返回
// ErrUnrepresentableValue，此后所有调用都返回同一个错误。
//
// Encoder 不是并发安全的。用完后调用 Release 归还缓冲区。
type Encoder struct {
	cfg     EncoderConfig
	w       *writer
	self    *capabilities
	stack   []encFrame
	pending Fields
	symbols map[Symbol]int
	done    bool
	err     error
}

var _ ExtendedVisitor = (*Encoder)(nil)

// NewEncoder 创建编码器并写入版本头。
func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{w: newWriter()}
	for _, o := range opts {
		o(&e.cfg)
	}
	e.self = newCapabilities(e)
	e.Reset()
	return e
}

// Reset 丢弃已写入的内容与错误状态，从新的版本头开始。
func (e *Encoder) Reset() {
	e.w.buf.Reset()
	e.w.writeByte(MajorVersion)
	e.w.writeByte(MinorVersion)
	e.stack = e.stack[:0]
	e.pending = nil
	e.symbols = nil
	e.done = false
	e.err = nil
}

// Bytes 返回完整的编码结果。结果是独立副本，之后 Reset 不会影响它。
func (e *Encoder) Bytes() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	if !e.done || len(e.stack) > 0 {
		return nil, merr.WrapErrUnrepresentableValue(fmt.Sprintf("incomplete value, %d open containers", len(e.stack)))
	}
	return e.w.bytes(), nil
}

// Release 归还内部缓冲区，之后不能再使用该 Encoder。
func (e *Encoder) Release() {
	e.w.release()
}

// Encode 把一棵 Value 树编码为 Marshal 4.8 字节。
func Encode(v Value, opts ...EncoderOption) ([]byte, error) {
	e := NewEncoder(opts...)
	defer e.Release()
	if err := walk(v, e.self); err != nil {
		return nil, err
	}
	return e.Bytes()
}

// EncodeWith 由 Producer 发出事件并编码。
func EncodeWith(p Producer, opts ...EncoderOption) ([]byte, error) {
	if p == nil {
		return nil, merr.WrapErrParameterInvalidMsg("marshal: nil producer")
	}
	e := NewEncoder(opts...)
	defer e.Release()
	if err := p.Produce(e); err != nil {
		return nil, err
	}
	return e.Bytes()
}

func (e *Encoder) fail(format string, args ...any) error {
	if e.err == nil {
		e.err = merr.WrapErrUnrepresentableValue(fmt.Sprintf(format, args...))
	}
	return e.err
}

func (e *Encoder) check(err error) error {
	if err != nil && e.err == nil {
		e.err = err
	}
	return err
}

// beginValue 在每个值开始前校验它在当前容器中的位置是否合法。
func (e *Encoder) beginValue() error {
	if e.err != nil {
		return e.err
	}
	if len(e.stack) == 0 {
		if e.done {
			return e.fail("more than one top-level value")
		}
		return nil
	}
	top := &e.stack[len(e.stack)-1]
	switch top.kind {
	case frameArray, frameHash:
		if top.remaining == 0 {
			return e.fail("too many values in %s", top.kind)
		}
		top.remaining--
	case frameDefaultHash:
		switch {
		case top.inDefault && !top.defaultDone:
			top.defaultDone = true
		case top.remaining > 0 && !top.inDefault:
			top.remaining--
		default:
			return e.fail("too many values in %s", top.kind)
		}
	case frameObject:
		if !top.hasName {
			return e.fail("object field value without a name")
		}
		top.hasName = false
	}
	return nil
}

func (e *Encoder) endValue() {
	if len(e.stack) == 0 {
		e.done = true
	}
}

func (e *Encoder) beginLeaf() error {
	if err := e.beginValue(); err != nil {
		return err
	}
	if len(e.pending) > 0 {
		return e.fail("instance variables must precede an array, hash or object")
	}
	return nil
}

func (e *Encoder) VisitNil() error {
	if err := e.beginLeaf(); err != nil {
		return err
	}
	e.w.writeTag(TagNil)
	e.endValue()
	return nil
}

func (e *Encoder) VisitBool(v bool) error {
	if err := e.beginLeaf(); err != nil {
		return err
	}
	if v {
		e.w.writeTag(TagTrue)
	} else {
		e.w.writeTag(TagFalse)
	}
	e.endValue()
	return nil
}

// VisitInt 写入 [PackedIntMin, PackedIntMax] 内的整数，超出范围时失败。
func (e *Encoder) VisitInt(v int64) error {
	if err := e.beginLeaf(); err != nil {
		return err
	}
	e.w.writeTag(TagInteger)
	if err := e.check(e.w.writePackedInt(v)); err != nil {
		return err
	}
	e.endValue()
	return nil
}

func (e *Encoder) VisitFloat(v float64) error {
	if err := e.beginLeaf(); err != nil {
		return err
	}
	e.w.writeTag(TagFloat)
	if err := e.check(e.w.writeLengthPrefixed([]byte(formatFloat(v)))); err != nil {
		return err
	}
	e.endValue()
	return nil
}

// VisitString 把合法 UTF-8 写为带 E 标记的字符串，否则写为二进制字符串。
func (e *Encoder) VisitString(v string) error {
	if err := e.beginLeaf(); err != nil {
		return err
	}
	var ivars Fields
	if utf8.ValidString(v) {
		ivars = Fields{{Name: EncodingShortIvar, Value: Bool(true)}}
	}
	if err := e.writeString([]byte(v), ivars); err != nil {
		return err
	}
	e.endValue()
	return nil
}

// VisitRawString 原样写出字节与实例变量。
func (e *Encoder) VisitRawString(v RbString) error {
	if err := e.beginLeaf(); err != nil {
		return err
	}
	if err := e.writeString(v.Data, v.Ivars); err != nil {
		return err
	}
	e.endValue()
	return nil
}

func (e *Encoder) writeString(data []byte, ivars Fields) error {
	if len(ivars) > 0 {
		e.w.writeTag(TagInstance)
	}
	e.w.writeTag(TagString)
	if err := e.check(e.w.writeLengthPrefixed(data)); err != nil {
		return err
	}
	if len(ivars) > 0 {
		return e.writeIvars(ivars)
	}
	return nil
}

func (e *Encoder) VisitSymbol(v Symbol) error {
	if err := e.beginLeaf(); err != nil {
		return err
	}
	if err := e.writeSymbol(v); err != nil {
		return err
	}
	e.endValue()
	return nil
}

func (e *Encoder) writeSymbol(s Symbol) error {
	if e.cfg.SymbolLinks {
		if idx, ok := e.symbols[s]; ok {
			e.w.writeTag(TagSymlink)
			return e.check(e.w.writePackedInt(int64(idx)))
		}
		if e.symbols == nil {
			e.symbols = make(map[Symbol]int)
		}
		e.symbols[s] = len(e.symbols)
	}
	e.w.writeTag(TagSymbol)
	return e.check(e.w.writeLengthPrefixed([]byte(s)))
}

func (e *Encoder) VisitUserdata(v Userdata) error {
	if err := e.beginLeaf(); err != nil {
		return err
	}
	if len(v.Ivars) > 0 {
		e.w.writeTag(TagInstance)
	}
	e.w.writeTag(TagUserDef)
	if err := e.writeSymbol(v.Class); err != nil {
		return err
	}
	if err := e.check(e.w.writeLengthPrefixed(v.Data)); err != nil {
		return err
	}
	if len(v.Ivars) > 0 {
		if err := e.writeIvars(v.Ivars); err != nil {
			return err
		}
	}
	e.endValue()
	return nil
}

// VisitIvars 暂存实例变量，由紧随其后的数组、Hash 或对象写出。
func (e *Encoder) VisitIvars(f Fields) error {
	if e.err != nil {
		return e.err
	}
	e.pending = append(e.pending, f...)
	return nil
}

// writeIvars 写出实例变量表，值经 walk 递归写入。
func (e *Encoder) writeIvars(f Fields) error {
	if err := e.check(e.w.writePackedInt(int64(len(f)))); err != nil {
		return err
	}
	e.stack = append(e.stack, encFrame{kind: frameIvars})
	for _, field := range f {
		if err := e.writeSymbol(field.Name); err != nil {
			return err
		}
		if err := walk(field.Value, e.self); err != nil {
			return e.check(err)
		}
	}
	e.stack = e.stack[:len(e.stack)-1]
	return nil
}

func (e *Encoder) beginCompound(kind frameKind, tag Tag, n, perElem int) error {
	if n < 0 {
		return e.fail("negative %s length %d", kind, n)
	}
	if err := e.beginValue(); err != nil {
		return err
	}
	if len(e.pending) > 0 {
		e.w.writeTag(TagInstance)
	}
	e.w.writeTag(tag)
	e.stack = append(e.stack, encFrame{kind: kind, remaining: n * perElem, ivars: e.pending})
	e.pending = nil
	return nil
}

func (e *Encoder) endCompound(kinds ...frameKind) error {
	if e.err != nil {
		return e.err
	}
	if len(e.stack) == 0 {
		return e.fail("end without begin")
	}
	top := e.stack[len(e.stack)-1]
	matched := false
	for _, k := range kinds {
		matched = matched || top.kind == k
	}
	if !matched {
		return e.fail("mismatched end for %s", top.kind)
	}
	if top.remaining > 0 || top.hasName {
		return e.fail("%s closed with %d values missing", top.kind, top.remaining)
	}
	if top.kind == frameDefaultHash && !top.defaultDone {
		return e.fail("hash default missing")
	}
	e.stack = e.stack[:len(e.stack)-1]
	if len(top.ivars) > 0 {
		if err := e.writeIvars(top.ivars); err != nil {
			return err
		}
	}
	e.endValue()
	return nil
}

func (e *Encoder) BeginArray(n int) error {
	if err := e.beginCompound(frameArray, TagArray, n, 1); err != nil {
		return err
	}
	return e.check(e.w.writePackedInt(int64(n)))
}

func (e *Encoder) EndArray() error {
	return e.endCompound(frameArray)
}

func (e *Encoder) BeginHash(n int) error {
	if err := e.beginCompound(frameHash, TagHash, n, 2); err != nil {
		return err
	}
	return e.check(e.w.writePackedInt(int64(n)))
}

func (e *Encoder) BeginDefaultHash(n int) error {
	if err := e.beginCompound(frameDefaultHash, TagHashDefault, n, 2); err != nil {
		return err
	}
	return e.check(e.w.writePackedInt(int64(n)))
}

func (e *Encoder) HashDefault() error {
	if e.err != nil {
		return e.err
	}
	if len(e.stack) == 0 || e.stack[len(e.stack)-1].kind != frameDefaultHash {
		return e.fail("hash default outside a hash with default")
	}
	top := &e.stack[len(e.stack)-1]
	if top.remaining > 0 || top.inDefault {
		return e.fail("hash default before all entries were written")
	}
	top.inDefault = true
	return nil
}

func (e *Encoder) EndHash() error {
	return e.endCompound(frameHash, frameDefaultHash)
}

func (e *Encoder) BeginObject(class Symbol, n int) error {
	if err := e.beginCompound(frameObject, TagObject, n, 1); err != nil {
		return err
	}
	if err := e.writeSymbol(class); err != nil {
		return err
	}
	return e.check(e.w.writePackedInt(int64(n)))
}

func (e *Encoder) ObjectField(name Symbol) error {
	if e.err != nil {
		return e.err
	}
	if len(e.stack) == 0 || e.stack[len(e.stack)-1].kind != frameObject {
		return e.fail("object field outside an object")
	}
	top := &e.stack[len(e.stack)-1]
	if top.hasName {
		return e.fail("object field %s has no value", top.name)
	}
	if top.remaining == 0 {
		return e.fail("too many fields in object")
	}
	top.remaining--
	top.name, top.hasName = name, true
	return e.writeSymbol(name)
}

func (e *Encoder) EndObject() error {
	return e.endCompound(frameObject)
}
