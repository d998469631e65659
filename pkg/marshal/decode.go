package marshal

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/rbmarshal-go/pkg/log"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

// Decoder 把 Marshal 字节解码为 Value，或直接驱动一个访问者。
//
// Decoder 本身只保存配置，可以被多个 goroutine 并发使用；每次调用的
// 符号表与对象表都是调用内的局部状态，调用返回后即丢弃。
type Decoder struct {
	cfg    DecoderConfig
	logger *log.MLogger
}

// NewDecoder 创建解码器，预算为负数时返回 ErrParameterInvalid。
func NewDecoder(opts ...DecoderOption) (*Decoder, error) {
	opt := defaultDecoderOption()
	for _, o := range opts {
		o(opt)
	}
	if err := opt.cfg.Validate(); err != nil {
		return nil, err
	}
	opt.cfg.initialize()

	logger := opt.logger
	if logger == nil {
		logger = log.With(log.FieldModule("marshal"))
	}
	return &Decoder{
		cfg:    opt.cfg,
		logger: logger.With(log.FieldComponent("decoder")).WithRateGroup("marshal.decoder", 1, 60),
	}, nil
}

// Config 返回生效的解码预算。
func (d *Decoder) Config() DecoderConfig {
	return d.cfg
}

// Decode 解码出一棵 Value 树。失败时不会返回部分结果。
func (d *Decoder) Decode(data []byte) (Value, error) {
	b := newValueBuilder()
	if err := d.DecodeWith(data, b); err != nil {
		return nil, err
	}
	return b.Value()
}

// DecodeWith 直接驱动访问者。访问者实现的能力接口会收到精确的回调，
// 未实现的能力按 Visitor 文档中的规则降级。失败时访问者可能已经收到部分事件，
// 调用方应丢弃其状态。
func (d *Decoder) DecodeWith(data []byte, v Visitor) error {
	if v == nil {
		return merr.WrapErrParameterInvalidMsg("marshal: nil visitor")
	}
	r := &reader{
		cursor: cursor{data: data},
		cfg:    &d.cfg,
		logger: d.logger,
	}
	return r.decode(newCapabilities(v))
}

// Decode 使用给定选项解码出一棵 Value 树。
func Decode(data []byte, opts ...DecoderOption) (Value, error) {
	d, err := NewDecoder(opts...)
	if err != nil {
		return nil, err
	}
	return d.Decode(data)
}

// DecodeWith 使用给定选项驱动访问者。
func DecodeWith(data []byte, v Visitor, opts ...DecoderOption) error {
	d, err := NewDecoder(opts...)
	if err != nil {
		return err
	}
	return d.DecodeWith(data, v)
}

// ReadHeader 只读取两字节版本头，不做版本校验。
func ReadHeader(data []byte) (major, minor byte, err error) {
	c := cursor{data: data}
	if major, err = c.readByte(); err != nil {
		return 0, 0, err
	}
	if minor, err = c.readByte(); err != nil {
		return 0, 0, err
	}
	return major, minor, nil
}

var discard = newCapabilities(nopVisitor{})

type segKind uint8

const (
	segIndex segKind = iota
	segKey
	segValue
	segDefault
	segField
	segLink
)

type pathSeg struct {
	kind  segKind
	index int
	name  Symbol
}

func renderPath(segs []pathSeg) string {
	var sb strings.Builder
	sb.WriteByte('$')
	for _, s := range segs {
		switch s.kind {
		case segIndex:
			sb.WriteString("[" + strconv.Itoa(s.index) + "]")
		case segKey:
			sb.WriteString("{" + strconv.Itoa(s.index) + ":key}")
		case segValue:
			sb.WriteString("{" + strconv.Itoa(s.index) + "}")
		case segDefault:
			sb.WriteString("{default}")
		case segField:
			sb.WriteString("." + string(s.name))
		case segLink:
			sb.WriteString("->@" + strconv.Itoa(s.index))
		}
	}
	return sb.String()
}

// reader 保存一次解码调用的全部状态。
type reader struct {
	cursor
	cfg    *DecoderConfig
	logger *log.MLogger

	// symbols 按首次出现顺序编号。
	symbols []Symbol
	// objects 保存可链接值的起始偏移，回溯引用通过回放该位置来展开。
	objects []int
	// replaying 大于 0 时处于回放中，不再登记符号与对象。
	replaying int

	depth  int
	values int

	path     []pathSeg
	errPath  string
	pathDone bool
}

func (r *reader) decode(c *capabilities) error {
	if len(r.data) > r.cfg.MaxInputSize {
		return merr.WrapErrInputTooLarge("bytes", len(r.data), r.cfg.MaxInputSize)
	}
	if err := r.readHeader(); err != nil {
		return err
	}
	if err := r.readValue(c); err != nil {
		if r.errPath != "" {
			return errors.Wrapf(err, "at %s", r.errPath)
		}
		return err
	}
	if r.remaining() > 0 {
		r.logger.RatedDebug(1, "trailing bytes after top-level value",
			log.FieldOffset(r.pos),
			zap.Int("trailing", r.remaining()))
	}
	return nil
}

func (r *reader) readHeader() error {
	major, err := r.readByte()
	if err != nil {
		return err
	}
	minor, err := r.readByte()
	if err != nil {
		return err
	}
	if major != MajorVersion {
		return merr.WrapErrUnsupportedVersion(major, minor)
	}
	if minor != MinorVersion {
		r.logger.RatedWarn(1, "marshal minor version differs, decoding anyway",
			zap.Uint8("major", major),
			zap.Uint8("minor", minor))
	}
	return nil
}

func (r *reader) register(at int) {
	if r.replaying == 0 {
		r.objects = append(r.objects, at)
	}
}

// readValue 读取一个值，并在首次出错时记下当前路径。
func (r *reader) readValue(c *capabilities) error {
	err := r.readValueAt(c, -1)
	if err != nil && !r.pathDone {
		r.errPath, r.pathDone = renderPath(r.path), true
	}
	return err
}

func (r *reader) child(seg pathSeg, c *capabilities) error {
	r.path = append(r.path, seg)
	err := r.readValue(c)
	r.path = r.path[:len(r.path)-1]
	return err
}

// readValueAt 读取一个值；linkAt >= 0 时以该偏移登记对象表（用于 I 包装）。
func (r *reader) readValueAt(c *capabilities, linkAt int) error {
	if r.depth >= r.cfg.MaxDepth {
		return merr.WrapErrRecursionLimitExceeded(r.cfg.MaxDepth, r.pos)
	}
	r.depth++
	defer func() { r.depth-- }()

	r.values++
	if r.values > r.cfg.MaxValues {
		return merr.WrapErrInputTooLarge("values", r.values, r.cfg.MaxValues)
	}

	start := r.pos
	b, err := r.readByte()
	if err != nil {
		return err
	}
	info, ok := lookupTag(b)
	if !ok {
		return merr.WrapErrUnknownTag(b, start)
	}
	if info.unsupported {
		return merr.WrapErrUnsupportedType(info.name, start)
	}
	if linkAt < 0 {
		linkAt = start
	}

	switch tag := Tag(b); tag {
	case TagNil:
		return c.base.VisitNil()
	case TagTrue:
		return c.base.VisitBool(true)
	case TagFalse:
		return c.base.VisitBool(false)
	case TagInteger:
		n, err := r.readPackedInt()
		if err != nil {
			return err
		}
		return c.base.VisitInt(n)
	case TagFloat:
		r.register(linkAt)
		f, err := r.readFloat()
		if err != nil {
			return err
		}
		return c.base.VisitFloat(f)
	case TagString:
		r.register(linkAt)
		data, err := r.readOwnedBytes()
		if err != nil {
			return err
		}
		return c.visitRawString(RbString{Data: data})
	case TagSymbol:
		s, err := r.readSymbolBody()
		if err != nil {
			return err
		}
		return c.visitSymbol(s)
	case TagSymlink:
		s, err := r.readSymlinkBody()
		if err != nil {
			return err
		}
		return c.visitSymbol(s)
	case TagArray:
		r.register(linkAt)
		return r.readArray(c)
	case TagHash, TagHashDefault:
		r.register(linkAt)
		return r.readHash(c, tag == TagHashDefault)
	case TagObject, TagStruct:
		// Struct 与对象的线上布局相同：类名、成员数、成员名与值。
		r.register(linkAt)
		return r.readObject(c)
	case TagUserDef:
		u, err := r.readUserdataBody()
		if err != nil {
			return err
		}
		r.register(linkAt)
		return c.visitUserdata(u)
	case TagUserMarshal, TagData:
		r.register(linkAt)
		return r.readDumped(c)
	case TagRegexp:
		r.register(linkAt)
		source, flags, err := r.readRegexpBody()
		if err != nil {
			return err
		}
		return c.visitRegexp(source, flags)
	case TagUserClass, TagExtended:
		// 前缀本身不占对象槽位，内部值以前缀的起始偏移登记。
		name, err := r.readSymbolRef()
		if err != nil {
			return err
		}
		if err := c.visitWrapper(tag, name); err != nil {
			return err
		}
		return r.readValueAt(c, linkAt)
	case TagClassRef, TagModuleRef, TagModuleRefLegacy:
		// 类与模块只保留名字，不做类型重建。
		r.register(linkAt)
		name, err := r.readOwnedBytes()
		if err != nil {
			return err
		}
		return c.visitRawString(RbString{Data: name})
	case TagObjectLink:
		return r.readObjectLink(c)
	case TagInstance:
		return r.readInstance(c, linkAt)
	}
	return merr.WrapErrUnsupportedType(info.name, start)
}

func (r *reader) readOwnedBytes() ([]byte, error) {
	raw, err := r.readLengthPrefixed()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(raw), nil
}

func (r *reader) readFloat() (float64, error) {
	start := r.pos
	raw, err := r.readLengthPrefixed()
	if err != nil {
		return 0, err
	}
	f, err := parseFloat(raw)
	if err != nil {
		return 0, merr.WrapErrMalformedData(fmt.Sprintf("invalid float %q", raw), start)
	}
	return f, nil
}

// checkCount 在复合值声明的元素数明显超过剩余字节时提前失败，每个元素至少占一个字节。
func (r *reader) checkCount(n, perElem int) error {
	if n > r.remaining()/perElem {
		return merr.WrapErrUnexpectedEOF(len(r.data))
	}
	return nil
}

func (r *reader) readArray(c *capabilities) error {
	n, err := r.readLength()
	if err != nil {
		return err
	}
	if err := r.checkCount(n, 1); err != nil {
		return err
	}
	if err := c.base.BeginArray(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := r.child(pathSeg{kind: segIndex, index: i}, c); err != nil {
			return err
		}
	}
	return c.base.EndArray()
}

func (r *reader) readHash(c *capabilities, hasDefault bool) error {
	n, err := r.readLength()
	if err != nil {
		return err
	}
	if err := r.checkCount(n, 2); err != nil {
		return err
	}
	deliverDefault, err := c.beginHash(n, hasDefault)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := r.child(pathSeg{kind: segKey, index: i}, c); err != nil {
			return err
		}
		if err := r.child(pathSeg{kind: segValue, index: i}, c); err != nil {
			return err
		}
	}
	if hasDefault {
		target := discard
		if deliverDefault {
			if err := c.hashDef.HashDefault(); err != nil {
				return err
			}
			target = c
		}
		if err := r.child(pathSeg{kind: segDefault}, target); err != nil {
			return err
		}
	}
	return c.base.EndHash()
}

func (r *reader) readObject(c *capabilities) error {
	class, err := r.readSymbolRef()
	if err != nil {
		return err
	}
	n, err := r.readLength()
	if err != nil {
		return err
	}
	if err := r.checkCount(n, 2); err != nil {
		return err
	}
	if err := c.beginObject(class, n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		name, err := r.readSymbolRef()
		if err != nil {
			return err
		}
		if err := c.objectField(name); err != nil {
			return err
		}
		if err := r.child(pathSeg{kind: segField, name: name}, c); err != nil {
			return err
		}
	}
	return c.endObject()
}

func (r *reader) readUserdataBody() (Userdata, error) {
	class, err := r.readSymbolRef()
	if err != nil {
		return Userdata{}, err
	}
	data, err := r.readOwnedBytes()
	if err != nil {
		return Userdata{}, err
	}
	return Userdata{Class: class, Data: data}, nil
}

// readDumped 读取 U 与 d：类名之后是 marshal_dump 或 _dump_data 的结果，
// 以单字段对象送达，字段名为 MarshalDataField。
func (r *reader) readDumped(c *capabilities) error {
	class, err := r.readSymbolRef()
	if err != nil {
		return err
	}
	if err := c.beginObject(class, 1); err != nil {
		return err
	}
	if err := c.objectField(MarshalDataField); err != nil {
		return err
	}
	if err := r.child(pathSeg{kind: segField, name: MarshalDataField}, c); err != nil {
		return err
	}
	return c.endObject()
}

func (r *reader) readRegexpBody() (RbString, byte, error) {
	source, err := r.readOwnedBytes()
	if err != nil {
		return RbString{}, 0, err
	}
	flags, err := r.readByte()
	if err != nil {
		return RbString{}, 0, err
	}
	return RbString{Data: source}, flags, nil
}

// readObjectLink 通过回放被引用值的字节来展开回溯引用，结果是独立副本。
// 环形引用会不断回放，最终触发深度预算。
func (r *reader) readObjectLink(c *capabilities) error {
	idx, err := r.readPackedInt()
	if err != nil {
		return err
	}
	if idx < 0 || idx >= int64(len(r.objects)) {
		return merr.WrapErrInvalidBackReference("object", int(idx), len(r.objects))
	}
	saved := r.pos
	r.pos = r.objects[idx]
	r.replaying++
	err = r.child(pathSeg{kind: segLink, index: int(idx)}, c)
	r.replaying--
	r.pos = saved
	return err
}

// classWrapper 是 I 包装内、被包装值之前的一个 C 或 e 前缀。
type classWrapper struct {
	tag  Tag
	name Symbol
}

func (r *reader) visitWrappers(c *capabilities, wraps []classWrapper) error {
	for _, w := range wraps {
		if err := c.visitWrapper(w.tag, w.name); err != nil {
			return err
		}
	}
	return nil
}

// readInstance 处理 I 包装：内部值之后跟随实例变量表。
// 内部值前可以有若干 C/e 前缀，实例变量属于最内层的值。
func (r *reader) readInstance(c *capabilities, linkAt int) error {
	var wraps []classWrapper
	for {
		b, err := r.peekByte()
		if err != nil {
			return err
		}
		if Tag(b) != TagUserClass && Tag(b) != TagExtended {
			break
		}
		r.pos++
		name, err := r.readSymbolRef()
		if err != nil {
			return err
		}
		wraps = append(wraps, classWrapper{tag: Tag(b), name: name})
	}

	innerStart := r.pos
	b, err := r.peekByte()
	if err != nil {
		return err
	}
	switch Tag(b) {
	case TagString:
		r.pos++
		r.register(linkAt)
		data, err := r.readOwnedBytes()
		if err != nil {
			return err
		}
		ivars, err := r.readIvars()
		if err != nil {
			return err
		}
		if err := r.visitWrappers(c, wraps); err != nil {
			return err
		}
		return c.visitRawString(RbString{Data: data, Ivars: ivars})
	case TagRegexp:
		r.pos++
		r.register(linkAt)
		source, flags, err := r.readRegexpBody()
		if err != nil {
			return err
		}
		if source.Ivars, err = r.readIvars(); err != nil {
			return err
		}
		if err := r.visitWrappers(c, wraps); err != nil {
			return err
		}
		return c.visitRegexp(source, flags)
	case TagUserDef:
		// 实例变量中的可链接值先于 userdata 本身登记。
		r.pos++
		u, err := r.readUserdataBody()
		if err != nil {
			return err
		}
		if u.Ivars, err = r.readIvars(); err != nil {
			return err
		}
		r.register(linkAt)
		if err := r.visitWrappers(c, wraps); err != nil {
			return err
		}
		return c.visitUserdata(u)
	case TagSymbol, TagSymlink:
		// 符号上的实例变量只有编码信息，直接丢弃。
		s, err := r.readSymbolRef()
		if err != nil {
			return err
		}
		if err := r.skipIvars(); err != nil {
			return err
		}
		if err := r.visitWrappers(c, wraps); err != nil {
			return err
		}
		return c.visitSymbol(s)
	case TagNil, TagTrue, TagFalse, TagInteger, TagFloat:
		return merr.WrapErrUnsupportedType("instance variables on "+Tag(b).String(), innerStart)
	}

	// 复合值的事件必须在实例变量之后送达，因此先以丢弃模式读一遍：
	// 这一遍负责登记符号与对象并定位实例变量，随后回放内部值。
	if err := r.readValueAt(discard, linkAt); err != nil {
		return err
	}
	if c == discard {
		return r.skipIvars()
	}
	ivars, err := r.readIvars()
	if err != nil {
		return err
	}
	end := r.pos
	if err := c.visitIvars(ivars); err != nil {
		return err
	}
	if err := r.visitWrappers(c, wraps); err != nil {
		return err
	}
	r.pos = innerStart
	r.replaying++
	err = r.readValueAt(c, linkAt)
	r.replaying--
	r.pos = end
	return err
}

func (r *reader) readIvars() (Fields, error) {
	n, err := r.readLength()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if err := r.checkCount(n, 2); err != nil {
		return nil, err
	}

	fields := make(Fields, 0, n)
	var (
		b    *valueBuilder
		caps *capabilities
	)
	for i := 0; i < n; i++ {
		name, err := r.readSymbolRef()
		if err != nil {
			return nil, err
		}
		// 绝大多数实例变量是字符串编码标记 E => true/false。
		if t, err := r.peekByte(); err == nil && (Tag(t) == TagTrue || Tag(t) == TagFalse) {
			r.pos++
			fields = append(fields, Field{Name: name, Value: Bool(Tag(t) == TagTrue)})
			continue
		}
		if b == nil {
			b = newValueBuilder()
			caps = newCapabilities(b)
		}
		b.reset()
		if err := r.child(pathSeg{kind: segField, name: name}, caps); err != nil {
			return nil, err
		}
		v, err := b.Value()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Value: v})
	}
	return fields, nil
}

func (r *reader) skipIvars() error {
	n, err := r.readLength()
	if err != nil {
		return err
	}
	if err := r.checkCount(n, 2); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		name, err := r.readSymbolRef()
		if err != nil {
			return err
		}
		if err := r.child(pathSeg{kind: segField, name: name}, discard); err != nil {
			return err
		}
	}
	return nil
}

// readSymbolRef 读取类名或实例变量名，只接受符号、符号引用或 I 包装的符号。
func (r *reader) readSymbolRef() (Symbol, error) {
	start := r.pos
	b, err := r.readByte()
	if err != nil {
		return "", err
	}
	switch Tag(b) {
	case TagSymbol:
		return r.readSymbolBody()
	case TagSymlink:
		return r.readSymlinkBody()
	case TagInstance:
		inner, err := r.readByte()
		if err != nil {
			return "", err
		}
		var s Symbol
		switch Tag(inner) {
		case TagSymbol:
			s, err = r.readSymbolBody()
		case TagSymlink:
			s, err = r.readSymlinkBody()
		default:
			return "", merr.WrapErrMalformedData(fmt.Sprintf("expected symbol, found %s", Tag(inner)), start+1)
		}
		if err != nil {
			return "", err
		}
		if err := r.skipIvars(); err != nil {
			return "", err
		}
		return s, nil
	}
	return "", merr.WrapErrMalformedData(fmt.Sprintf("expected symbol, found %s", Tag(b)), start)
}

func (r *reader) readSymbolBody() (Symbol, error) {
	raw, err := r.readLengthPrefixed()
	if err != nil {
		return "", err
	}
	s := Symbol(raw)
	if r.replaying == 0 {
		r.symbols = append(r.symbols, s)
	}
	return s, nil
}

func (r *reader) readSymlinkBody() (Symbol, error) {
	idx, err := r.readPackedInt()
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= int64(len(r.symbols)) {
		return "", merr.WrapErrInvalidBackReference("symbol", int(idx), len(r.symbols))
	}
	return r.symbols[idx], nil
}
