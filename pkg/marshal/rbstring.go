package marshal

// 字符串编码在 Marshal 中以实例变量表示。
const (
	// EncodingShortIvar 为 true 表示 UTF-8，为 false 表示 US-ASCII。
	EncodingShortIvar Symbol = "E"
	// EncodingNameIvar 的值为编码名字符串，例如 "Shift_JIS"。
	EncodingNameIvar Symbol = "encoding"
)

// EncodingKind 是 RbString 的编码分类。
type EncodingKind uint8

const (
	// EncodingNone 表示没有编码标记（二进制，ASCII-8BIT）。
	EncodingNone EncodingKind = iota
	EncodingASCII
	EncodingUTF8
	EncodingNamed
)

func (k EncodingKind) String() string {
	switch k {
	case EncodingASCII:
		return "US-ASCII"
	case EncodingUTF8:
		return "UTF-8"
	case EncodingNamed:
		return "named"
	default:
		return "ASCII-8BIT"
	}
}

// Encoding 描述字符串的编码标记；Name 仅在 Kind 为 EncodingNamed 时有效。
type Encoding struct {
	Kind EncodingKind
	Name string
}

// RbString 是原始字节加可选编码标记。
//
// 编码保存在 Ivars 中（E 或 encoding），与线上格式一致；Data 始终保持原样，
// 即使它不是合法的 UTF-8。
type RbString struct {
	Data  []byte
	Ivars Fields
}

func (RbString) Kind() Kind { return KindString }
func (RbString) isValue()   {}

// NewString 构造带 UTF-8 标记的字符串，与 Ruby 源码字面量一致。
func NewString(s string) RbString {
	return RbString{
		Data:  []byte(s),
		Ivars: Fields{{Name: EncodingShortIvar, Value: Bool(true)}},
	}
}

// NewBinaryString 构造不带编码标记的字符串。
func NewBinaryString(b []byte) RbString {
	return RbString{Data: b}
}

// String 返回原始字节的字符串视图，不做任何校验或转码。
func (s RbString) String() string {
	return string(s.Data)
}

// Encoding 根据实例变量推导编码标记。
func (s RbString) Encoding() Encoding {
	if v, ok := s.Ivars.Get(EncodingShortIvar); ok {
		if b, ok := v.(Bool); ok {
			if b {
				return Encoding{Kind: EncodingUTF8}
			}
			return Encoding{Kind: EncodingASCII}
		}
	}
	if v, ok := s.Ivars.Get(EncodingNameIvar); ok {
		if name, ok := v.(RbString); ok {
			return Encoding{Kind: EncodingNamed, Name: string(name.Data)}
		}
	}
	return Encoding{Kind: EncodingNone}
}

// WithEncoding 返回替换了编码标记的副本，其他实例变量保持不变。
func (s RbString) WithEncoding(enc Encoding) RbString {
	ivars := s.Ivars.Clone()
	ivars.Delete(EncodingShortIvar)
	ivars.Delete(EncodingNameIvar)

	var head Fields
	switch enc.Kind {
	case EncodingUTF8:
		head = Fields{{Name: EncodingShortIvar, Value: Bool(true)}}
	case EncodingASCII:
		head = Fields{{Name: EncodingShortIvar, Value: Bool(false)}}
	case EncodingNamed:
		head = Fields{{Name: EncodingNameIvar, Value: NewBinaryString([]byte(enc.Name))}}
	}
	if len(head) == 0 && len(ivars) == 0 {
		return RbString{Data: s.Data}
	}
	return RbString{Data: s.Data, Ivars: append(head, ivars...)}
}
