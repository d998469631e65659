// Package export 将 Marshal 数据转换为 JSON、YAML 或 CBOR。
package export

import (
	"strings"

	"github.com/lk2023060901/rbmarshal-go/pkg/marshal"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

// Format 是导出格式。
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

func (f Format) String() string {
	return string(f)
}

// ParseFormat 解析格式名，忽略大小写，"yml" 视为 yaml。
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return "", merr.WrapErrParameterInvalidMsg("unknown export format %q", s)
	}
}

type options struct {
	indent  bool
	decoder []marshal.DecoderOption
}

// Option 用于配置导出行为。
type Option func(*options)

// WithIndent 让 JSON 输出带缩进。
func WithIndent(v bool) Option {
	return func(o *options) {
		o.indent = v
	}
}

// WithDecoderOptions 设置读取 Marshal 数据时使用的预算等选项。
func WithDecoderOptions(opts ...marshal.DecoderOption) Option {
	return func(o *options) {
		o.decoder = append(o.decoder, opts...)
	}
}

// NewSerializer 返回 format 对应的序列化器。
func NewSerializer(format Format, opts ...Option) (Serializer, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	switch format {
	case FormatJSON:
		return JSONSerializer{Indent: o.indent}, nil
	case FormatYAML:
		return YAMLSerializer{}, nil
	case FormatCBOR:
		return CBORSerializer{}, nil
	default:
		return nil, merr.WrapErrParameterInvalidMsg("unknown export format %q", string(format))
	}
}

// Tree 将 Marshal 数据读取为由 nil、bool、int64、float64、string、[]byte、[]any 与 *Map 组成的树。
func Tree(data []byte, opts ...Option) (any, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return tree(data, o, false)
}

func tree(data []byte, o *options, finiteFloats bool) (any, error) {
	b := &treeBuilder{finiteFloats: finiteFloats}
	if err := marshal.DecodeWith(data, b, o.decoder...); err != nil {
		return nil, err
	}
	return b.Tree()
}

// Convert 读取 Marshal 数据并按 format 输出。
func Convert(data []byte, format Format, opts ...Option) ([]byte, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	s, err := NewSerializer(format, opts...)
	if err != nil {
		return nil, err
	}
	t, err := tree(data, o, format == FormatJSON)
	if err != nil {
		return nil, err
	}
	return s.Marshal(t)
}

// ConvertValue 按 format 输出一棵已经解码的值树，降级规则与 Convert 相同。
func ConvertValue(v marshal.Value, format Format, opts ...Option) ([]byte, error) {
	s, err := NewSerializer(format, opts...)
	if err != nil {
		return nil, err
	}
	b := &treeBuilder{finiteFloats: format == FormatJSON}
	if err := marshal.Walk(v, b); err != nil {
		return nil, err
	}
	t, err := b.Tree()
	if err != nil {
		return nil, err
	}
	return s.Marshal(t)
}
