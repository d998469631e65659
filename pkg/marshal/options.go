package marshal

import (
	"github.com/lk2023060901/rbmarshal-go/pkg/log"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

const (
	defaultMaxDepth     = 256
	defaultMaxInputSize = 256 << 20 // 256 MiB
	defaultMaxValues    = 1 << 24
)

// DecoderConfig 是解码预算，可以从配置文件的 marshal 节读取。
// 值为 0 表示使用默认值。
type DecoderConfig struct {
	// MaxDepth 为最大嵌套深度，回溯引用展开也计入深度。
	MaxDepth int `mapstructure:"max-depth" json:"max-depth" yaml:"max-depth"`
	// MaxInputSize 为输入的最大字节数。
	MaxInputSize int `mapstructure:"max-input-size" json:"max-input-size" yaml:"max-input-size"`
	// MaxValues 为一次解码最多产出的值个数，回溯引用展开出的值也计入。
	MaxValues int `mapstructure:"max-values" json:"max-values" yaml:"max-values"`
}

// DefaultDecoderConfig 返回默认解码预算。
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		MaxDepth:     defaultMaxDepth,
		MaxInputSize: defaultMaxInputSize,
		MaxValues:    defaultMaxValues,
	}
}

// Validate 拒绝负数预算。
func (c *DecoderConfig) Validate() error {
	if c.MaxDepth < 0 {
		return merr.WrapErrParameterInvalidMsg("marshal.max-depth must not be negative, got %d", c.MaxDepth)
	}
	if c.MaxInputSize < 0 {
		return merr.WrapErrParameterInvalidMsg("marshal.max-input-size must not be negative, got %d", c.MaxInputSize)
	}
	if c.MaxValues < 0 {
		return merr.WrapErrParameterInvalidMsg("marshal.max-values must not be negative, got %d", c.MaxValues)
	}
	return nil
}

func (c *DecoderConfig) initialize() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.MaxInputSize <= 0 {
		c.MaxInputSize = defaultMaxInputSize
	}
	if c.MaxValues <= 0 {
		c.MaxValues = defaultMaxValues
	}
}

type decoderOption struct {
	cfg    DecoderConfig
	logger *log.MLogger
}

type DecoderOption func(opt *decoderOption)

func defaultDecoderOption() *decoderOption {
	return &decoderOption{
		cfg: DefaultDecoderConfig(),
	}
}

// WithDecoderConfig 整体替换解码预算，0 值字段回落到默认值。
func WithDecoderConfig(cfg DecoderConfig) DecoderOption {
	return func(opt *decoderOption) {
		opt.cfg = cfg
	}
}

func WithMaxDepth(n int) DecoderOption {
	return func(opt *decoderOption) {
		opt.cfg.MaxDepth = n
	}
}

func WithMaxInputSize(n int) DecoderOption {
	return func(opt *decoderOption) {
		opt.cfg.MaxInputSize = n
	}
}

func WithMaxValues(n int) DecoderOption {
	return func(opt *decoderOption) {
		opt.cfg.MaxValues = n
	}
}

// WithLogger 指定解码器使用的日志器，默认使用全局日志器。
func WithLogger(logger *log.MLogger) DecoderOption {
	return func(opt *decoderOption) {
		opt.logger = logger
	}
}

// EncoderConfig 是编码选项，可以从配置文件的 marshal 节读取。
type EncoderConfig struct {
	// SymbolLinks 为 true 时，重复出现的符号写为 ';' 回溯引用。
	// 对象回溯引用永远不会生成。
	SymbolLinks bool `mapstructure:"symbol-links" json:"symbol-links" yaml:"symbol-links"`
}

type EncoderOption func(cfg *EncoderConfig)

func WithEncoderConfig(cfg EncoderConfig) EncoderOption {
	return func(c *EncoderConfig) {
		*c = cfg
	}
}

func WithSymbolLinks(v bool) EncoderOption {
	return func(c *EncoderConfig) {
		c.SymbolLinks = v
	}
}
