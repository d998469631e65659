package compressor

import (
	"bytes"
	"io"

	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

type options struct {
	// concurrency 仅对 zstd 生效，<= 0 时使用 CPU 数。
	concurrency int
	// level 为压缩级别，0 表示各实现的默认级别。
	level int
	// maxSize 为解压结果的字节上限，0 表示不限制。
	maxSize int
	// minCompressSize 小于该长度的输入不压缩。
	minCompressSize int
}

// Option 用于配置压缩器。
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

func WithLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

func WithMaxSize(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxSize = n
	}
}

func WithMinCompressSize(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.minCompressSize = n
	}
}

// readAll 将 r 读入 dst，超过 maxSize 时返回 ErrInputTooLarge。
func (o *options) readAll(dst []byte, r io.Reader) ([]byte, error) {
	if o.maxSize > 0 {
		r = io.LimitReader(r, int64(o.maxSize)+1)
	}
	buf := bytes.NewBuffer(dst[:0])
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, merr.WrapErrMalformedData(err.Error(), buf.Len(), "corrupt compressed stream")
	}
	if o.maxSize > 0 && buf.Len() > o.maxSize {
		return nil, merr.WrapErrInputTooLarge("bytes", buf.Len(), o.maxSize, "decompressed")
	}
	return buf.Bytes(), nil
}
