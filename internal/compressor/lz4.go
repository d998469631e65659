package compressor

import (
	"bytes"

	"github.com/pierrec/lz4/v4"
)

// LZ4Compressor 处理 lz4 frame 容器。
type LZ4Compressor struct {
	opts *options
}

var _ Compressor = (*LZ4Compressor)(nil)

func NewLZ4Compressor(opts ...Option) *LZ4Compressor {
	return &LZ4Compressor{opts: newOptions(opts...)}
}

// lz4Level 将 1..9 映射到 lz4 的压缩级别，其余值使用 Fast。
func lz4Level(level int) lz4.CompressionLevel {
	switch {
	case level <= 0:
		return lz4.Fast
	case level >= 9:
		return lz4.Level9
	default:
		return lz4.CompressionLevel(1 << (8 + level))
	}
}

func (c *LZ4Compressor) Compress(dst, src []byte) ([]byte, error) {
	if c.opts.minCompressSize > 0 && len(src) < c.opts.minCompressSize {
		return src, nil
	}
	buf := bytes.NewBuffer(dst[:0])
	w := lz4.NewWriter(buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4Level(c.opts.level))); err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *LZ4Compressor) Decompress(dst, src []byte) ([]byte, error) {
	return c.opts.readAll(dst, lz4.NewReader(bytes.NewReader(src)))
}

func (c *LZ4Compressor) Kind() Kind {
	return KindLZ4
}
