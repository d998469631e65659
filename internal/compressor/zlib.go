package compressor

import (
	"bytes"

	"github.com/klauspost/compress/zlib"

	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

// ZlibCompressor 处理 zlib 容器，例如 RPG Maker 脚本包与 Rails cookie 中的 Marshal 数据。
type ZlibCompressor struct {
	opts *options
}

var _ Compressor = (*ZlibCompressor)(nil)

func NewZlibCompressor(opts ...Option) *ZlibCompressor {
	return &ZlibCompressor{opts: newOptions(opts...)}
}

func (c *ZlibCompressor) Compress(dst, src []byte) ([]byte, error) {
	if c.opts.minCompressSize > 0 && len(src) < c.opts.minCompressSize {
		return src, nil
	}
	level := c.opts.level
	if level == 0 {
		level = zlib.DefaultCompression
	}
	buf := bytes.NewBuffer(dst[:0])
	w, err := zlib.NewWriterLevel(buf, level)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("zlib level %d: %v", level, err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *ZlibCompressor) Decompress(dst, src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, merr.WrapErrMalformedData(err.Error(), 0, "corrupt zlib header")
	}
	defer r.Close()
	return c.opts.readAll(dst, r)
}

func (c *ZlibCompressor) Kind() Kind {
	return KindZlib
}
