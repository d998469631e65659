package compressor

import (
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"

	"github.com/lk2023060901/rbmarshal-go/pkg/util/hardware"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

// ZstdCompressor 基于 github.com/klauspost/compress/zstd 的压缩实现。
//
// 它持有独立的 encoder/decoder 实例，由调用方决定生命周期与复用策略。
type ZstdCompressor struct {
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	opts *options
}

// 编译期断言：确保 ZstdCompressor 实现了 Compressor 接口。
var _ Compressor = (*ZstdCompressor)(nil)

// NewZstdCompressor 创建一个 ZstdCompressor，默认并发度为 CPU 数。
func NewZstdCompressor(opts ...Option) (*ZstdCompressor, error) {
	o := newOptions(opts...)
	concurrency := o.concurrency
	if concurrency <= 0 {
		concurrency = hardware.GetCPUNum()
	}

	eopts := []zstd.EOption{
		zstd.WithZeroFrames(true),
		zstd.WithEncoderConcurrency(concurrency),
	}
	if o.level != 0 {
		eopts = append(eopts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(o.level)))
	}
	enc, err := zstd.NewWriter(nil, eopts...)
	if err != nil {
		return nil, err
	}

	dopts := []zstd.DOption{
		zstd.WithDecoderConcurrency(concurrency),
	}
	if o.maxSize > 0 {
		dopts = append(dopts, zstd.WithDecoderMaxMemory(uint64(o.maxSize)))
	}
	dec, err := zstd.NewReader(nil, dopts...)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &ZstdCompressor{
		enc:  enc,
		dec:  dec,
		opts: o,
	}, nil
}

// Compress 实现 Compressor 接口。
func (c *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	if c == nil || c.enc == nil {
		return nil, zstd.ErrEncoderClosed
	}

	// 小于阈值时不压缩，直接返回原始数据。
	if c.opts.minCompressSize > 0 && len(src) < c.opts.minCompressSize {
		return src, nil
	}
	return c.enc.EncodeAll(src, dst[:0]), nil
}

// Decompress 实现 Compressor 接口。
func (c *ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if c == nil || c.dec == nil {
		return nil, zstd.ErrDecoderClosed
	}
	out, err := c.dec.DecodeAll(src, dst[:0])
	if err != nil {
		if errors.IsAny(err, zstd.ErrDecoderSizeExceeded, zstd.ErrWindowSizeExceeded, zstd.ErrFrameSizeExceeded) {
			return nil, merr.WrapErrInputTooLarge("bytes", len(out), c.opts.maxSize, "decompressed")
		}
		return nil, merr.WrapErrMalformedData(err.Error(), 0, "corrupt zstd stream")
	}
	return out, nil
}

func (c *ZstdCompressor) Kind() Kind {
	return KindZstd
}

// Close 释放内部 encoder/decoder 持有的资源。
//
// 再次使用已关闭实例将返回 ErrEncoderClosed/ErrDecoderClosed。
func (c *ZstdCompressor) Close() {
	if c == nil {
		return
	}
	if c.enc != nil {
		_ = c.enc.Close()
		c.enc = nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
}
