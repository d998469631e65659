package compressor

import (
	"bytes"
	"encoding/binary"

	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

// Kind 标识一种压缩容器格式。
type Kind string

const (
	KindNone Kind = "none"
	KindZstd Kind = "zstd"
	KindZlib Kind = "zlib"
	KindLZ4  Kind = "lz4"
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Compressor 抽象了“单次压缩/解压”能力。
//
// 实现不做全局单例，调用方按需创建实例并自行决定生命周期。
type Compressor interface {
	// Compress 将 src 压缩到 dst。
	//
	// dst 可以传入一个可复用的缓冲区（长度可为 0），实现可选择复用其底层容量。
	Compress(dst, src []byte) (packet []byte, err error)

	// Decompress 将压缩数据 src 解压到 dst。
	//
	// 解压结果超过 WithMaxSize 设置的上限时返回 ErrInputTooLarge。
	Decompress(dst, src []byte) (plain []byte, err error)

	// Kind 返回实现对应的容器格式。
	Kind() Kind
}

// NopCompressor 是一个空实现：不做任何压缩/解压，直接返回输入内容。
type NopCompressor struct{}

func (NopCompressor) Compress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Decompress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Kind() Kind {
	return KindNone
}

// 编译期断言：确保 NopCompressor 实现了 Compressor 接口。
var _ Compressor = NopCompressor{}

// Detect 根据魔数判断 data 的容器格式，无法识别时返回 KindNone。
func Detect(data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return KindZstd
	case bytes.HasPrefix(data, lz4Magic):
		return KindLZ4
	case isZlibHeader(data):
		return KindZlib
	default:
		return KindNone
	}
}

// zlib 头：CM=8（deflate），CINFO<=7，且 CMF/FLG 组成的 16 位整数能被 31 整除。
func isZlibHeader(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf := data[0]
	if cmf&0x0f != 8 || cmf>>4 > 7 {
		return false
	}
	return binary.BigEndian.Uint16(data)%31 == 0
}

// New 创建 kind 对应的压缩器。
func New(kind Kind, opts ...Option) (Compressor, error) {
	switch kind {
	case KindNone, "":
		return NopCompressor{}, nil
	case KindZstd:
		return NewZstdCompressor(opts...)
	case KindZlib:
		return NewZlibCompressor(opts...), nil
	case KindLZ4:
		return NewLZ4Compressor(opts...), nil
	default:
		return nil, merr.WrapErrParameterInvalidMsg("unknown compression %q", string(kind))
	}
}

// Open 探测 data 的容器格式并解压，未压缩的数据原样返回。
func Open(data []byte, opts ...Option) ([]byte, Kind, error) {
	kind := Detect(data)
	if kind == KindNone {
		return data, kind, nil
	}
	c, err := New(kind, opts...)
	if err != nil {
		return nil, kind, err
	}
	if closer, ok := c.(interface{ Close() }); ok {
		defer closer.Close()
	}
	plain, err := c.Decompress(nil, data)
	if err != nil {
		return nil, kind, err
	}
	return plain, kind, nil
}
