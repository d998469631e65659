package marshal

import (
	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/rbmarshal-go/internal/pool/bytebuffer"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

// cursor 是只读字节游标，所有越界读取都返回 ErrUnexpectedEOF 并带上偏移量。
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int {
	return len(c.data) - c.pos
}

func (c *cursor) readByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, merr.WrapErrUnexpectedEOF(c.pos)
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) peekByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, merr.WrapErrUnexpectedEOF(c.pos)
	}
	return c.data[c.pos], nil
}

// readBytes 返回底层切片的视图，调用方需要持久保存时必须拷贝。
func (c *cursor) readBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, merr.WrapErrMalformedData("negative byte count", c.pos)
	}
	if n > c.remaining() {
		return nil, merr.WrapErrUnexpectedEOF(len(c.data))
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// readPackedInt 读取变长整数。
//
// 首字节按有符号解释：0 表示 0；5..127 与 -128..-5 为内嵌小整数（偏移 5）；
// 1..4 表示后随 n 字节小端正数；-4..-1 表示后随 n 字节小端负数（高位补 1）。
func (c *cursor) readPackedInt() (int64, error) {
	b, err := c.readByte()
	if err != nil {
		return 0, err
	}
	n := int64(int8(b))
	switch {
	case n == 0:
		return 0, nil
	case n > 4:
		return n - 5, nil
	case n < -4:
		return n + 5, nil
	case n > 0:
		var x int64
		for i := int64(0); i < n; i++ {
			b, err := c.readByte()
			if err != nil {
				return 0, err
			}
			x |= int64(b) << (8 * i)
		}
		return x, nil
	default:
		x := int64(-1)
		for i := int64(0); i < -n; i++ {
			b, err := c.readByte()
			if err != nil {
				return 0, err
			}
			x &^= 0xff << (8 * i)
			x |= int64(b) << (8 * i)
		}
		return x, nil
	}
}

// readLength 读取非负长度。
func (c *cursor) readLength() (int, error) {
	start := c.pos
	n, err := c.readPackedInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, merr.WrapErrMalformedData("negative length", start)
	}
	return int(n), nil
}

// readLengthPrefixed 读取 长度 + 原始字节。
func (c *cursor) readLengthPrefixed() ([]byte, error) {
	n, err := c.readLength()
	if err != nil {
		return nil, err
	}
	return c.readBytes(n)
}

// writer 把输出写入池化缓冲区，完成后由 bytes 拷贝出结果。
type writer struct {
	buf *bytebufferpool.ByteBuffer
}

func newWriter() *writer {
	return &writer{buf: bytebuffer.Get()}
}

func (w *writer) release() {
	if w.buf != nil {
		bytebuffer.Put(w.buf)
		w.buf = nil
	}
}

func (w *writer) len() int {
	return w.buf.Len()
}

// bytes 返回独立于池化缓冲区的输出副本。
func (w *writer) bytes() []byte {
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.B)
	return out
}

func (w *writer) writeByte(b byte) {
	_ = w.buf.WriteByte(b)
}

func (w *writer) writeTag(t Tag) {
	w.writeByte(byte(t))
}

func (w *writer) writeBytes(b []byte) {
	_, _ = w.buf.Write(b)
}

// writePackedInt 以最短形式写入变长整数，超出 [PackedIntMin, PackedIntMax] 返回错误。
func (w *writer) writePackedInt(x int64) error {
	if x < PackedIntMin || x > PackedIntMax {
		return merr.WrapErrIntegerOutOfRange(x, PackedIntMin, PackedIntMax)
	}
	switch {
	case x == 0:
		w.writeByte(0)
		return nil
	case x > 0 && x < 123:
		w.writeByte(byte(x + 5))
		return nil
	case x < 0 && x > -124:
		w.writeByte(byte((x - 5) & 0xff))
		return nil
	}

	var payload [4]byte
	for i := 1; i <= 4; i++ {
		payload[i-1] = byte(x & 0xff)
		x >>= 8
		if x == 0 {
			w.writeByte(byte(i))
			w.writeBytes(payload[:i])
			return nil
		}
		if x == -1 {
			w.writeByte(byte(-i))
			w.writeBytes(payload[:i])
			return nil
		}
	}
	// 范围检查之后不可达。
	return merr.WrapErrIntegerOutOfRange(x, PackedIntMin, PackedIntMax)
}

func (w *writer) writeLengthPrefixed(b []byte) error {
	if err := w.writePackedInt(int64(len(b))); err != nil {
		return err
	}
	w.writeBytes(b)
	return nil
}
