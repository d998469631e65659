package marshal

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// 旧版本在十进制文本后追加 NUL 与二进制尾数，用这两个常量还原。
const (
	decimalMant = 53 - 16
	mantBits    = 32
)

// formatFloat 生成与 Ruby 相同的浮点文本：最短往返数字，
// 指数超出 [-3, 位数] 时使用科学计数法，整数值不带小数点。
func formatFloat(d float64) string {
	switch {
	case math.IsNaN(d):
		return "nan"
	case math.IsInf(d, 1):
		return "inf"
	case math.IsInf(d, -1):
		return "-inf"
	case d == 0:
		if math.Signbit(d) {
			return "-0"
		}
		return "0"
	}

	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}

	// "d.ddddde±xx" -> 数字串与小数点位置。
	e := strconv.FormatFloat(d, 'e', -1, 64)
	mant, expPart, _ := strings.Cut(e, "e")
	digits := strings.Replace(mant, ".", "", 1)
	exp, _ := strconv.Atoi(expPart)
	decpt := exp + 1
	digs := len(digits)

	switch {
	case decpt < -3 || decpt > digs:
		sb.WriteByte(digits[0])
		if digs > 1 {
			sb.WriteByte('.')
			sb.WriteString(digits[1:])
		}
		sb.WriteByte('e')
		sb.WriteString(strconv.Itoa(decpt - 1))
	case decpt > 0:
		sb.WriteString(digits[:decpt])
		if digs > decpt {
			sb.WriteByte('.')
			sb.WriteString(digits[decpt:])
		}
	default:
		sb.WriteString("0.")
		sb.WriteString(strings.Repeat("0", -decpt))
		sb.WriteString(digits)
	}
	return sb.String()
}

// parseFloat 解析浮点文本，兼容 NUL 之后的二进制尾数。
func parseFloat(raw []byte) (float64, error) {
	text, rest := raw, []byte(nil)
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		text, rest = raw[:i], raw[i:]
	}
	switch string(text) {
	case "nan":
		return math.NaN(), nil
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	d, err := strconv.ParseFloat(string(text), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	return loadMantissa(d, rest), nil
}

func loadMantissa(d float64, rest []byte) float64 {
	if len(rest) <= 1 || rest[0] != 0 {
		return d
	}
	buf := rest[1:]
	neg := d < 0
	frac, exp := math.Frexp(math.Abs(d))
	d, _ = math.Modf(math.Ldexp(frac, decimalMant))

	dig := 0
	for n := len(buf); n > 0; n -= mantBits / 8 {
		take := min(n, mantBits/8)
		var m uint64
		for _, b := range buf[:take] {
			m = m<<8 | uint64(b)
		}
		buf = buf[take:]
		dig -= 8 * take
		d += math.Ldexp(float64(m), dig)
	}
	d = math.Ldexp(d, exp-decimalMant)
	if neg {
		d = -d
	}
	return d
}
