package marshal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFloat(t *testing.T) {
	cases := map[float64]string{
		0:          "0",
		1:          "1",
		1.5:        "1.5",
		-2.5:       "-2.5",
		12.5:       "12.5",
		100:        "1e2",
		0.1:        "0.1",
		0.001:      "0.001",
		0.0001:     "0.0001",
		0.00001:    "1e-5",
		1e20:       "1e20",
		1.5e300:    "1.5e300",
		123456.789: "123456.789",
	}
	for v, want := range cases {
		assert.Equal(t, want, formatFloat(v), "format %v", v)
	}
	assert.Equal(t, "1.7976931348623157e308", formatFloat(math.MaxFloat64))
	assert.Equal(t, "5e-324", formatFloat(math.SmallestNonzeroFloat64))
	assert.Equal(t, "-0", formatFloat(math.Copysign(0, -1)))
	assert.Equal(t, "nan", formatFloat(math.NaN()))
	assert.Equal(t, "inf", formatFloat(math.Inf(1)))
	assert.Equal(t, "-inf", formatFloat(math.Inf(-1)))
}

func TestParseFloat(t *testing.T) {
	for _, v := range []float64{0, 1, 1.5, -2.5, 100, 0.1, 1e-5, 1e20, 1.5e300, math.MaxFloat64} {
		got, err := parseFloat([]byte(formatFloat(v)))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	got, err := parseFloat([]byte("nan"))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))

	got, err = parseFloat([]byte("-inf"))
	require.NoError(t, err)
	assert.True(t, math.IsInf(got, -1))

	got, err = parseFloat([]byte("-0"))
	require.NoError(t, err)
	assert.True(t, math.Signbit(got))

	// 溢出的文本按 ±Inf 处理。
	got, err = parseFloat([]byte("1e400"))
	require.NoError(t, err)
	assert.True(t, math.IsInf(got, 1))

	_, err = parseFloat([]byte("one"))
	assert.Error(t, err)
}

func TestParseFloatIgnoresShortMantissa(t *testing.T) {
	// NUL 之后没有尾数字节时只使用十进制部分。
	got, err := parseFloat([]byte("1.5\x00"))
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)
}
