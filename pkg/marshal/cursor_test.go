package marshal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

func TestPackedInt(t *testing.T) {
	cases := []struct {
		v    int64
		wire []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x06}},
		{122, []byte{0x7f}},
		{123, []byte{0x01, 0x7b}},
		{255, []byte{0x01, 0xff}},
		{256, []byte{0x02, 0x00, 0x01}},
		{65535, []byte{0x02, 0xff, 0xff}},
		{65536, []byte{0x03, 0x00, 0x00, 0x01}},
		{1 << 30, []byte{0x04, 0x00, 0x00, 0x00, 0x40}},
		{PackedIntMax, []byte{0x04, 0xff, 0xff, 0xff, 0xff}},
		{-1, []byte{0xfa}},
		{-123, []byte{0x80}},
		{-124, []byte{0xff, 0x84}},
		{-129, []byte{0xff, 0x7f}},
		{-256, []byte{0xff, 0x00}},
		{-257, []byte{0xfe, 0xff, 0xfe}},
		{PackedIntMin, []byte{0xfc, 0x00, 0x00, 0x00, 0x00}},
	}
	for _, c := range cases {
		w := newWriter()
		require.NoError(t, w.writePackedInt(c.v))
		assert.Equal(t, c.wire, w.bytes(), "encode %d", c.v)
		w.release()

		r := cursor{data: c.wire}
		got, err := r.readPackedInt()
		require.NoError(t, err)
		assert.Equal(t, c.v, got, "decode % x", c.wire)
		assert.Equal(t, 0, r.remaining())
	}
}

func TestPackedIntOutOfRange(t *testing.T) {
	w := newWriter()
	defer w.release()
	assert.ErrorIs(t, w.writePackedInt(PackedIntMax+1), merr.ErrUnrepresentableValue)
	assert.ErrorIs(t, w.writePackedInt(PackedIntMin-1), merr.ErrUnrepresentableValue)
	assert.Equal(t, 0, w.len())
}

func TestPackedIntTruncated(t *testing.T) {
	r := cursor{data: []byte{0x02, 0x01}}
	_, err := r.readPackedInt()
	assert.ErrorIs(t, err, merr.ErrUnexpectedEOF)

	r = cursor{}
	_, err = r.readPackedInt()
	assert.ErrorIs(t, err, merr.ErrUnexpectedEOF)
}

func TestReadLength(t *testing.T) {
	r := cursor{data: []byte{0xfa}}
	_, err := r.readLength()
	assert.ErrorIs(t, err, merr.ErrMalformedData)

	r = cursor{data: []byte{0x08, 'a', 'b'}}
	_, err = r.readLengthPrefixed()
	assert.ErrorIs(t, err, merr.ErrUnexpectedEOF)

	r = cursor{data: []byte{0x07, 'a', 'b', 'c'}}
	b, err := r.readLengthPrefixed()
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), b)
	assert.Equal(t, 1, r.remaining())
}
