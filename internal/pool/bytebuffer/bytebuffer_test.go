package bytebuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPut(t *testing.T) {
	b := Get()
	assert.Equal(t, 0, b.Len())
	_, _ = b.WriteString("\x04\x08")
	assert.Equal(t, []byte{4, 8}, b.B)
	Put(b)
	Put(nil)

	b = Get()
	assert.Equal(t, 0, b.Len())
	Put(b)
}
