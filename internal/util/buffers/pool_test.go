package buffers

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webstorage/storectl/internal/constants"
)

func TestCopyBufferPool(t *testing.T) {
	buf := GetCopyBuffer()
	require.NotNil(t, buf)
	assert.Len(t, *buf, constants.CopyBufferSize)
	PutCopyBuffer(buf)

	buf2 := GetCopyBuffer()
	require.NotNil(t, buf2)
	PutCopyBuffer(buf2)
}

func TestPutCopyBufferClears(t *testing.T) {
	buf := GetCopyBuffer()
	copy(*buf, "secret")
	PutCopyBuffer(buf)
	assert.Equal(t, byte(0), (*buf)[0])
}

func TestPutCopyBufferIgnoresWrongSize(t *testing.T) {
	wrong := make([]byte, 16)
	PutCopyBuffer(&wrong)
	PutCopyBuffer(nil)
}

func TestStatsCountGets(t *testing.T) {
	before := GetStats()
	buf := GetCopyBuffer()
	PutCopyBuffer(buf)
	after := GetStats()

	assert.Equal(t, constants.CopyBufferSize, after.BufferSize)
	assert.Equal(t, before.Gets+1, after.Gets)
	assert.GreaterOrEqual(t, after.Allocations, int64(1))
}

func TestCopyWithPooledBuffer(t *testing.T) {
	src := strings.Repeat("x", constants.CopyBufferSize*2+7)
	buf := GetCopyBuffer()
	defer PutCopyBuffer(buf)

	var dst bytes.Buffer
	// Hide WriterTo and ReaderFrom so the pooled buffer is actually used.
	n, err := io.CopyBuffer(struct{ io.Writer }{&dst}, struct{ io.Reader }{strings.NewReader(src)}, *buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(src)), n)
	assert.Equal(t, src, dst.String())
}
