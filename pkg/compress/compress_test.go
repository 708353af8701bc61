package compress

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCompress(t *testing.T, c Compressor) {
	src := bytes.Repeat([]byte("read-ahead window "), 1000)
	dst := make([]byte, c.CompressBound(len(src)))
	n, err := c.Compress(dst, src)
	require.NoError(t, err, c.Name())

	out := make([]byte, len(src))
	m, err := c.Decompress(out, dst[:n])
	require.NoError(t, err, c.Name())
	assert.Equal(t, src, out[:m])
}

func TestCompressors(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		c := NewCompressor(name)
		require.NotNil(t, c, name)
		assert.Equal(t, name, c.Name())
		testCompress(t, c)
	}
	assert.Nil(t, NewCompressor("brotli"))
	assert.Equal(t, "zstd", NewCompressor("ZSTD").Name())
}

func TestFrames(t *testing.T) {
	chunks := [][]byte{
		bytes.Repeat([]byte{1, 2, 3}, 5000),
		[]byte("tail"),
		bytes.Repeat([]byte{0}, 32<<10),
	}
	for _, name := range []string{"none", "lz4", "zstd"} {
		c := NewCompressor(name)
		var buf bytes.Buffer
		w := NewWriter(&buf, c)
		var want []byte
		for _, chunk := range chunks {
			n, err := w.Write(chunk)
			require.NoError(t, err)
			assert.Equal(t, len(chunk), n)
			want = append(want, chunk...)
		}

		got, err := io.ReadAll(NewReader(&buf, c))
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestTruncatedFrame(t *testing.T) {
	c := NewCompressor("lz4")
	var buf bytes.Buffer
	_, err := NewWriter(&buf, c).Write(bytes.Repeat([]byte("x"), 1000))
	require.NoError(t, err)

	data := buf.Bytes()
	_, err = io.ReadAll(NewReader(bytes.NewReader(data[:len(data)-3]), c))
	assert.Error(t, err)
	_, err = io.ReadAll(NewReader(bytes.NewReader(data[:5]), c))
	assert.Error(t, err)
}
