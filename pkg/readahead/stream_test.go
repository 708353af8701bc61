package readahead

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream(t *testing.T) {
	data := randomBytes(t, 10000)

	t.Run("read all", func(t *testing.T) {
		r, err := New(testHandle("stream"), newTestSession(data), &Config{ChunkSize: 4096, MaxPendingReads: 2})
		require.NoError(t, err)
		s := NewStream(r)
		defer s.Close()

		got, err := io.ReadAll(iotest.OneByteReader(s))
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("write to", func(t *testing.T) {
		r, err := New(testHandle("stream"), newTestSession(data), &Config{ChunkSize: 4096, MaxPendingReads: 2})
		require.NoError(t, err)
		s := NewStream(r)
		defer s.Close()

		var buf bytes.Buffer
		n, err := io.Copy(&buf, s)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), n)
		assert.Equal(t, data, buf.Bytes())
	})

	t.Run("failure then closed", func(t *testing.T) {
		failure := errors.New("eof from server")
		ts := newTestSession(data)
		ts.begin = func(off int64, length int, done func([]byte, error)) {
			if off > 0 {
				done(nil, failure)
				return
			}
			done(ts.slice(off, length), nil)
		}
		r, err := New(testHandle("stream"), ts, &Config{ChunkSize: 4096, MaxPendingReads: 2})
		require.NoError(t, err)
		s := NewStream(r)

		var buf bytes.Buffer
		n, err := io.Copy(&buf, s)
		assert.Same(t, failure, err)
		assert.Equal(t, int64(4096), n)

		_, err = s.Read(make([]byte, 10))
		assert.Equal(t, ErrClosed, err)
		assert.NoError(t, s.Close())
	})
}
