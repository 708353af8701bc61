package meta

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T, m Registry) {
	first := NewTransfer("example.com:22", "/data/a.bin", "a.bin")
	require.NoError(t, m.Begin(first))
	time.Sleep(time.Millisecond)
	second := NewTransfer("example.com:22", "/data/b.bin", "b.bin")
	require.NoError(t, m.Begin(second))

	t.Run("update", func(t *testing.T) {
		require.NoError(t, m.Update(first.ID, 1000, 400))
		got, err := m.Get(first.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), got.Size)
		assert.Equal(t, int64(400), got.Done)
		assert.Equal(t, StateRunning, got.State)
	})

	t.Run("finish", func(t *testing.T) {
		require.NoError(t, m.Finish(first.ID, nil))
		require.NoError(t, m.Finish(second.ID, errors.New("connection lost")))

		got, err := m.Get(first.ID)
		require.NoError(t, err)
		assert.Equal(t, StateDone, got.State)
		got, err = m.Get(second.ID)
		require.NoError(t, err)
		assert.Equal(t, StateFailed, got.State)
		assert.Equal(t, "connection lost", got.Error)
	})

	t.Run("list", func(t *testing.T) {
		ts, err := m.List()
		require.NoError(t, err)
		var ids []string
		for _, tr := range ts {
			if tr.ID == first.ID || tr.ID == second.ID {
				ids = append(ids, tr.ID)
			}
		}
		assert.Equal(t, []string{first.ID, second.ID}, ids)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := m.Get("missing")
		assert.Equal(t, ErrNotFound, err)
		assert.Equal(t, ErrNotFound, m.Update("missing", 1, 1))
		assert.Equal(t, ErrNotFound, m.Finish("missing", nil))
	})
}

func TestMemRegistry(t *testing.T) {
	m, err := NewClient("mem://", nil)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, "mem", m.Name())
	testRegistry(t, m)
}

// AFS_TEST_REDIS=redis://127.0.0.1:6379/10 runs against a local server.
func TestRedisRegistry(t *testing.T) {
	uri := os.Getenv("AFS_TEST_REDIS")
	if uri == "" {
		t.Skip("AFS_TEST_REDIS is not set")
	}
	m, err := NewClient(uri, &Config{Retries: 2})
	require.NoError(t, err)
	defer m.Close()
	testRegistry(t, m)
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("etcd://127.0.0.1:2379", nil)
	assert.Error(t, err)

	m, err := NewClient("127.0.0.1:6379/1", nil)
	require.NoError(t, err)
	assert.Equal(t, "redis://127.0.0.1:6379", m.Name())
	assert.NoError(t, m.Close())
}
