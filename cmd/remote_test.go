package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemote(t *testing.T) {
	r, err := parseRemote("alice@example.com:/data/a.bin")
	require.NoError(t, err)
	assert.Equal(t, &remotePath{"alice", "example.com", "/data/a.bin"}, r)

	r, err = parseRemote("example.com:")
	require.NoError(t, err)
	assert.Equal(t, &remotePath{"", "example.com", "."}, r)

	for _, s := range []string{"/local/path", ":/a", "alice@:/a"} {
		_, err = parseRemote(s)
		assert.Error(t, err, s)
	}
}

func TestLocalPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "a.bin"), localPath("/data/a.bin", dir, false, "none"))
	assert.Equal(t, filepath.Join(dir, "a.bin.zst"), localPath("/data/a.bin", dir, true, "zstd"))

	file := filepath.Join(dir, "copy.bin")
	assert.Equal(t, file, localPath("/data/a.bin", file, false, "lz4"))
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Equal(t, file, localPath("/data/a.bin", file, false, "none"))
}
