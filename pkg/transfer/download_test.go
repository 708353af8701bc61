package transfer

import (
	"bytes"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"

	"AveSFTP/pkg/compress"
	"AveSFTP/pkg/meta"
	"AveSFTP/pkg/session"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipe struct {
	io.Reader
	io.WriteCloser
}

func setupTest(t *testing.T) (*session.Session, meta.Registry) {
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	server, err := sftp.NewServer(pipe{sr, sw})
	require.NoError(t, err)
	go func() { _ = server.Serve() }()
	client, err := sftp.NewClientPipe(cr, cw)
	require.NoError(t, err)
	s := session.NewSession(client, "pipe")

	reg, err := meta.NewClient("mem://", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = server.Close()
		_ = reg.Close()
	})
	return s, reg
}

func remoteFiles(t *testing.T, sizes ...int) (map[string][]byte, []string) {
	dir := t.TempDir()
	files := make(map[string][]byte)
	var paths []string
	for i, size := range sizes {
		data := make([]byte, size)
		_, err := rand.Read(data)
		require.NoError(t, err)
		p := filepath.Join(dir, string(rune('a'+i))+".bin")
		require.NoError(t, os.WriteFile(p, data, 0644))
		files[p] = data
		paths = append(paths, p)
	}
	return files, paths
}

func TestDownload(t *testing.T) {
	s, reg := setupTest(t)
	files, paths := remoteFiles(t, 0, 1000, 300<<10, 1<<20+7)
	dest := t.TempDir()

	var jobs []Job
	for _, p := range paths {
		jobs = append(jobs, Job{Remote: p, Local: filepath.Join(dest, filepath.Base(p))})
	}
	opt := &Options{ChunkSize: 64 << 10, MaxPendingReads: 4, Workers: 2, Quiet: true}
	require.NoError(t, Download(s, reg, jobs, opt))

	for _, j := range jobs {
		got, err := os.ReadFile(j.Local)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(files[j.Remote], got), j.Remote)
	}

	ts, err := reg.List()
	require.NoError(t, err)
	require.Len(t, ts, len(jobs))
	for _, tr := range ts {
		assert.Equal(t, meta.StateDone, tr.State, tr.Path)
		assert.Equal(t, int64(len(files[tr.Path])), tr.Done)
	}

	t.Run("existing files are kept", func(t *testing.T) {
		err := Download(s, reg, jobs[:1], opt)
		assert.Error(t, err)
	})
}

func TestDownloadCompressed(t *testing.T) {
	s, reg := setupTest(t)
	files, paths := remoteFiles(t, 200<<10)
	local := filepath.Join(t.TempDir(), "a.bin.zst")

	opt := &Options{ChunkSize: 32 << 10, MaxPendingReads: 2, Workers: 1, Compression: "zstd", Quiet: true}
	require.NoError(t, Download(s, reg, []Job{{Remote: paths[0], Local: local}}, opt))

	f, err := os.Open(local)
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(compress.NewReader(f, compress.NewCompressor("zstd")))
	require.NoError(t, err)
	assert.Equal(t, files[paths[0]], got)
}

func TestDownloadFailure(t *testing.T) {
	s, reg := setupTest(t)
	_, paths := remoteFiles(t, 100)
	dest := t.TempDir()
	jobs := []Job{
		{Remote: paths[0], Local: filepath.Join(dest, "ok.bin")},
		{Remote: filepath.Join(filepath.Dir(paths[0]), "missing.bin"), Local: filepath.Join(dest, "missing.bin")},
	}

	err := Download(s, reg, jobs, &Options{Workers: 2, Quiet: true})
	assert.Error(t, err)
	assert.FileExists(t, jobs[0].Local)
	assert.NoFileExists(t, jobs[1].Local)
	assert.NoFileExists(t, jobs[1].Local+".avesftp.tmp")

	ts, err := reg.List()
	require.NoError(t, err)
	states := map[string]string{}
	for _, tr := range ts {
		states[tr.Path] = tr.State
	}
	assert.Equal(t, meta.StateDone, states[jobs[0].Remote])
	assert.Equal(t, meta.StateFailed, states[jobs[1].Remote])

	assert.Error(t, Download(s, reg, jobs[:1], &Options{Compression: "brotli", Force: true}))
}
