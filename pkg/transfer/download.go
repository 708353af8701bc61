// pkg/transfer/download.go

// Package transfer copies remote files to the local disk through read-ahead readers.
package transfer

import (
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"AveSFTP/pkg/compress"
	"AveSFTP/pkg/meta"
	"AveSFTP/pkg/readahead"
	"AveSFTP/pkg/session"
	"AveSFTP/pkg/utils"

	"github.com/vbauerster/mpb/v8"
)

var logger = utils.GetLogger("avesftp")

// Options of a download.
type Options struct {
	ChunkSize       int
	MaxPendingReads int
	Workers         int
	Compression     string // none, lz4 or zstd, written as frames of one chunk
	BwLimit         int64  // bytes per second for all the workers, 0 is unlimited
	Force           bool   // overwrite existing local files
	Quiet           bool
}

// Job copies Remote into Local.
type Job struct {
	Remote string
	Local  string
}

const updateInterval = time.Second

type downloader struct {
	s     *session.Session
	src   readahead.Session
	reg   meta.Registry
	opt   *Options
	comp  compress.Compressor
	bars  *mpb.Progress
	conf  readahead.Config
	fail  error
	failM sync.Mutex
}

// Download runs the jobs with opt.Workers workers and returns the first error,
// after all of them finished.
func Download(s *session.Session, reg meta.Registry, jobs []Job, opt *Options) error {
	comp := compress.NewCompressor(opt.Compression)
	if comp == nil {
		return fmt.Errorf("unsupported compress algorithm: %s", opt.Compression)
	}
	workers := opt.Workers
	if workers <= 0 {
		workers = 1
	}
	d := &downloader{
		s:    s,
		src:  session.NewLimited(s, opt.BwLimit),
		reg:  reg,
		opt:  opt,
		comp: comp,
		bars: utils.NewProgress(opt.Quiet),
		conf: readahead.Config{ChunkSize: opt.ChunkSize, MaxPendingReads: opt.MaxPendingReads},
	}

	logger.Infof("start to download %d files with %d workers", len(jobs), workers)
	start := time.Now()
	todo := make(chan Job, len(jobs))
	for _, j := range jobs {
		todo <- j
	}
	close(todo)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range todo {
				if err := d.run(j); err != nil {
					logger.Errorf("download %s: %s", j.Remote, err)
					d.failM.Lock()
					if d.fail == nil {
						d.fail = err
					}
					d.failM.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	d.bars.Wait()

	ru := utils.GetRusage()
	logger.Infof("downloaded %d files in %s (user %.2fs, sys %.2fs)", len(jobs), time.Since(start), ru.GetUtime(), ru.GetStime())
	return d.fail
}

func (d *downloader) run(j Job) error {
	if !d.opt.Force && utils.Exists(j.Local) {
		return fmt.Errorf("%s already exists", j.Local)
	}
	t := meta.NewTransfer(d.s.String(), j.Remote, j.Local)
	if err := d.reg.Begin(t); err != nil {
		logger.Warnf("record transfer of %s: %s", j.Remote, err)
	}
	err := d.copy(t.ID, j)
	if e := d.reg.Finish(t.ID, err); e != nil {
		logger.Warnf("finish transfer %s: %s", t.ID, e)
	}
	return err
}

func (d *downloader) copy(id string, j Job) error {
	f, err := d.s.Open(j.Remote)
	if err != nil {
		return err
	}
	defer f.Close()
	r, err := readahead.New(f, d.src, &d.conf)
	if err != nil {
		return err
	}
	defer r.Close()

	tmp := j.Local + ".avesftp.tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	bar := utils.NewByteBar(d.bars, path.Base(j.Remote), r.Size())
	defer func() {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}()

	var w io.Writer = out
	if d.comp.Name() != "none" {
		w = compress.NewWriter(out, d.comp)
	}
	var done int64
	last := time.Now()
	for {
		var chunk []byte
		chunk, err = r.Read()
		if err != nil {
			break
		}
		if _, err = w.Write(chunk); err != nil {
			break
		}
		done += int64(len(chunk))
		bar.IncrBy(len(chunk))
		if time.Since(last) >= updateInterval {
			last = time.Now()
			if e := d.reg.Update(id, r.Size(), done); e != nil {
				logger.Debugf("update transfer %s: %s", id, e)
			}
		}
	}
	if err == io.EOF {
		err = out.Sync()
	}
	if e := out.Close(); err == nil {
		err = e
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if e := d.reg.Update(id, r.Size(), done); e != nil {
		logger.Debugf("update transfer %s: %s", id, e)
	}
	logger.Debugf("downloaded %s into %s (%d bytes)", j.Remote, j.Local, done)
	return os.Rename(tmp, j.Local)
}
