// pkg/readahead/reader.go

// Package readahead streams a remote file sequentially while keeping a bounded
// window of chunk reads in flight ahead of the consumer.
package readahead

import (
	"io"
	"sync"
	"time"

	"AveSFTP/pkg/utils"

	"github.com/pkg/errors"
)

var logger = utils.GetLogger("avesftp")

// ErrClosed is returned by Read after Close, and after a read-ahead failure
// has been returned once.
var ErrClosed = errors.New("read-ahead reader already closed")

const (
	DefaultChunkSize         = 32 << 10
	DefaultMaxPendingReads   = 10
	DefaultSlowReadThreshold = 10 * time.Second
)

// Handle identifies an open remote file.
type Handle interface {
	Name() string
}

// Session is the transport a Reader prefetches through.
type Session interface {
	// Fstat returns the size of the remote file.
	Fstat(h Handle) (int64, error)
	// BeginRead starts reading length bytes at off. done is called exactly once,
	// from any goroutine and possibly before BeginRead returns. Fewer bytes than
	// requested may be returned; no bytes means end of file.
	BeginRead(h Handle, off int64, length int, done func(data []byte, err error))
	// ReadAt reads length bytes at off synchronously.
	ReadAt(h Handle, off int64, length int) ([]byte, error)
}

// Config of a Reader, zero values are replaced with defaults.
type Config struct {
	ChunkSize       int // size of every read-ahead request
	MaxPendingReads int // chunks in flight or buffered but not yet consumed
	// A consumer waiting longer than this for a chunk is reported, it keeps
	// waiting. Negative disables the report.
	SlowReadThreshold time.Duration
}

func (c *Config) withDefaults() (Config, error) {
	var conf Config
	if c != nil {
		conf = *c
	}
	if conf.ChunkSize < 0 {
		return conf, errors.Errorf("invalid chunk size: %d", conf.ChunkSize)
	}
	if conf.MaxPendingReads < 0 {
		return conf, errors.Errorf("invalid number of pending reads: %d", conf.MaxPendingReads)
	}
	if conf.ChunkSize == 0 {
		conf.ChunkSize = DefaultChunkSize
	}
	if conf.MaxPendingReads == 0 {
		conf.MaxPendingReads = DefaultMaxPendingReads
	}
	if conf.SlowReadThreshold == 0 {
		conf.SlowReadThreshold = DefaultSlowReadThreshold
	}
	return conf, nil
}

// bufferedRead is one chunk of the read-ahead window.
type bufferedRead struct {
	offset int64
	length int
	done   bool
	data   []byte
	err    error
}

// Reader returns the chunks of a remote file in order. It is meant to be used
// by a single consumer; Close may be called from any goroutine.
type Reader struct {
	mu   sync.Mutex
	cond *utils.Cond

	handle  Handle
	session Session
	conf    Config

	size        int64
	nextRequest int64
	nextDeliver int64
	queue       []*bufferedRead
	failure     error
	closed      bool
	eof         bool
}

// New queries the size of h and starts reading ahead.
func New(h Handle, s Session, conf *Config) (*Reader, error) {
	c, err := conf.withDefaults()
	if err != nil {
		return nil, err
	}
	size, err := s.Fstat(h)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, errors.Errorf("invalid size of %s: %d", h.Name(), size)
	}
	r := &Reader{
		handle:  h,
		session: s,
		conf:    c,
		size:    size,
		queue:   make([]*bufferedRead, 0, c.MaxPendingReads),
	}
	r.cond = utils.NewCond(&r.mu)
	logger.Debugf("read %s (%d bytes) with %d x %d bytes read-ahead", h.Name(), size, c.MaxPendingReads, c.ChunkSize)
	r.fill()
	return r, nil
}

// Size returns the size of the file when the reader was created.
func (r *Reader) Size() int64 {
	return r.size
}

// Offset returns the number of bytes delivered so far.
func (r *Reader) Offset() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextDeliver
}

// fill issues read-ahead requests until the window is full. The lock is not
// held while a request is issued because sessions may complete it inline.
func (r *Reader) fill() {
	for {
		r.mu.Lock()
		br := r.reserve()
		r.mu.Unlock()
		if br == nil {
			return
		}
		logger.Tracef("read-ahead %s at %d (%d bytes)", r.handle.Name(), br.offset, br.length)
		r.session.BeginRead(r.handle, br.offset, br.length, func(data []byte, err error) {
			r.complete(br, data, err)
		})
	}
}

// reserve enqueues the next chunk if the window has room. Locked.
func (r *Reader) reserve() *bufferedRead {
	if r.closed || r.eof || r.failure != nil {
		return nil
	}
	if r.nextRequest >= r.size || len(r.queue) >= r.conf.MaxPendingReads {
		return nil
	}
	length := int64(r.conf.ChunkSize)
	if rest := r.size - r.nextRequest; rest < length {
		length = rest
	}
	br := &bufferedRead{offset: r.nextRequest, length: int(length)}
	r.nextRequest += length
	r.queue = append(r.queue, br)
	return br
}

func (r *Reader) complete(br *bufferedRead, data []byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || br.done {
		return
	}
	br.done = true
	if err != nil {
		br.err = err
		if r.failure == nil {
			r.failure = err
			logger.Warnf("read-ahead of %s at %d: %s", r.handle.Name(), br.offset, err)
		}
	} else {
		br.data = data
	}
	r.cond.Broadcast()
}

// gap returns how many bytes before the head of the queue were left out by a
// short read. Locked.
func (r *Reader) gap() int {
	end := r.size
	if len(r.queue) > 0 {
		end = r.queue[0].offset
	}
	gap := end - r.nextDeliver
	if gap > int64(r.conf.ChunkSize) {
		gap = int64(r.conf.ChunkSize)
	}
	return int(gap)
}

// Read returns the next chunk of the file, or io.EOF after the last one.
// It blocks until the chunk arrives or the reader is closed. A read-ahead
// failure is returned once and closes the reader.
func (r *Reader) Read() ([]byte, error) {
	r.fill()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if r.eof {
		r.mu.Unlock()
		return nil, io.EOF
	}
	if gap := r.gap(); gap > 0 {
		off := r.nextDeliver
		r.mu.Unlock()
		return r.catchUp(off, gap)
	}
	if len(r.queue) == 0 {
		r.mu.Unlock()
		return nil, io.EOF
	}

	br := r.queue[0]
	start := time.Now()
	for !br.done && !r.closed {
		if r.conf.SlowReadThreshold < 0 {
			r.cond.Wait()
		} else if r.cond.WaitWithTimeout(r.conf.SlowReadThreshold) && !br.done {
			logger.Warnf("slow read-ahead of %s at %d: waited %s", r.handle.Name(), br.offset, time.Since(start))
		}
	}
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.queue[0] = nil
	r.queue = r.queue[1:]

	if br.err != nil {
		r.closeLocked()
		r.mu.Unlock()
		return nil, br.err
	}
	if len(br.data) == 0 {
		r.truncated(br.offset)
		r.mu.Unlock()
		return nil, io.EOF
	}
	r.nextDeliver = br.offset + int64(len(br.data))
	r.mu.Unlock()

	r.fill()
	return br.data, nil
}

// catchUp reads the bytes a short read-ahead left out.
func (r *Reader) catchUp(off int64, length int) ([]byte, error) {
	logger.Debugf("catch up %s at %d (%d bytes)", r.handle.Name(), off, length)
	data, err := r.session.ReadAt(r.handle, off, length)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if err != nil {
		if r.failure == nil {
			r.failure = err
		}
		r.closeLocked()
		return nil, err
	}
	if len(data) == 0 {
		r.truncated(off)
		return nil, io.EOF
	}
	if len(data) > length {
		data = data[:length]
	}
	r.nextDeliver = off + int64(len(data))
	return data, nil
}

// truncated drops the window once the file turns out shorter than its size. Locked.
func (r *Reader) truncated(off int64) {
	logger.Infof("%s ends at %d instead of %d", r.handle.Name(), off, r.size)
	r.eof = true
	r.queue = nil
}

func (r *Reader) closeLocked() {
	r.closed = true
	r.queue = nil
	r.cond.Broadcast()
}

// Close stops reading ahead. It never waits for requests in flight, their
// results are discarded.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		logger.Debugf("close %s at %d", r.handle.Name(), r.nextDeliver)
		r.closeLocked()
	}
	return nil
}
