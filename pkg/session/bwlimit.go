// pkg/session/bwlimit.go

package session

import (
	"AveSFTP/pkg/readahead"

	"github.com/juju/ratelimit"
)

type bwlimit struct {
	readahead.Session
	downLimit *ratelimit.Bucket
}

// NewLimited limits the download bandwidth of s to down bytes per second.
func NewLimited(s readahead.Session, down int64) readahead.Session {
	if down <= 0 {
		return s
	}
	// there are overheads coming from SSH and SFTP framing
	return &bwlimit{s, ratelimit.NewBucketWithRate(float64(down)*0.85, down)}
}

func (p *bwlimit) BeginRead(h readahead.Handle, off int64, length int, done func([]byte, error)) {
	p.Session.BeginRead(h, off, length, func(data []byte, err error) {
		p.downLimit.Wait(int64(len(data)))
		done(data, err)
	})
}

func (p *bwlimit) ReadAt(h readahead.Handle, off int64, length int) ([]byte, error) {
	data, err := p.Session.ReadAt(h, off, length)
	p.downLimit.Wait(int64(len(data)))
	return data, err
}
