// pkg/meta/interface.go

// Package meta records the transfers run by the client, so they can be
// inspected while they run and after they finished.
package meta

import (
	"fmt"
	"strings"
	"time"

	"AveSFTP/pkg/utils"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var logger = utils.GetLogger("avesftp")

// ErrNotFound is returned for unknown transfer IDs.
var ErrNotFound = errors.New("transfer not found")

const (
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// Transfer is one remote file copied by the client.
type Transfer struct {
	ID      string
	Host    string
	Path    string
	Local   string
	Size    int64
	Done    int64
	State   string
	Error   string `json:",omitempty"`
	Started time.Time
	Updated time.Time
}

// NewTransfer creates a running transfer with a fresh ID.
func NewTransfer(host, path, local string) *Transfer {
	now := time.Now()
	return &Transfer{
		ID:      uuid.New().String(),
		Host:    host,
		Path:    path,
		Local:   local,
		State:   StateRunning,
		Started: now,
		Updated: now,
	}
}

func (t *Transfer) finish(err error) {
	t.Updated = time.Now()
	if err != nil {
		t.State = StateFailed
		t.Error = err.Error()
	} else {
		t.State = StateDone
	}
}

// Registry keeps the state of transfers.
type Registry interface {
	Name() string
	// Begin adds a transfer.
	Begin(t *Transfer) error
	// Update records the size and the bytes copied so far.
	Update(id string, size, done int64) error
	// Finish marks a transfer done, or failed when err is not nil.
	Finish(id string, err error) error
	Get(id string) (*Transfer, error)
	// List returns all the transfers, oldest first.
	List() ([]*Transfer, error)
	Close() error
}

type Creator func(driver, addr string, conf *Config) (Registry, error)

var registry = make(map[string]Creator)

func Register(name string, register Creator) {
	registry[name] = register
}

// NewClient creates a Registry from an URI like redis://host:port/db or mem://.
func NewClient(uri string, conf *Config) (Registry, error) {
	if !strings.Contains(uri, "://") {
		uri = "redis://" + uri
	}
	p := strings.Index(uri, "://")
	driver := uri[:p]
	f, ok := registry[driver]
	if !ok {
		return nil, fmt.Errorf("invalid meta driver: %s", driver)
	}
	if conf == nil {
		conf = &Config{}
	}
	m, err := f(driver, uri[p+3:], conf)
	if err != nil {
		return nil, fmt.Errorf("meta %s: %s", driver, err)
	}
	logger.Debugf("transfers are recorded in %s", m.Name())
	return m, nil
}
