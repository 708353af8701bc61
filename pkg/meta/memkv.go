// pkg/meta/memkv.go

package meta

import (
	"sort"
	"sync"
	"time"
)

type memMeta struct {
	sync.Mutex
	transfers map[string]Transfer
}

func init() {
	Register("mem", newMemMeta)
}

// newMemMeta returns a registry living in this process.
func newMemMeta(driver, addr string, conf *Config) (Registry, error) {
	return &memMeta{transfers: make(map[string]Transfer)}, nil
}

func (m *memMeta) Name() string {
	return "mem"
}

func (m *memMeta) Begin(t *Transfer) error {
	m.Lock()
	defer m.Unlock()
	m.transfers[t.ID] = *t
	return nil
}

func (m *memMeta) Update(id string, size, done int64) error {
	m.Lock()
	defer m.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return ErrNotFound
	}
	t.Size, t.Done, t.Updated = size, done, time.Now()
	m.transfers[id] = t
	return nil
}

func (m *memMeta) Finish(id string, err error) error {
	m.Lock()
	defer m.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return ErrNotFound
	}
	t.finish(err)
	m.transfers[id] = t
	return nil
}

func (m *memMeta) Get(id string) (*Transfer, error) {
	m.Lock()
	defer m.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *memMeta) List() ([]*Transfer, error) {
	m.Lock()
	defer m.Unlock()
	ts := make([]*Transfer, 0, len(m.transfers))
	for _, t := range m.transfers {
		t := t
		ts = append(ts, &t)
	}
	sortTransfers(ts)
	return ts, nil
}

func (m *memMeta) Close() error {
	return nil
}

func sortTransfers(ts []*Transfer) {
	sort.Slice(ts, func(i, j int) bool {
		return ts[i].Started.Before(ts[j].Started)
	})
}
