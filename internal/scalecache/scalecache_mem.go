package scalecache

import (
	"context"
	"sync/atomic"
)

// MemStore keeps the snapshot in process. Reads never lock.
type MemStore struct {
	cur atomic.Pointer[Snapshot]
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Load(ctx context.Context) (Snapshot, bool, error) {
	p := s.cur.Load()
	if p == nil {
		return Snapshot{}, false, nil
	}
	return *p, true, nil
}

func (s *MemStore) Store(ctx context.Context, snap Snapshot) error {
	s.cur.Store(&snap)
	return nil
}

func (s *MemStore) Invalidate(ctx context.Context) error {
	s.cur.Store(nil)
	return nil
}
