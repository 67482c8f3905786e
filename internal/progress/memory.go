package progress

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps snapshots in process. Values are stored encoded so callers
// never share answer slices with the store.
type MemoryStore struct {
	mu    sync.Mutex
	items map[SessionID][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[SessionID][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, id SessionID) (*Snapshot, error) {
	s.mu.Lock()
	data, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoSnapshot
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items[snap.SessionID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id SessionID) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}
