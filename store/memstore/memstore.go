package memstore

import (
	"sync"

	"github.com/jrsteele09/go-pos-client/store"
)

var _ store.Store = (*MemStore)(nil)

// MemStore is an in-memory store.Store for tests and ephemeral sessions.
type MemStore struct {
	values map[string][]byte
	lock   sync.RWMutex
}

func New() *MemStore {
	return &MemStore{
		values: make(map[string][]byte),
	}
}

func (ms *MemStore) Get(key string) ([]byte, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	v, ok := ms.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (ms *MemStore) Apply(ops ...store.Op) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	for _, op := range ops {
		if op.Remove {
			delete(ms.values, op.Key)
			continue
		}
		ms.values[op.Key] = append([]byte(nil), op.Value...)
	}
	return nil
}

// Len returns the number of stored keys.
func (ms *MemStore) Len() int {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	return len(ms.values)
}
