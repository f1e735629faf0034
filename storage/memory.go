package storage

import (
	"context"
	"sync"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

// MemoryStore keeps the encoded record so callers never share the saved
// struct with the engine.
type MemoryStore struct {
	logger types.Logger
	data   []byte
	mu     sync.RWMutex
}

func NewMemoryStore(logger types.Logger) (types.StorageManager, error) {
	return &MemoryStore{logger: logger}, nil
}

func (m *MemoryStore) Start() error   { return nil }
func (m *MemoryStore) Stop() error    { return nil }
func (m *MemoryStore) IsRunning() bool { return true }

func (m *MemoryStore) Load(_ context.Context) (*types.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return decodeSettings(m.data)
}

func (m *MemoryStore) Save(_ context.Context, settings *types.Settings) error {
	data, err := encodeSettings(settings)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}
