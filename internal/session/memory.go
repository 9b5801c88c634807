package session

import "sync"

// MemorySlot keeps the token in process memory.
type MemorySlot struct {
	mu    sync.Mutex
	token string
}

func (m *MemorySlot) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemorySlot) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemorySlot) Clear() error {
	return m.Save("")
}
