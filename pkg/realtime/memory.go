package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/angelmondragon/eventix-edge/pkg/logger"
)

// Memory is an in-process Connection. Publish delivers synchronously to the
// handlers bound on the target channel. Selected with a "memory://" cluster.
type Memory struct {
	reg *registry

	mu     sync.Mutex
	closed bool
}

// NewMemory returns an empty in-process connection.
func NewMemory(logg *logger.Logger) *Memory {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Memory{reg: newRegistry(logg)}
}

func (m *Memory) Subscribe(_ context.Context, name string) (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	ch, _ := m.reg.add(name)
	return ch, nil
}

func (m *Memory) Unsubscribe(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.reg.remove(name); ok {
		ch.UnbindAll()
	}
	return nil
}

func (m *Memory) Publish(ctx context.Context, name, event string, payload any) error {
	body, err := EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	m.reg.deliver(ctx, name, body)
	return nil
}

func (m *Memory) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, name := range m.reg.names() {
		if ch, ok := m.reg.remove(name); ok {
			ch.UnbindAll()
		}
	}
	return nil
}

// Subscribed returns the currently subscribed channel names, sorted.
func (m *Memory) Subscribed() []string {
	names := m.reg.names()
	sort.Strings(names)
	return names
}

// Closed reports whether Disconnect has been called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
