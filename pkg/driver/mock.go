package driver

import (
	"context"
	"sync"

	"github.com/athulya-anil/distributed-lxc/pkg/models"
)

// MockDriver is an in-memory Driver used by worker-side tests and by
// agent integration tests that don't want a real `lxc` binary on the
// test host.
type MockDriver struct {
	mu    sync.Mutex
	state map[string]models.ContainerState
}

// NewMockDriver builds an empty mock driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{state: make(map[string]models.ContainerState)}
}

func (m *MockDriver) Create(_ context.Context, cfg models.ContainerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state[cfg.Name]; ok {
		return nil
	}
	m.state[cfg.Name] = models.ContainerStopped
	return nil
}

func (m *MockDriver) Start(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state[name]; !ok {
		return errNotExist(name)
	}
	m.state[name] = models.ContainerRunning
	return nil
}

func (m *MockDriver) Stop(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state[name]; !ok {
		return errNotExist(name)
	}
	m.state[name] = models.ContainerStopped
	return nil
}

func (m *MockDriver) Destroy(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, name)
	return nil
}

func (m *MockDriver) State(_ context.Context, name string) (models.ContainerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state[name]
	if !ok {
		return models.ContainerError, errNotExist(name)
	}
	return s, nil
}

func errNotExist(name string) error {
	return &notExistError{name}
}

type notExistError struct{ name string }

func (e *notExistError) Error() string {
	return "driver: container " + e.name + " does not exist"
}
