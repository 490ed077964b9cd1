package durable

import (
	"context"
	"sync"
)

// Memory — хранилище в памяти. Write имитирует запись другим процессом
// и оповещает подписчиков Watch; собственные Save не оповещают.
type Memory struct {
	mu       sync.Mutex
	snap     Snapshot
	saves    int
	watchers []chan struct{}
}

// NewMemory создаёт хранилище с начальным содержимым.
func NewMemory(initial Snapshot) *Memory {
	return &Memory{snap: initial}
}

func (m *Memory) Load() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func (m *Memory) Save(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s
	m.saves++
	return nil
}

// Saves — число вызовов Save (для тестов).
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Write заменяет содержимое "извне" и оповещает наблюдателей.
func (m *Memory) Write(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snap = s
	// Отправка неблокирующая, поэтому безопасна под мьютексом,
	// а закрытие канала в Watch тоже происходит под ним.
	for _, ch := range m.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m *Memory) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	m.watchers = append(m.watchers, ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()

		m.mu.Lock()
		for i, w := range m.watchers {
			if w == ch {
				m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
				break
			}
		}
		close(ch)
		m.mu.Unlock()
	}()

	return ch, nil
}

var (
	_ Store   = (*Memory)(nil)
	_ Watcher = (*Memory)(nil)
)
