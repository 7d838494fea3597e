package queue

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"StockPulse/pkg/logger"
)

// NewMemoryQueue creates an in-process queue for single node deployments.
// Pending jobs are lost on restart.
func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *Queue {
	return newQueue(lgr, config, newMemoryBackend())
}

type retryEntry struct {
	at   time.Time
	data []byte
}

type statusEntry struct {
	data     []byte
	expireAt time.Time
}

type memoryBackend struct {
	mu       sync.Mutex
	items    [][]byte
	retries  []retryEntry
	dead     [][]byte
	statuses map[string]statusEntry
	notify   chan struct{}
	now      func() time.Time
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		statuses: make(map[string]statusEntry),
		notify:   make(chan struct{}, 1),
		now:      time.Now,
	}
}

func (m *memoryBackend) ping(context.Context) error { return nil }

func (m *memoryBackend) push(_ context.Context, data []byte) error {
	m.mu.Lock()
	m.items = append(m.items, data)
	m.mu.Unlock()
	m.wake()
	return nil
}

func (m *memoryBackend) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *memoryBackend) pop(ctx context.Context, wait time.Duration) ([]byte, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			data := m.items[0]
			m.items = m.items[1:]
			more := len(m.items) > 0
			m.mu.Unlock()
			if more {
				m.wake()
			}
			return data, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-m.notify:
		}
	}
}

func (m *memoryBackend) schedule(_ context.Context, data []byte, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries = append(m.retries, retryEntry{at: at, data: data})
	sort.SliceStable(m.retries, func(i, j int) bool { return m.retries[i].at.Before(m.retries[j].at) })
	return nil
}

func (m *memoryBackend) promote(_ context.Context, now time.Time) error {
	m.mu.Lock()
	n := 0
	for n < len(m.retries) && !m.retries[n].at.After(now) {
		m.items = append(m.items, m.retries[n].data)
		n++
	}
	m.retries = m.retries[n:]
	m.mu.Unlock()
	if n > 0 {
		m.wake()
	}
	return nil
}

func (m *memoryBackend) bury(_ context.Context, data []byte) error {
	m.mu.Lock()
	m.dead = append(m.dead, data)
	m.mu.Unlock()
	return nil
}

func (m *memoryBackend) saveStatus(_ context.Context, st *Status, ttl time.Duration) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[st.ID] = statusEntry{data: b, expireAt: m.now().Add(ttl)}
	// drop expired entries
	for id, e := range m.statuses {
		if m.now().After(e.expireAt) {
			delete(m.statuses, id)
		}
	}
	return nil
}

func (m *memoryBackend) loadStatus(_ context.Context, id string) (*Status, error) {
	m.mu.Lock()
	e, ok := m.statuses[id]
	m.mu.Unlock()
	if !ok || m.now().After(e.expireAt) {
		return nil, ErrJobNotFound
	}
	var st Status
	if err := json.Unmarshal(e.data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *memoryBackend) describe() string { return "memory" }

func (m *memoryBackend) deadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dead)
}
