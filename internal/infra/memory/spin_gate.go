package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"triviacast-service/internal/domain"
)

// SpinGate allows one spin per address per window, per process.
type SpinGate struct {
	clock func() time.Time

	mu    sync.Mutex
	until map[string]time.Time
}

func NewSpinGate() *SpinGate {
	return &SpinGate{clock: time.Now, until: make(map[string]time.Time)}
}

func (g *SpinGate) Acquire(_ context.Context, address string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	key := strings.ToLower(address)
	now := g.clock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.until[key]; ok && t.After(now) {
		return false, nil
	}
	g.until[key] = now.Add(window)
	return true, nil
}

func (g *SpinGate) Release(_ context.Context, address string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.until, strings.ToLower(address))
	return nil
}

// NotificationStore keeps mini-app notification targets in process.
type NotificationStore struct {
	mu      sync.RWMutex
	targets map[int64]domain.NotificationDetails
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{targets: make(map[int64]domain.NotificationDetails)}
}

func (s *NotificationStore) Save(_ context.Context, details domain.NotificationDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[details.FID] = details
	return nil
}

func (s *NotificationStore) Get(_ context.Context, fid int64) (domain.NotificationDetails, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.targets[fid]
	return d, ok, nil
}

func (s *NotificationStore) Delete(_ context.Context, fid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.targets, fid)
	return nil
}
