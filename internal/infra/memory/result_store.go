package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"triviacast-service/internal/domain"
)

// ResultStore keeps finished quizzes in process and aggregates T points per wallet.
type ResultStore struct {
	mu      sync.RWMutex
	results []domain.QuizResult
	totals  map[string]*domain.LeaderboardEntry
}

func NewResultStore() *ResultStore {
	return &ResultStore{totals: make(map[string]*domain.LeaderboardEntry)}
}

func (s *ResultStore) Name() string { return "local" }

func (s *ResultStore) Record(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	if result.Address == "" {
		return nil
	}
	key := strings.ToLower(result.Address)
	entry, ok := s.totals[key]
	if !ok {
		entry = &domain.LeaderboardEntry{WalletAddress: result.Address}
		s.totals[key] = entry
	}
	entry.TPoints += int64(result.TPoints)
	return nil
}

func (s *ResultStore) SetTxHash(_ context.Context, sessionID, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.results {
		if s.results[i].SessionID == sessionID {
			s.results[i].TxHash = txHash
			return nil
		}
	}
	return domain.ErrSessionNotFound
}

func (s *ResultStore) Top(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0, len(s.totals))
	for _, e := range s.totals {
		entries = append(entries, *e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TPoints != entries[j].TPoints {
			return entries[i].TPoints > entries[j].TPoints
		}
		return entries[i].WalletAddress < entries[j].WalletAddress
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *ResultStore) PointsOf(_ context.Context, address string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.totals[strings.ToLower(address)]; ok {
		return e.TPoints, nil
	}
	return 0, nil
}

// Results returns a copy of every recorded result.
func (s *ResultStore) Results() []domain.QuizResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.QuizResult(nil), s.results...)
}
