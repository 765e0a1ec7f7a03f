package app

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"triviacast-service/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LeaderboardSource yields recorded T points, ordered by points descending.
type LeaderboardSource interface {
	Name() string
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	PointsOf(ctx context.Context, address string) (int64, error)
}

// ProfileLookup resolves wallet addresses to Farcaster profiles.
// Keys of the returned map are lower-cased addresses.
type ProfileLookup interface {
	UsersByAddress(ctx context.Context, addresses []string) (map[string]domain.FarcasterUser, error)
}

// LeaderboardService serves a cached, profile-enriched leaderboard and fans
// refreshed snapshots out to live subscribers.
type LeaderboardService struct {
	source   LeaderboardSource
	profiles ProfileLookup
	ttl      time.Duration
	limit    int
	now      func() time.Time
	log      *zap.Logger
	sf       singleflight.Group

	mu        sync.RWMutex
	cached    domain.Leaderboard
	expiresAt time.Time
	gen       uint64 // bumped by Invalidate

	hub *Hub
}

func NewLeaderboardService(source LeaderboardSource, profiles ProfileLookup, ttl time.Duration, limit int, log *zap.Logger) *LeaderboardService {
	if limit <= 0 {
		limit = 100
	}
	return &LeaderboardService{
		source:   source,
		profiles: profiles,
		ttl:      ttl,
		limit:    limit,
		now:      time.Now,
		log:      log.Named("leaderboard"),
		hub:      NewHub(),
	}
}

// Get returns up to limit entries, loading through the cache.
func (s *LeaderboardService) Get(ctx context.Context, limit int) (domain.Leaderboard, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	s.mu.RLock()
	if s.expiresAt.After(s.now()) {
		lb := s.cached
		s.mu.RUnlock()
		return truncate(lb, limit), nil
	}
	s.mu.RUnlock()

	lb, err := s.load(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return truncate(lb, limit), nil
}

// Points returns the recorded points of one wallet.
func (s *LeaderboardService) Points(ctx context.Context, address string) (int64, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return 0, err
	}
	return s.source.PointsOf(ctx, addr)
}

// Invalidate drops the cache and pushes a fresh snapshot to subscribers.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.expiresAt = time.Time{}
	s.gen++
	s.mu.Unlock()

	if s.hub.Len() == 0 {
		return
	}
	if _, err := s.load(ctx); err != nil {
		s.log.Warn("leaderboard refresh failed", zap.Error(err))
	}
}

// Subscribe streams leaderboard snapshots. The caller must invoke cancel.
func (s *LeaderboardService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	if _, err := s.Get(ctx, s.limit); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe()
	return ch, cancel, nil
}

// loadTimeout bounds a shared load that outlives the caller that started it.
const loadTimeout = 10 * time.Second

// load reads the board once per generation. A load that finishes after an
// Invalidate returns its snapshot to the waiting callers but does not cache
// or publish it.
func (s *LeaderboardService) load(ctx context.Context) (domain.Leaderboard, error) {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	result, err, _ := s.sf.Do("top:"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		entries, err := s.source.Top(ctx, s.limit)
		if err != nil {
			return domain.Leaderboard{}, err
		}
		s.enrich(ctx, entries)

		lb := domain.Leaderboard{
			Entries:   entries,
			Source:    s.source.Name(),
			UpdatedAt: s.now(),
		}
		s.mu.Lock()
		current := s.gen == gen
		if current {
			s.cached = lb
			s.expiresAt = lb.UpdatedAt.Add(s.ttl)
		}
		s.mu.Unlock()

		if current {
			s.hub.Publish(lb)
		}
		return lb, nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

// enrich attaches Farcaster profiles; lookup failures leave entries bare.
func (s *LeaderboardService) enrich(ctx context.Context, entries []domain.LeaderboardEntry) {
	if s.profiles == nil || len(entries) == 0 {
		return
	}
	addresses := make([]string, len(entries))
	for i, e := range entries {
		addresses[i] = e.WalletAddress
	}
	users, err := s.profiles.UsersByAddress(ctx, addresses)
	if err != nil {
		s.log.Warn("profile enrichment failed", zap.Error(err))
		return
	}
	for i := range entries {
		if u, ok := users[strings.ToLower(entries[i].WalletAddress)]; ok {
			entries[i].FID = u.FID
			entries[i].Username = u.Username
			entries[i].DisplayName = u.DisplayName
			entries[i].PfpURL = u.PfpURL
		}
	}
}

func truncate(lb domain.Leaderboard, limit int) domain.Leaderboard {
	if len(lb.Entries) > limit {
		lb.Entries = lb.Entries[:limit]
	}
	return lb
}
