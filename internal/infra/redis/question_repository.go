package redis

import (
	"context"
	"encoding/json"
	"time"

	"triviacast-service/internal/domain"
	"triviacast-service/internal/infra/memory"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// PoolLoader fetches question pools from a backing store (bundled bank, Postgres).
type PoolLoader interface {
	LoadPool(ctx context.Context, filter domain.QuestionQuery) ([]domain.Question, error)
}

// QuestionRepository caches question pools in Redis and falls back to a loader on cache miss.
// Pools are stored as JSON: SET trivia:pool:{category|difficulty|type} [...questions]
type QuestionRepository struct {
	client *redis.Client
	loader PoolLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestionRepository(client *redis.Client, loader PoolLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
	}
}

func (r *QuestionRepository) FetchQuestions(ctx context.Context, query domain.QuestionQuery) ([]domain.Question, error) {
	query = query.Normalize()
	pool, err := r.pool(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return memory.Sample(pool, query.Amount), nil
}

func (r *QuestionRepository) pool(ctx context.Context, query domain.QuestionQuery) ([]domain.Question, error) {
	key := "trivia:pool:" + memory.PoolKey(query)
	if pool, ok := r.cached(ctx, key); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := r.cached(ctx, key); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadPool(ctx, query)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(pool); err == nil {
			// best-effort; a failed write only costs another load
			_ = r.client.Set(ctx, key, data, memory.TTLWithJitter(r.ttl)).Err()
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var pool []domain.Question
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, false
	}
	return pool, true
}
