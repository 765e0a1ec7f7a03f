package memory

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"triviacast-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// PoolLoader fetches every question matching the filters of a query
// (amount is ignored) from a backing store.
type PoolLoader interface {
	LoadPool(ctx context.Context, filter domain.QuestionQuery) ([]domain.Question, error)
}

// QuestionRepository caches question pools with TTL to avoid repeated loads,
// and samples quizzes from them.
type QuestionRepository struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader PoolLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedPool),
	}
}

// FetchQuestions samples query.Amount questions from the matching pool.
func (r *QuestionRepository) FetchQuestions(ctx context.Context, query domain.QuestionQuery) ([]domain.Question, error) {
	query = query.Normalize()
	pool, err := r.pool(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return Sample(pool, query.Amount), nil
}

func (r *QuestionRepository) pool(ctx context.Context, query domain.QuestionQuery) ([]domain.Question, error) {
	key := PoolKey(query)
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadPool(ctx, query)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedPool{
			questions: questions,
			expiresAt: now.Add(TTLWithJitter(r.ttl)),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// PoolKey identifies the pool a query draws from.
func PoolKey(q domain.QuestionQuery) string {
	return domain.CategoryName(q.Category) + "|" + q.Difficulty + "|" + q.Type
}

// Sample returns up to n distinct questions in random order.
func Sample(pool []domain.Question, n int) []domain.Question {
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]domain.Question, 0, n)
	for _, i := range rand.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}

// TTLWithJitter adds up to 10% jitter to spread expirations.
func TTLWithJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitterMax := int64(ttl) / 10
	return ttl + time.Duration(rand.Int64N(jitterMax+1))
}

//go:embed questions.json
var bundledQuestions []byte

// StaticQuestionLoader serves the question bank bundled with the binary.
type StaticQuestionLoader struct {
	questions []domain.Question
}

// NewStaticQuestionLoader parses the bundled bank.
func NewStaticQuestionLoader() (*StaticQuestionLoader, error) {
	var questions []domain.Question
	if err := json.Unmarshal(bundledQuestions, &questions); err != nil {
		return nil, fmt.Errorf("parse bundled questions: %w", err)
	}
	return &StaticQuestionLoader{questions: questions}, nil
}

// NewStaticQuestionLoaderFrom is a simple loader backed by a slice (useful for tests/demos).
func NewStaticQuestionLoaderFrom(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadPool(_ context.Context, filter domain.QuestionQuery) ([]domain.Question, error) {
	return Filter(l.questions, filter), nil
}

// Filter keeps the questions matching the non-empty filters of q.
func Filter(questions []domain.Question, q domain.QuestionQuery) []domain.Question {
	category := domain.CategoryName(q.Category)
	out := make([]domain.Question, 0, len(questions))
	for _, question := range questions {
		if category != "" && question.Category != category {
			continue
		}
		if q.Difficulty != "" && question.Difficulty != q.Difficulty {
			continue
		}
		if q.Type != "" && question.Type != q.Type {
			continue
		}
		out = append(out, question)
	}
	return out
}
