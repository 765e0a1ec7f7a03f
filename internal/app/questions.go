package app

import (
	"context"
	"fmt"

	"triviacast-service/internal/domain"

	"go.uber.org/zap"
)

// QuestionFetcher supplies trivia questions (OpenTDB, local bank, cache).
type QuestionFetcher interface {
	FetchQuestions(ctx context.Context, query domain.QuestionQuery) ([]domain.Question, error)
}

var (
	validDifficulties = map[string]bool{"": true, "easy": true, "medium": true, "hard": true}
	validTypes        = map[string]bool{"": true, "multiple": true, "boolean": true}
)

// ValidateQuery rejects filters the question sources do not understand.
func ValidateQuery(q domain.QuestionQuery) error {
	if !validDifficulties[q.Difficulty] {
		return fmt.Errorf("%w: difficulty %q", domain.ErrInvalidQuery, q.Difficulty)
	}
	if !validTypes[q.Type] {
		return fmt.Errorf("%w: type %q", domain.ErrInvalidQuery, q.Type)
	}
	return nil
}

// FallbackFetcher asks the primary source first and falls back to the local
// bank on any error or short result.
type FallbackFetcher struct {
	primary  QuestionFetcher
	fallback QuestionFetcher
	log      *zap.Logger
}

func NewFallbackFetcher(primary, fallback QuestionFetcher, log *zap.Logger) *FallbackFetcher {
	return &FallbackFetcher{primary: primary, fallback: fallback, log: log.Named("questions")}
}

func (f *FallbackFetcher) FetchQuestions(ctx context.Context, query domain.QuestionQuery) ([]domain.Question, error) {
	query = query.Normalize()
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}

	if f.primary != nil {
		questions, err := f.primary.FetchQuestions(ctx, query)
		if err == nil && len(questions) > 0 {
			return questions, nil
		}
		f.log.Warn("primary question source failed, using local bank",
			zap.Error(err), zap.Int("returned", len(questions)))
	}
	if f.fallback == nil {
		return nil, domain.ErrNoQuestions
	}

	questions, err := f.fallback.FetchQuestions(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return questions, nil
}
