package memory

import (
	"context"
	"testing"
	"time"

	"triviacast-service/internal/domain"
)

func TestQuestionRepositoryCaches(t *testing.T) {
	loader := &countingLoader{PoolLoader: NewStaticQuestionLoaderFrom(sampleQuestions())}
	repo := NewQuestionRepository(loader, time.Minute)

	questions, err := repo.FetchQuestions(context.Background(), domain.QuestionQuery{Amount: 2})
	if err != nil {
		t.Fatalf("fetch questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.FetchQuestions(context.Background(), domain.QuestionQuery{Amount: 3}); err != nil {
		t.Fatalf("fetch questions 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}

	// a different filter is a different pool
	if _, err := repo.FetchQuestions(context.Background(), domain.QuestionQuery{Difficulty: "easy"}); err != nil {
		t.Fatalf("fetch easy: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected second load for new filter, got %d", loader.calls)
	}
}

func TestQuestionRepositoryEmptyPool(t *testing.T) {
	repo := NewQuestionRepository(NewStaticQuestionLoaderFrom(sampleQuestions()), time.Minute)
	_, err := repo.FetchQuestions(context.Background(), domain.QuestionQuery{Category: "History"})
	if err != domain.ErrNoQuestions {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestBundledBank(t *testing.T) {
	loader, err := NewStaticQuestionLoader()
	if err != nil {
		t.Fatalf("load bundled bank: %v", err)
	}
	pool, err := loader.LoadPool(context.Background(), domain.QuestionQuery{})
	if err != nil {
		t.Fatalf("load pool: %v", err)
	}
	if len(pool) < domain.DefaultQuestionAmount {
		t.Fatalf("bundled bank too small for a quiz: %d", len(pool))
	}
	for _, q := range pool {
		if q.CorrectAnswer == "" || len(q.IncorrectAnswers) == 0 {
			t.Fatalf("incomplete bundled question %+v", q)
		}
	}

	byID, _ := loader.LoadPool(context.Background(), domain.QuestionQuery{Category: "22"})
	for _, q := range byID {
		if q.Category != "Geography" {
			t.Fatalf("category id filter leaked %q", q.Category)
		}
	}
	if len(byID) == 0 {
		t.Fatalf("expected geography questions")
	}
}

func TestSampleDistinct(t *testing.T) {
	pool := sampleQuestions()
	got := Sample(pool, 10)
	if len(got) != len(pool) {
		t.Fatalf("expected sample capped at pool size, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, q := range got {
		if seen[q.Question] {
			t.Fatalf("duplicate question sampled: %s", q.Question)
		}
		seen[q.Question] = true
	}
}

type countingLoader struct {
	PoolLoader
	calls int
}

func (l *countingLoader) LoadPool(ctx context.Context, filter domain.QuestionQuery) ([]domain.Question, error) {
	l.calls++
	return l.PoolLoader.LoadPool(ctx, filter)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Category: "Science & Nature", Type: "multiple", Difficulty: "easy", Question: "Red planet?", CorrectAnswer: "Mars", IncorrectAnswers: []string{"Venus", "Jupiter", "Mercury"}},
		{Category: "Geography", Type: "multiple", Difficulty: "easy", Question: "Capital of France?", CorrectAnswer: "Paris", IncorrectAnswers: []string{"Rome", "Berlin", "Madrid"}},
		{Category: "Geography", Type: "boolean", Difficulty: "medium", Question: "Australia is wider than the Moon.", CorrectAnswer: "True", IncorrectAnswers: []string{"False"}},
	}
}
