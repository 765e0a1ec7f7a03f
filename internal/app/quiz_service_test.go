package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"triviacast-service/internal/app"
	"triviacast-service/internal/domain"
	"triviacast-service/internal/infra/memory"

	"go.uber.org/zap"
)

const wallet = "0x52908400098527886E0F7030069857D2E4169EE7"

func TestStartHidesAnswersAndShufflesOptions(t *testing.T) {
	service, _ := newTestService(t)
	view, err := service.Start(context.Background(), app.StartRequest{Query: domain.QuestionQuery{Amount: 10}})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if len(view.Questions) != len(sampleQuestions()) {
		t.Fatalf("expected capped to pool size %d, got %d", len(sampleQuestions()), len(view.Questions))
	}
	for _, q := range view.Questions {
		if len(q.Options) < 2 {
			t.Fatalf("expected options for %q", q.Question)
		}
	}
	if view.Finished || view.CurrentIndex != 0 || len(view.Answers) != 0 {
		t.Fatalf("unexpected fresh view %+v", view)
	}
}

func TestAnswerScoringAndStreaks(t *testing.T) {
	ctx := context.Background()
	service, results := newTestService(t)

	view, err := service.Start(ctx, app.StartRequest{Address: wallet, Query: domain.QuestionQuery{Amount: 4}})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// right, right, wrong, right
	plan := []bool{true, true, false, true}
	wantPoints := []int{1000, 2000, 2000, 3000}
	for i, right := range plan {
		answer := "definitely wrong"
		if right {
			answer = correctAnswer(view.Questions[i].Question)
		}
		res, err := service.Answer(ctx, view.ID, answer)
		if err != nil {
			t.Fatalf("answer %d failed: %v", i, err)
		}
		if res.Correct != right || res.TPoints != wantPoints[i] {
			t.Fatalf("answer %d: got correct=%v tPoints=%d", i, res.Correct, res.TPoints)
		}
		if res.CorrectAnswer != correctAnswer(view.Questions[i].Question) {
			t.Fatalf("answer %d: expected correct answer to be revealed", i)
		}
	}

	if _, err := service.Answer(ctx, view.ID, "x"); !errors.Is(err, domain.ErrQuizFinished) {
		t.Fatalf("expected ErrQuizFinished, got %v", err)
	}

	result, err := service.Finish(ctx, view.ID)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if result.Score != 3 || result.Total != 4 || result.TPoints != 3000 || result.Address != wallet {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := results.Results(); len(got) != 1 || got[0].SessionID != view.ID {
		t.Fatalf("expected recorded result, got %+v", got)
	}
	if _, err := service.Finish(ctx, view.ID); !errors.Is(err, domain.ErrQuizAlreadyFinished) {
		t.Fatalf("expected ErrQuizAlreadyFinished, got %v", err)
	}
	if _, err := service.Answer(ctx, view.ID, "x"); !errors.Is(err, domain.ErrQuizAlreadyFinished) {
		t.Fatalf("expected answers after finish to fail, got %v", err)
	}
}

func TestFinishEarlyCountsUnanswered(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	view, _ := service.Start(ctx, app.StartRequest{Query: domain.QuestionQuery{Amount: 3}})
	_, _ = service.Answer(ctx, view.ID, correctAnswer(view.Questions[0].Question))

	result, err := service.Finish(ctx, view.ID)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if result.Score != 1 || result.Total != 3 || result.TPoints != 1000 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestStartRejectsBadInput(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.Start(ctx, app.StartRequest{Address: "0xnope"}); !errors.Is(err, domain.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := service.Start(ctx, app.StartRequest{Query: domain.QuestionQuery{Difficulty: "insane"}}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if _, err := service.Get(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

type stubSubmitter struct {
	calls  int
	amount int64
	err    error
}

func (s *stubSubmitter) SubmitPoints(_ context.Context, _ string, amount int64) (string, error) {
	s.calls++
	s.amount = amount
	if s.err != nil {
		return "", s.err
	}
	return "0xfeed", nil
}

type stubPublisher struct{ calls int }

func (p *stubPublisher) Invalidate(context.Context) { p.calls++ }

func TestFinishSubmitsPointsAndPublishes(t *testing.T) {
	ctx := context.Background()
	submitter := &stubSubmitter{}
	publisher := &stubPublisher{}
	service, _ := newTestService(t, app.WithPointsSubmitter(submitter), app.WithPublisher(publisher))

	view, _ := service.Start(ctx, app.StartRequest{Address: wallet, Query: domain.QuestionQuery{Amount: 1}})
	_, _ = service.Answer(ctx, view.ID, correctAnswer(view.Questions[0].Question))
	result, err := service.Finish(ctx, view.ID)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if submitter.calls != 1 || submitter.amount != 1000 || result.TxHash != "0xfeed" {
		t.Fatalf("expected on-chain submission, got calls=%d amount=%d tx=%q", submitter.calls, submitter.amount, result.TxHash)
	}
	if publisher.calls != 1 {
		t.Fatalf("expected leaderboard refresh, got %d", publisher.calls)
	}
}

func TestFinishToleratesChainFailure(t *testing.T) {
	ctx := context.Background()
	submitter := &stubSubmitter{err: domain.ErrUpstream}
	service, results := newTestService(t, app.WithPointsSubmitter(submitter))

	view, _ := service.Start(ctx, app.StartRequest{Address: wallet, Query: domain.QuestionQuery{Amount: 1}})
	_, _ = service.Answer(ctx, view.ID, correctAnswer(view.Questions[0].Question))
	result, err := service.Finish(ctx, view.ID)
	if err != nil {
		t.Fatalf("finish must not fail on chain errors: %v", err)
	}
	if result.TxHash != "" || len(results.Results()) != 1 {
		t.Fatalf("expected result recorded without tx, got %+v", result)
	}
}

func TestConcurrentAnswersAdvanceOnce(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	view, _ := service.Start(ctx, app.StartRequest{Query: domain.QuestionQuery{Amount: 5}})

	done := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := service.Answer(ctx, view.ID, "x")
			done <- err
		}()
	}
	for i := 0; i < 5; i++ {
		if err := <-done; err != nil {
			t.Fatalf("answer failed: %v", err)
		}
	}
	got, _ := service.Get(ctx, view.ID)
	if got.CurrentIndex != 5 || len(got.Answers) != 5 {
		t.Fatalf("expected 5 serialized answers, got index=%d answers=%d", got.CurrentIndex, len(got.Answers))
	}
}

func newTestService(t *testing.T, opts ...app.QuizOption) (*app.QuizService, *memory.ResultStore) {
	t.Helper()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoaderFrom(sampleQuestions()), time.Minute)
	results := memory.NewResultStore()
	return app.NewQuizService(questions, memory.NewSessionStore(time.Minute), results, zap.NewNop(), opts...), results
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Category: "Science & Nature", Type: "multiple", Difficulty: "easy", Question: "Red planet?", CorrectAnswer: "Mars", IncorrectAnswers: []string{"Venus", "Jupiter", "Mercury"}},
		{Category: "Geography", Type: "multiple", Difficulty: "easy", Question: "Capital of France?", CorrectAnswer: "Paris", IncorrectAnswers: []string{"Rome", "Berlin", "Madrid"}},
		{Category: "Science: Mathematics", Type: "boolean", Difficulty: "easy", Question: "Is 7 prime?", CorrectAnswer: "True", IncorrectAnswers: []string{"False"}},
		{Category: "History", Type: "multiple", Difficulty: "medium", Question: "First man on the moon?", CorrectAnswer: "Neil Armstrong", IncorrectAnswers: []string{"Buzz Aldrin", "Yuri Gagarin", "John Glenn"}},
		{Category: "Sports", Type: "multiple", Difficulty: "medium", Question: "Players per soccer side?", CorrectAnswer: "11", IncorrectAnswers: []string{"9", "10", "12"}},
	}
}

func correctAnswer(question string) string {
	for _, q := range sampleQuestions() {
		if q.Question == question {
			return q.CorrectAnswer
		}
	}
	return ""
}

type flakyResults struct {
	*memory.ResultStore
	failures int
}

func (f *flakyResults) Record(ctx context.Context, result domain.QuizResult) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("disk full")
	}
	return f.ResultStore.Record(ctx, result)
}

func TestFinishReopensSessionWhenRecordFails(t *testing.T) {
	ctx := context.Background()
	submitter := &stubSubmitter{}
	publisher := &stubPublisher{}
	results := &flakyResults{ResultStore: memory.NewResultStore(), failures: 1}
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoaderFrom(sampleQuestions()), time.Minute)
	service := app.NewQuizService(questions, memory.NewSessionStore(time.Minute), results, zap.NewNop(),
		app.WithPointsSubmitter(submitter), app.WithPublisher(publisher))

	view, _ := service.Start(ctx, app.StartRequest{Address: wallet, Query: domain.QuestionQuery{Amount: 1}})
	_, _ = service.Answer(ctx, view.ID, correctAnswer(view.Questions[0].Question))

	if _, err := service.Finish(ctx, view.ID); err == nil {
		t.Fatal("expected finish to fail when the result cannot be recorded")
	}
	if submitter.calls != 0 || publisher.calls != 0 {
		t.Fatalf("expected no side effects before the result is stored, got submits=%d publishes=%d", submitter.calls, publisher.calls)
	}
	if got, err := service.Get(ctx, view.ID); err != nil || got.Finished {
		t.Fatalf("expected session to be reopened, got %+v err=%v", got, err)
	}

	result, err := service.Finish(ctx, view.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if submitter.calls != 1 || result.TxHash != "0xfeed" {
		t.Fatalf("expected one submission after recording, got calls=%d tx=%q", submitter.calls, result.TxHash)
	}
	got := results.Results()
	if len(got) != 1 || got[0].TxHash != "0xfeed" {
		t.Fatalf("expected one stored result carrying the tx hash, got %+v", got)
	}
}
