package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"triviacast-service/internal/domain"
	"triviacast-service/internal/metrics"
	"triviacast-service/internal/scoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Create(ctx context.Context, session *domain.QuizSession) error
	Get(ctx context.Context, id string) (*domain.QuizSession, error)
	// Update applies fn to the stored session atomically and persists the result.
	// fn errors abort the update and are returned unchanged.
	Update(ctx context.Context, id string, fn func(*domain.QuizSession) error) (*domain.QuizSession, error)
}

// ResultStore persists finished quizzes and doubles as the local leaderboard.
type ResultStore interface {
	LeaderboardSource
	Record(ctx context.Context, result domain.QuizResult) error
	SetTxHash(ctx context.Context, sessionID, txHash string) error
}

// PointsSubmitter writes earned T points to the points contract.
type PointsSubmitter interface {
	SubmitPoints(ctx context.Context, address string, amount int64) (string, error)
}

// LeaderboardPublisher is notified when recorded points change.
type LeaderboardPublisher interface {
	Invalidate(ctx context.Context)
}

// StartRequest describes a new quiz.
type StartRequest struct {
	Address string
	FID     int64
	Query   domain.QuestionQuery
}

// QuizService contains the quiz use cases.
type QuizService struct {
	questions QuestionFetcher
	sessions  SessionRepository
	results   ResultStore
	points    PointsSubmitter
	publisher LeaderboardPublisher
	log       *zap.Logger

	amount  int
	now     func() time.Time
	newID   func() string
	shuffle func([]string)
}

// QuizOption customizes a QuizService.
type QuizOption func(*QuizService)

// WithPointsSubmitter enables on-chain point submission on finish.
func WithPointsSubmitter(p PointsSubmitter) QuizOption {
	return func(s *QuizService) { s.points = p }
}

// WithPublisher notifies live leaderboard subscribers on finish.
func WithPublisher(p LeaderboardPublisher) QuizOption {
	return func(s *QuizService) { s.publisher = p }
}

// WithQuestionCount sets the default number of questions per quiz.
func WithQuestionCount(n int) QuizOption {
	return func(s *QuizService) {
		if n > 0 {
			s.amount = n
		}
	}
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) QuizOption {
	return func(s *QuizService) { s.now = now }
}

// WithShuffle replaces option shuffling, mainly for tests.
func WithShuffle(fn func([]string)) QuizOption {
	return func(s *QuizService) { s.shuffle = fn }
}

func NewQuizService(questions QuestionFetcher, sessions SessionRepository, results ResultStore, log *zap.Logger, opts ...QuizOption) *QuizService {
	s := &QuizService{
		questions: questions,
		sessions:  sessions,
		results:   results,
		log:       log.Named("quiz"),
		amount:    domain.DefaultQuestionAmount,
		now:       time.Now,
		newID:     uuid.NewString,
		shuffle: func(opts []string) {
			rand.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start fetches questions and opens a new session.
func (s *QuizService) Start(ctx context.Context, req StartRequest) (domain.QuizView, error) {
	if req.Address != "" {
		addr, err := NormalizeAddress(req.Address)
		if err != nil {
			return domain.QuizView{}, err
		}
		req.Address = addr
	}
	if req.Query.Amount <= 0 {
		req.Query.Amount = s.amount
	}
	req.Query = req.Query.Normalize()
	if err := ValidateQuery(req.Query); err != nil {
		return domain.QuizView{}, err
	}

	questions, err := s.questions.FetchQuestions(ctx, req.Query)
	if err != nil {
		return domain.QuizView{}, err
	}
	if len(questions) == 0 {
		return domain.QuizView{}, domain.ErrNoQuestions
	}

	choices := make([][]string, len(questions))
	for i, q := range questions {
		opts := q.Options()
		if q.Type != "boolean" {
			s.shuffle(opts)
		}
		choices[i] = opts
	}

	session := &domain.QuizSession{
		ID:        s.newID(),
		Address:   req.Address,
		FID:       req.FID,
		State:     scoring.NewState(questions),
		Choices:   choices,
		CreatedAt: s.now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.QuizView{}, fmt.Errorf("create session: %w", err)
	}
	s.log.Debug("quiz started", zap.String("session", session.ID), zap.Int("questions", len(questions)))
	return viewOf(session), nil
}

// Get returns the public view of a session.
func (s *QuizService) Get(ctx context.Context, id string) (domain.QuizView, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return domain.QuizView{}, err
	}
	return viewOf(session), nil
}

// Answer scores the answer to the current question.
func (s *QuizService) Answer(ctx context.Context, id, answer string) (domain.AnswerResult, error) {
	var result domain.AnswerResult
	_, err := s.sessions.Update(ctx, id, func(session *domain.QuizSession) error {
		if session.Finished() {
			return domain.ErrQuizAlreadyFinished
		}
		if session.State.Done() {
			return domain.ErrQuizFinished
		}
		correct := session.State.Questions[session.State.CurrentIndex].CorrectAnswer
		next, rec, err := scoring.Apply(session.State, answer)
		if err != nil {
			return err
		}
		session.State = next
		result = domain.AnswerResult{
			AnswerRecord:  rec,
			CorrectAnswer: correct,
			Score:         next.Score,
			TPoints:       next.TPoints,
			Done:          next.Done(),
		}
		return nil
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}

	outcome := "incorrect"
	if result.Correct {
		outcome = "correct"
	}
	metrics.QuizAnswers.WithLabelValues(outcome).Inc()
	return result, nil
}

// Finish closes the session, records the result and then submits points on
// chain. If the result cannot be recorded the session is reopened so Finish
// can be retried. Unanswered questions count as misses.
func (s *QuizService) Finish(ctx context.Context, id string) (domain.QuizResult, error) {
	now := s.now()
	session, err := s.sessions.Update(ctx, id, func(session *domain.QuizSession) error {
		if session.Finished() {
			return domain.ErrQuizAlreadyFinished
		}
		session.FinishedAt = &now
		return nil
	})
	if err != nil {
		return domain.QuizResult{}, err
	}

	result := domain.QuizResult{
		SessionID:  session.ID,
		Address:    session.Address,
		FID:        session.FID,
		Score:      session.State.Score,
		Total:      len(session.State.Questions),
		TPoints:    session.State.TPoints,
		FinishedAt: now,
	}

	if err := s.results.Record(ctx, result); err != nil {
		s.reopen(ctx, id, now)
		return domain.QuizResult{}, fmt.Errorf("record result: %w", err)
	}

	if s.points != nil && result.Address != "" && result.TPoints > 0 {
		result.TxHash = s.submitPoints(ctx, result)
	}
	if s.publisher != nil && result.Address != "" {
		s.publisher.Invalidate(ctx)
	}

	s.log.Info("quiz finished",
		zap.String("session", result.SessionID),
		zap.Int("score", result.Score),
		zap.Int("tPoints", result.TPoints))
	return result, nil
}

// reopen undoes the finish stamped at finishedAt.
func (s *QuizService) reopen(ctx context.Context, id string, finishedAt time.Time) {
	_, err := s.sessions.Update(ctx, id, func(session *domain.QuizSession) error {
		if session.FinishedAt != nil && session.FinishedAt.Equal(finishedAt) {
			session.FinishedAt = nil
		}
		return nil
	})
	if err != nil {
		s.log.Error("reopen session after failed record", zap.String("session", id), zap.Error(err))
	}
}

// submitPoints is best effort; it returns the tx hash or "" on failure.
func (s *QuizService) submitPoints(ctx context.Context, result domain.QuizResult) string {
	txHash, err := s.points.SubmitPoints(ctx, result.Address, int64(result.TPoints))
	if err != nil {
		s.log.Warn("points submission failed",
			zap.String("session", result.SessionID), zap.String("address", result.Address), zap.Error(err))
		return ""
	}
	if err := s.results.SetTxHash(ctx, result.SessionID, txHash); err != nil {
		s.log.Warn("store points tx hash",
			zap.String("session", result.SessionID), zap.String("tx", txHash), zap.Error(err))
	}
	return txHash
}

func viewOf(session *domain.QuizSession) domain.QuizView {
	questions := make([]domain.PublicQuestion, len(session.State.Questions))
	for i, q := range session.State.Questions {
		var opts []string
		if i < len(session.Choices) {
			opts = session.Choices[i]
		} else {
			opts = q.Options()
		}
		questions[i] = domain.PublicQuestion{
			Category:   q.Category,
			Type:       q.Type,
			Difficulty: q.Difficulty,
			Question:   q.Question,
			Options:    opts,
		}
	}
	answers := session.State.Answers
	if answers == nil {
		answers = []domain.AnswerRecord{}
	}
	return domain.QuizView{
		ID:                 session.ID,
		Address:            session.Address,
		Questions:          questions,
		CurrentIndex:       session.State.CurrentIndex,
		Score:              session.State.Score,
		ConsecutiveCorrect: session.State.ConsecutiveCorrect,
		TPoints:            session.State.TPoints,
		Answers:            answers,
		Finished:           session.Finished(),
	}
}
