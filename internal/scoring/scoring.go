// Package scoring turns answers into score, streak and T points.
package scoring

import "triviacast-service/internal/domain"

const basePoints = 1000

// streakBonus maps a streak milestone to its bonus.
var streakBonus = map[int]int{
	3:  500,
	5:  1000,
	10: 2000,
}

// CalculateTPoints returns the T points for one answer. streak counts the
// current answer when correct.
func CalculateTPoints(streak int, correct bool) int {
	if !correct {
		return 0
	}
	return basePoints + streakBonus[streak]
}

// NewState starts a quiz over the given questions.
func NewState(questions []domain.Question) domain.QuizState {
	return domain.QuizState{
		Questions: questions,
		Answers:   make([]domain.AnswerRecord, 0, len(questions)),
	}
}

// Apply scores answer against the current question and returns the next state.
// The input state is not modified.
func Apply(state domain.QuizState, answer string) (domain.QuizState, domain.AnswerRecord, error) {
	if state.Done() {
		return state, domain.AnswerRecord{}, domain.ErrQuizFinished
	}

	q := state.Questions[state.CurrentIndex]
	next := state
	next.Answers = append(make([]domain.AnswerRecord, 0, len(state.Answers)+1), state.Answers...)

	rec := domain.AnswerRecord{
		QuestionIndex: state.CurrentIndex,
		Answer:        answer,
		Correct:       answer == q.CorrectAnswer,
	}
	if rec.Correct {
		next.ConsecutiveCorrect++
		next.Score++
	} else {
		next.ConsecutiveCorrect = 0
	}
	rec.Streak = next.ConsecutiveCorrect
	rec.Awarded = CalculateTPoints(rec.Streak, rec.Correct)

	next.TPoints += rec.Awarded
	next.CurrentIndex++
	next.Answers = append(next.Answers, rec)
	return next, rec, nil
}

// Replay folds answers over a fresh state.
func Replay(questions []domain.Question, answers []string) (domain.QuizState, error) {
	state := NewState(questions)
	for _, a := range answers {
		var err error
		if state, _, err = Apply(state, a); err != nil {
			return state, err
		}
	}
	return state, nil
}
