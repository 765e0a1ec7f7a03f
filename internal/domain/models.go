package domain

import "time"

// Question mirrors the OpenTDB result shape.
type Question struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// Options returns every answer for the question, correct first.
func (q Question) Options() []string {
	out := make([]string, 0, len(q.IncorrectAnswers)+1)
	out = append(out, q.CorrectAnswer)
	return append(out, q.IncorrectAnswers...)
}

const (
	DefaultQuestionAmount = 10
	MaxQuestionAmount     = 50
)

// QuestionQuery narrows which questions a quiz is built from.
type QuestionQuery struct {
	Amount     int    `json:"amount"`
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Type       string `json:"type,omitempty"`
}

// Normalize clamps the amount into the supported range.
func (q QuestionQuery) Normalize() QuestionQuery {
	if q.Amount <= 0 {
		q.Amount = DefaultQuestionAmount
	}
	if q.Amount > MaxQuestionAmount {
		q.Amount = MaxQuestionAmount
	}
	return q
}

// AnswerRecord is the outcome of one answered question.
type AnswerRecord struct {
	QuestionIndex int    `json:"questionIndex"`
	Answer        string `json:"answer"`
	Correct       bool   `json:"correct"`
	Awarded       int    `json:"awarded"`
	Streak        int    `json:"streak"`
}

// QuizState is the running tally of a single quiz.
type QuizState struct {
	Questions          []Question     `json:"questions"`
	CurrentIndex       int            `json:"currentIndex"`
	Score              int            `json:"score"`
	Answers            []AnswerRecord `json:"answers"`
	ConsecutiveCorrect int            `json:"consecutiveCorrect"`
	TPoints            int            `json:"tPoints"`
}

// Done reports whether every question has been answered.
func (s QuizState) Done() bool {
	return s.CurrentIndex >= len(s.Questions)
}

// QuizSession is a QuizState bound to a player.
type QuizSession struct {
	ID         string     `json:"id"`
	Address    string     `json:"address,omitempty"`
	FID        int64      `json:"fid,omitempty"`
	State      QuizState  `json:"state"`
	Choices    [][]string `json:"choices"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Finished reports whether the session has been closed.
func (s *QuizSession) Finished() bool {
	return s.FinishedAt != nil
}

// PublicQuestion is a question as shown to a player, without its answer.
type PublicQuestion struct {
	Category   string   `json:"category"`
	Type       string   `json:"type"`
	Difficulty string   `json:"difficulty"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
}

// QuizView is the client-facing projection of a session.
type QuizView struct {
	ID                 string           `json:"id"`
	Address            string           `json:"address,omitempty"`
	Questions          []PublicQuestion `json:"questions"`
	CurrentIndex       int              `json:"currentIndex"`
	Score              int              `json:"score"`
	ConsecutiveCorrect int              `json:"consecutiveCorrect"`
	TPoints            int              `json:"tPoints"`
	Answers            []AnswerRecord   `json:"answers"`
	Finished           bool             `json:"finished"`
}

// AnswerResult is returned after each submitted answer.
type AnswerResult struct {
	AnswerRecord
	CorrectAnswer string `json:"correctAnswer"`
	Score         int    `json:"score"`
	TPoints       int    `json:"tPoints"`
	Done          bool   `json:"done"`
}

// QuizResult is the persisted outcome of a finished quiz.
type QuizResult struct {
	SessionID  string    `json:"sessionId"`
	Address    string    `json:"address,omitempty"`
	FID        int64     `json:"fid,omitempty"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	TPoints    int       `json:"tPoints"`
	TxHash     string    `json:"txHash,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}

// LeaderboardEntry is a read-only projection of recorded points.
type LeaderboardEntry struct {
	WalletAddress string `json:"walletAddress"`
	TPoints       int64  `json:"tPoints"`
	FID           int64  `json:"fid,omitempty"`
	Username      string `json:"username,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	PfpURL        string `json:"pfpUrl,omitempty"`
}

// Leaderboard is an ordered snapshot of entries.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	Source    string             `json:"source"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// FarcasterUser is the subset of a Neynar user the service exposes.
type FarcasterUser struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	PfpURL      string `json:"pfpUrl"`
}

// NotificationDetails holds the push target a client registered for a FID.
type NotificationDetails struct {
	FID       int64     `json:"fid"`
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// openTDBCategories maps OpenTDB category ids to the names carried by questions.
var openTDBCategories = map[string]string{
	"9":  "General Knowledge",
	"11": "Entertainment: Film",
	"12": "Entertainment: Music",
	"17": "Science & Nature",
	"18": "Science: Computers",
	"19": "Science: Mathematics",
	"21": "Sports",
	"22": "Geography",
	"23": "History",
}

// CategoryName resolves an OpenTDB category id; names pass through unchanged.
func CategoryName(category string) string {
	if name, ok := openTDBCategories[category]; ok {
		return name
	}
	return category
}
