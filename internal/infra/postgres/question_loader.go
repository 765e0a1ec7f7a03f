package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"triviacast-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/uptrace/bun"
)

// QuestionLoader loads question pools from the questions table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadPool(ctx context.Context, filter domain.QuestionQuery) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT data FROM questions
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR difficulty = $2)
		  AND ($3 = '' OR type = $3)`,
		domain.CategoryName(filter.Category), filter.Difficulty, filter.Type)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID         int64           `bun:"id,pk,autoincrement"`
	Category   string          `bun:"category"`
	Type       string          `bun:"type"`
	Difficulty string          `bun:"difficulty"`
	Question   string          `bun:"question"`
	Data       json.RawMessage `bun:"data,type:jsonb"`
}

// SeedQuestions inserts questions, skipping any whose text is already stored.
// It returns the number of rows inserted.
func SeedQuestions(ctx context.Context, db *bun.DB, questions []domain.Question) (int64, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	rows := make([]questionRow, 0, len(questions))
	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			return 0, err
		}
		rows = append(rows, questionRow{
			Category:   q.Category,
			Type:       q.Type,
			Difficulty: q.Difficulty,
			Question:   q.Question,
			Data:       data,
		})
	}
	res, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (question) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed questions: %w", err)
	}
	return res.RowsAffected()
}
