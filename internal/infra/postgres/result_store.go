package postgres

import (
	"context"
	"fmt"

	"triviacast-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultStore records finished quizzes and serves them as a leaderboard source.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) Name() string { return "postgres" }

func (s *ResultStore) Record(ctx context.Context, r domain.QuizResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_results (session_id, address, fid, score, total, t_points, tx_hash, finished_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3::bigint, 0), $4, $5, $6, NULLIF($7, ''), $8)
		ON CONFLICT (session_id) DO NOTHING`,
		r.SessionID, r.Address, r.FID, r.Score, r.Total, r.TPoints, r.TxHash, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert quiz result: %w", err)
	}
	return nil
}

func (s *ResultStore) SetTxHash(ctx context.Context, sessionID, txHash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE quiz_results SET tx_hash = $2 WHERE session_id = $1`, sessionID, txHash)
	if err != nil {
		return fmt.Errorf("update quiz result tx: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *ResultStore) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT min(address), SUM(t_points)::bigint AS total
		FROM quiz_results
		WHERE address IS NOT NULL
		GROUP BY lower(address)
		ORDER BY total DESC, 1
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.WalletAddress, &e.TPoints); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ResultStore) PointsOf(ctx context.Context, address string) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(t_points), 0)::bigint FROM quiz_results
		WHERE lower(address) = lower($1)`, address).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("query points: %w", err)
	}
	return total, nil
}
