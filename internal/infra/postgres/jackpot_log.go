package postgres

import (
	"context"
	"errors"
	"fmt"

	"triviacast-service/internal/domain"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// JackpotLog persists spins in the jackpot_log table.
type JackpotLog struct {
	pool *pgxpool.Pool
}

func NewJackpotLog(pool *pgxpool.Pool) *JackpotLog {
	return &JackpotLog{pool: pool}
}

const uniqueViolation = "23505"

const jackpotColumns = `spun_at, address, roll, tier, prize, paid,
	COALESCE(claim_nonce, ''), COALESCE(signature, ''), COALESCE(tx_hash, '')`

func (l *JackpotLog) Append(ctx context.Context, e domain.JackpotLogEntry) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO jackpot_log (spun_at, address, roll, tier, prize, paid, claim_nonce, signature, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''))`,
		e.Timestamp, e.Address, e.Roll, string(e.Tier), e.Prize, e.Paid, e.ClaimNonce, e.Signature, e.TxHash)
	if err != nil {
		return fmt.Errorf("insert jackpot entry: %w", err)
	}
	return nil
}

func (l *JackpotLog) ListByAddress(ctx context.Context, address string, limit int) ([]domain.JackpotLogEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+jackpotColumns+`
		FROM jackpot_log
		WHERE lower(address) = lower($1)
		ORDER BY spun_at DESC, id DESC
		LIMIT $2`, address, limit)
	if err != nil {
		return nil, fmt.Errorf("list jackpot entries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.JackpotLogEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *JackpotLog) FindClaim(ctx context.Context, address, nonce string) (domain.JackpotLogEntry, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT `+jackpotColumns+`
		FROM jackpot_log
		WHERE claim_nonce = $1 AND lower(address) = lower($2)`, nonce, address)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.JackpotLogEntry{}, domain.ErrClaimNotFound
	}
	return e, err
}

// MarkPaid only updates an unpaid row, so exactly one of several concurrent
// confirmations succeeds. The unique tx_hash index rejects a payout
// transaction recorded for another claim.
func (l *JackpotLog) MarkPaid(ctx context.Context, address, nonce, txHash string) error {
	tag, err := l.pool.Exec(ctx, `
		UPDATE jackpot_log SET paid = true, tx_hash = $3
		WHERE claim_nonce = $1 AND lower(address) = lower($2) AND paid = false`,
		nonce, address, txHash)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrTxAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("mark jackpot paid: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := l.FindClaim(ctx, address, nonce); err != nil {
		return err
	}
	return domain.ErrAlreadyPaid
}

func scanEntry(row pgx.Row) (domain.JackpotLogEntry, error) {
	var (
		e    domain.JackpotLogEntry
		tier string
	)
	err := row.Scan(&e.Timestamp, &e.Address, &e.Roll, &tier, &e.Prize, &e.Paid, &e.ClaimNonce, &e.Signature, &e.TxHash)
	if err != nil {
		return domain.JackpotLogEntry{}, err
	}
	e.Tier = domain.Tier(tier)
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}
