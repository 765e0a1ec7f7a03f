package app

import (
	"context"
	"fmt"
	"time"

	"triviacast-service/internal/domain"
	"triviacast-service/internal/jackpot"
	"triviacast-service/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JackpotLog is the durable record of spins and payouts.
type JackpotLog interface {
	Append(ctx context.Context, entry domain.JackpotLogEntry) error
	ListByAddress(ctx context.Context, address string, limit int) ([]domain.JackpotLogEntry, error)
	FindClaim(ctx context.Context, address, nonce string) (domain.JackpotLogEntry, error)
	// MarkPaid flips an unpaid win to paid; a second call returns domain.ErrAlreadyPaid
	// and a tx hash already recorded for another win returns domain.ErrTxAlreadyUsed.
	MarkPaid(ctx context.Context, address, nonce, txHash string) error
}

// SpinGate limits how often an address may spin.
type SpinGate interface {
	Acquire(ctx context.Context, address string, window time.Duration) (bool, error)
	Release(ctx context.Context, address string) error
}

// ClaimSigner authorizes a payout from the jackpot contract.
type ClaimSigner interface {
	SignClaim(address string, prize int64, nonce string) (domain.JackpotClaim, error)
}

// PayoutVerifier checks that txHash paid exactly the claim recorded in entry.
type PayoutVerifier interface {
	VerifyPayout(ctx context.Context, txHash string, entry domain.JackpotLogEntry) (bool, error)
}

type drawer interface {
	Draw() (jackpot.Outcome, error)
}

// JackpotService runs spins, hands out signed claims and records payouts.
type JackpotService struct {
	log      JackpotLog
	gate     SpinGate
	signer   ClaimSigner
	verifier PayoutVerifier
	drawer   drawer
	cooldown time.Duration
	now      func() time.Time
	newNonce func() string
	logger   *zap.Logger
}

// JackpotDeps groups the collaborators of a JackpotService. Signer and
// Verifier are optional.
type JackpotDeps struct {
	Log      JackpotLog
	Gate     SpinGate
	Signer   ClaimSigner
	Verifier PayoutVerifier
	Drawer   *jackpot.Drawer
	Cooldown time.Duration
}

func NewJackpotService(deps JackpotDeps, logger *zap.Logger) *JackpotService {
	s := &JackpotService{
		log:      deps.Log,
		gate:     deps.Gate,
		signer:   deps.Signer,
		verifier: deps.Verifier,
		cooldown: deps.Cooldown,
		now:      time.Now,
		newNonce: uuid.NewString,
		logger:   logger.Named("jackpot"),
	}
	if deps.Drawer != nil {
		s.drawer = deps.Drawer
	} else {
		s.drawer = jackpot.NewDrawer()
	}
	return s
}

// Spin draws once for address. The entry is logged before it is returned; a
// logging failure fails the spin and frees the cooldown slot.
func (s *JackpotService) Spin(ctx context.Context, address string) (domain.JackpotLogEntry, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return domain.JackpotLogEntry{}, err
	}

	if s.gate != nil {
		ok, err := s.gate.Acquire(ctx, addr, s.cooldown)
		if err != nil {
			return domain.JackpotLogEntry{}, fmt.Errorf("acquire spin slot: %w", err)
		}
		if !ok {
			return domain.JackpotLogEntry{}, domain.ErrSpinCooldown
		}
	}

	entry, err := s.spin(ctx, addr)
	if err != nil {
		if s.gate != nil {
			if rerr := s.gate.Release(ctx, addr); rerr != nil {
				s.logger.Warn("release spin slot", zap.String("address", addr), zap.Error(rerr))
			}
		}
		return domain.JackpotLogEntry{}, err
	}

	metrics.JackpotSpins.WithLabelValues(string(entry.Tier)).Inc()
	s.logger.Info("jackpot spin",
		zap.String("address", addr),
		zap.Int64("roll", entry.Roll),
		zap.String("tier", string(entry.Tier)))
	return entry, nil
}

func (s *JackpotService) spin(ctx context.Context, addr string) (domain.JackpotLogEntry, error) {
	outcome, err := s.drawer.Draw()
	if err != nil {
		return domain.JackpotLogEntry{}, err
	}

	entry := domain.JackpotLogEntry{
		Timestamp: s.now().UTC(),
		Address:   addr,
		Roll:      outcome.Roll,
		Tier:      outcome.Tier,
		Prize:     outcome.Prize,
	}
	if entry.Won() {
		entry.ClaimNonce = s.newNonce()
		if s.signer != nil {
			claim, err := s.signer.SignClaim(addr, entry.Prize, entry.ClaimNonce)
			if err != nil {
				return domain.JackpotLogEntry{}, fmt.Errorf("sign claim: %w", err)
			}
			entry.Signature = claim.Signature
		}
	}

	if err := s.log.Append(ctx, entry); err != nil {
		return domain.JackpotLogEntry{}, fmt.Errorf("append jackpot log: %w", err)
	}
	return entry, nil
}

// Claim returns the signed claim for an unpaid win.
func (s *JackpotService) Claim(ctx context.Context, address, nonce string) (domain.JackpotClaim, error) {
	entry, err := s.findUnpaid(ctx, address, nonce)
	if err != nil {
		return domain.JackpotClaim{}, err
	}
	if s.signer == nil {
		return domain.JackpotClaim{}, domain.ErrChainUnavailable
	}
	// signatures are deterministic, so re-signing reproduces the logged one
	return s.signer.SignClaim(entry.Address, entry.Prize, entry.ClaimNonce)
}

// Confirm records the payout transaction of a win once the chain shows it
// paid this claim.
func (s *JackpotService) Confirm(ctx context.Context, address, nonce, txHash string) (domain.JackpotLogEntry, error) {
	entry, err := s.findUnpaid(ctx, address, nonce)
	if err != nil {
		return domain.JackpotLogEntry{}, err
	}
	if s.verifier == nil {
		return domain.JackpotLogEntry{}, domain.ErrChainUnavailable
	}
	ok, err := s.verifier.VerifyPayout(ctx, txHash, entry)
	if err != nil {
		return domain.JackpotLogEntry{}, err
	}
	if !ok {
		return domain.JackpotLogEntry{}, domain.ErrPayoutNotFound
	}
	if err := s.log.MarkPaid(ctx, entry.Address, nonce, txHash); err != nil {
		return domain.JackpotLogEntry{}, err
	}
	entry.Paid = true
	entry.TxHash = txHash
	return entry, nil
}

// History lists the latest spins of address.
func (s *JackpotService) History(ctx context.Context, address string, limit int) ([]domain.JackpotLogEntry, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.log.ListByAddress(ctx, addr, limit)
}

func (s *JackpotService) findUnpaid(ctx context.Context, address, nonce string) (domain.JackpotLogEntry, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return domain.JackpotLogEntry{}, err
	}
	if nonce == "" {
		return domain.JackpotLogEntry{}, domain.ErrClaimNotFound
	}
	entry, err := s.log.FindClaim(ctx, addr, nonce)
	if err != nil {
		return domain.JackpotLogEntry{}, err
	}
	if !entry.Won() {
		return domain.JackpotLogEntry{}, domain.ErrNotAWin
	}
	if entry.Paid {
		return domain.JackpotLogEntry{}, domain.ErrAlreadyPaid
	}
	return entry, nil
}
