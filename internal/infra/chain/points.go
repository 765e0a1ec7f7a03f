package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"triviacast-service/internal/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const pointsABI = `[
	{"type":"function","name":"getLeaderboard","stateMutability":"view",
	 "inputs":[{"name":"limit","type":"uint256"}],
	 "outputs":[{"name":"users","type":"address[]"},{"name":"points","type":"uint256[]"}]},
	{"type":"function","name":"getPoints","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"addPoints","stateMutability":"nonpayable",
	 "inputs":[{"name":"user","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[]}
]`

var parsedPointsABI = mustParseABI(pointsABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// PointsContract reads the on-chain leaderboard and submits quiz points through a relayer.
type PointsContract struct {
	contract *bind.BoundContract
	relayer  *ecdsa.PrivateKey
	chainID  *big.Int
}

// NewPointsContract binds the contract at address. transactor and relayer may be
// nil for a read-only binding.
func NewPointsContract(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, relayer *ecdsa.PrivateKey, chainID *big.Int) *PointsContract {
	return &PointsContract{
		contract: bind.NewBoundContract(address, parsedPointsABI, caller, transactor, nil),
		relayer:  relayer,
		chainID:  chainID,
	}
}

func (p *PointsContract) Name() string { return "chain" }

func (p *PointsContract) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getLeaderboard", big.NewInt(int64(limit))); err != nil {
		return nil, fmt.Errorf("%w: getLeaderboard: %v", domain.ErrUpstream, err)
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("%w: getLeaderboard returned %d values", domain.ErrUpstream, len(out))
	}
	users, ok1 := out[0].([]common.Address)
	points, ok2 := out[1].([]*big.Int)
	if !ok1 || !ok2 || len(users) != len(points) {
		return nil, fmt.Errorf("%w: malformed getLeaderboard result", domain.ErrUpstream)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		if u == (common.Address{}) {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			WalletAddress: u.Hex(),
			TPoints:       clampInt64(points[i]),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].TPoints > entries[j].TPoints })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (p *PointsContract) PointsOf(ctx context.Context, address string) (int64, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getPoints", common.HexToAddress(address)); err != nil {
		return 0, fmt.Errorf("%w: getPoints: %v", domain.ErrUpstream, err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("%w: getPoints returned %d values", domain.ErrUpstream, len(out))
	}
	points, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%w: malformed getPoints result", domain.ErrUpstream)
	}
	return clampInt64(points), nil
}

// SubmitPoints sends addPoints from the relayer account and returns the tx hash
// without waiting for it to be mined.
func (p *PointsContract) SubmitPoints(ctx context.Context, address string, amount int64) (string, error) {
	if p.relayer == nil || p.chainID == nil {
		return "", domain.ErrChainUnavailable
	}
	opts, err := bind.NewKeyedTransactorWithChainID(p.relayer, p.chainID)
	if err != nil {
		return "", err
	}
	opts.Context = ctx
	tx, err := p.contract.Transact(opts, "addPoints", common.HexToAddress(address), big.NewInt(amount))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: addPoints: %v", domain.ErrUpstream, err)
	}
	return tx.Hash().Hex(), nil
}

func clampInt64(v *big.Int) int64 {
	if v == nil {
		return 0
	}
	if !v.IsInt64() {
		if v.Sign() < 0 {
			return 0
		}
		return int64(^uint64(0) >> 1)
	}
	return v.Int64()
}
