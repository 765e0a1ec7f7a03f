package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"triviacast-service/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestToWei(t *testing.T) {
	require.Equal(t, "100000000000000000000", ToWei(100).String())
	require.Equal(t, "10000000000000000000000000", ToWei(10_000_000).String())
}

func TestSignClaimRecoversSigner(t *testing.T) {
	signer, err := NewSigner("0x" + testKey)
	require.NoError(t, err)

	addr := "0x52908400098527886e0f7030069857d2e4169ee7"
	claim, err := signer.SignClaim(addr, 10_000, "nonce-1")
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(addr).Hex(), claim.Address)
	require.Equal(t, ToWei(10_000).String(), claim.AmountWei)
	require.Len(t, common.FromHex(claim.Signature), crypto.SignatureLength)

	v := common.FromHex(claim.Signature)[crypto.RecoveryIDOffset]
	require.True(t, v == 27 || v == 28, "v must be 27 or 28, got %d", v)

	recovered, err := RecoverClaimSigner(claim)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), recovered)

	again, err := signer.SignClaim(addr, 10_000, "nonce-1")
	require.NoError(t, err)
	require.Equal(t, claim.Signature, again.Signature, "signatures are deterministic")
}

func TestRecoverRejectsTamperedClaim(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)
	claim, err := signer.SignClaim("0x52908400098527886e0f7030069857d2e4169ee7", 100, "n")
	require.NoError(t, err)

	claim.AmountWei = ToWei(10_000_000).String()
	recovered, err := RecoverClaimSigner(claim)
	if err == nil {
		require.NotEqual(t, signer.Address(), recovered)
	}

	claim.Signature = "0x1234"
	_, err = RecoverClaimSigner(claim)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestSignClaimInvalidAddress(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)
	_, err = signer.SignClaim("not-an-address", 100, "n")
	require.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = NewSigner("zz")
	require.Error(t, err)
}

type fakeCaller struct {
	users  []common.Address
	points []*big.Int
	single *big.Int
}

func (f *fakeCaller) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x1}, nil
}

func (f *fakeCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	switch {
	case bytes.HasPrefix(call.Data, parsedPointsABI.Methods["getLeaderboard"].ID):
		return parsedPointsABI.Methods["getLeaderboard"].Outputs.Pack(f.users, f.points)
	case bytes.HasPrefix(call.Data, parsedPointsABI.Methods["getPoints"].ID):
		return parsedPointsABI.Methods["getPoints"].Outputs.Pack(f.single)
	}
	return nil, errors.New("unexpected call")
}

func TestPointsContractTop(t *testing.T) {
	a := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	b := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	caller := &fakeCaller{
		users:  []common.Address{a, {}, b},
		points: []*big.Int{big.NewInt(1500), big.NewInt(99), big.NewInt(13500)},
		single: big.NewInt(2000),
	}
	contract := NewPointsContract(common.HexToAddress("0x01"), caller, nil, nil, nil)

	entries, err := contract.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{
		{WalletAddress: b.Hex(), TPoints: 13500},
		{WalletAddress: a.Hex(), TPoints: 1500},
	}, entries)

	points, err := contract.PointsOf(context.Background(), a.Hex())
	require.NoError(t, err)
	require.EqualValues(t, 2000, points)
	require.Equal(t, "chain", contract.Name())
}

func TestSubmitPointsWithoutRelayer(t *testing.T) {
	contract := NewPointsContract(common.HexToAddress("0x01"), &fakeCaller{}, nil, nil, nil)
	_, err := contract.SubmitPoints(context.Background(), "0x01", 100)
	require.ErrorIs(t, err, domain.ErrChainUnavailable)
}

type fakeReader struct {
	receipt *types.Receipt
	err     error
}

func (f *fakeReader) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.receipt, nil
}

func claimedLog(t *testing.T, emitter, winner common.Address, wei *big.Int, nonce string) *types.Log {
	t.Helper()
	event := parsedJackpotABI.Events["JackpotClaimed"]
	data, err := event.Inputs.NonIndexed().Pack(wei, nonce)
	require.NoError(t, err)
	return &types.Log{
		Address: emitter,
		Topics:  []common.Hash{event.ID, common.BytesToHash(winner.Bytes())},
		Data:    data,
	}
}

func TestPayoutVerifierMatchesClaim(t *testing.T) {
	jackpot := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	winner := common.HexToAddress("0x52908400098527886e0f7030069857d2e4169ee7")
	other := common.HexToAddress("0x8617e340b3d01fa5f11f306f4090fd50e238070d")
	entry := domain.JackpotLogEntry{Address: winner.Hex(), Tier: domain.TierMedium, Prize: 10_000, ClaimNonce: "nonce-1"}
	hash := common.HexToHash("0xabc").Hex()
	ctx := context.Background()

	verify := func(status uint64, logs ...*types.Log) bool {
		reader := &fakeReader{receipt: &types.Receipt{Status: status, Logs: logs}}
		ok, err := NewPayoutVerifier(reader, jackpot).VerifyPayout(ctx, hash, entry)
		require.NoError(t, err)
		return ok
	}

	require.True(t, verify(types.ReceiptStatusSuccessful, claimedLog(t, jackpot, winner, ToWei(10_000), "nonce-1")))
	require.False(t, verify(types.ReceiptStatusFailed, claimedLog(t, jackpot, winner, ToWei(10_000), "nonce-1")))
	require.False(t, verify(types.ReceiptStatusSuccessful), "a receipt without a claim event pays nothing")
	require.False(t, verify(types.ReceiptStatusSuccessful, claimedLog(t, jackpot, other, ToWei(10_000), "nonce-1")), "other winner")
	require.False(t, verify(types.ReceiptStatusSuccessful, claimedLog(t, jackpot, winner, ToWei(10_000_000), "nonce-1")), "other amount")
	require.False(t, verify(types.ReceiptStatusSuccessful, claimedLog(t, jackpot, winner, ToWei(10_000), "nonce-2")), "other nonce")
	require.False(t, verify(types.ReceiptStatusSuccessful, claimedLog(t, other, winner, ToWei(10_000), "nonce-1")), "other emitter")

	ok, err := NewPayoutVerifier(&fakeReader{err: ethereum.NotFound}, jackpot).VerifyPayout(ctx, hash, entry)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = NewPayoutVerifier(&fakeReader{err: errors.New("rpc down")}, jackpot).VerifyPayout(ctx, hash, entry)
	require.ErrorIs(t, err, domain.ErrUpstream)

	_, err = NewPayoutVerifier(&fakeReader{}, jackpot).VerifyPayout(ctx, "0x12", entry)
	require.ErrorIs(t, err, domain.ErrInvalidQuery)
}
