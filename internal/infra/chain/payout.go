package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"triviacast-service/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const jackpotABI = `[
  {"type":"event","name":"JackpotClaimed","anonymous":false,"inputs":[
    {"name":"winner","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"nonce","type":"string","indexed":false}]}
]`

var parsedJackpotABI = mustParseABI(jackpotABI)

// TransactionReader is the part of ethclient.Client the payout check needs.
type TransactionReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// PayoutVerifier matches a mined receipt against a logged jackpot claim.
type PayoutVerifier struct {
	reader  TransactionReader
	jackpot common.Address
}

// NewPayoutVerifier only accepts JackpotClaimed events emitted by jackpot.
func NewPayoutVerifier(reader TransactionReader, jackpot common.Address) *PayoutVerifier {
	return &PayoutVerifier{reader: reader, jackpot: jackpot}
}

// VerifyPayout reports whether txHash succeeded and emitted a JackpotClaimed
// event for the entry's winner, prize in wei and claim nonce.
func (v *PayoutVerifier) VerifyPayout(ctx context.Context, txHash string, entry domain.JackpotLogEntry) (bool, error) {
	raw, err := hexHash(txHash)
	if err != nil {
		return false, err
	}

	receipt, err := v.reader.TransactionReceipt(ctx, raw)
	if errors.Is(err, ethereum.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: receipt: %v", domain.ErrUpstream, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return false, nil
	}

	winner := common.HexToAddress(entry.Address)
	wei := ToWei(entry.Prize)
	for _, lg := range receipt.Logs {
		if claimMatches(lg, v.jackpot, winner, wei, entry.ClaimNonce) {
			return true, nil
		}
	}
	return false, nil
}

func claimMatches(lg *types.Log, jackpot, winner common.Address, wei *big.Int, nonce string) bool {
	event := parsedJackpotABI.Events["JackpotClaimed"]
	if lg == nil || lg.Address != jackpot || len(lg.Topics) != 2 || lg.Topics[0] != event.ID {
		return false
	}
	if common.BytesToAddress(lg.Topics[1].Bytes()) != winner {
		return false
	}
	var claimed struct {
		Amount *big.Int
		Nonce  string
	}
	if err := parsedJackpotABI.UnpackIntoInterface(&claimed, "JackpotClaimed", lg.Data); err != nil {
		return false
	}
	return claimed.Amount != nil && claimed.Amount.Cmp(wei) == 0 && claimed.Nonce == nonce
}

func hexHash(s string) (common.Hash, error) {
	b := common.FromHex(s)
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: tx hash %q", domain.ErrInvalidQuery, s)
	}
	return common.BytesToHash(b), nil
}
