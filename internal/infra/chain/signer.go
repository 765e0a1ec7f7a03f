// Package chain talks to the Triviacast contracts and signs jackpot claims.
package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"triviacast-service/internal/domain"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// TokenDecimals of the TRIV token.
const TokenDecimals = 18

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)

// ToWei converts a whole-token prize into base units.
func ToWei(prize int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(prize), weiPerToken)
}

// Signer produces EIP-191 signatures the jackpot contract verifies before paying out.
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner parses a hex private key, with or without 0x prefix.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := ParseKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key}, nil
}

func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Address is the account the contract must trust as claim signer.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// SignClaim signs keccak256(abi.encodePacked(address, amountWei, nonce)).
func (s *Signer) SignClaim(address string, prize int64, nonce string) (domain.JackpotClaim, error) {
	if !common.IsHexAddress(address) {
		return domain.JackpotClaim{}, domain.ErrInvalidAddress
	}
	wei := ToWei(prize)
	digest := accounts.TextHash(claimHash(common.HexToAddress(address), wei, nonce))
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return domain.JackpotClaim{}, fmt.Errorf("sign claim: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return domain.JackpotClaim{
		Address:   common.HexToAddress(address).Hex(),
		Prize:     prize,
		AmountWei: wei.String(),
		Nonce:     nonce,
		Signature: hexutil.Encode(sig),
	}, nil
}

// RecoverClaimSigner returns the account that signed claim.
func RecoverClaimSigner(claim domain.JackpotClaim) (common.Address, error) {
	sig, err := hexutil.Decode(claim.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, domain.ErrInvalidSignature
	}
	wei, ok := new(big.Int).SetString(claim.AmountWei, 10)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: amount %q", domain.ErrInvalidSignature, claim.AmountWei)
	}
	sig = append([]byte(nil), sig...)
	sig[crypto.RecoveryIDOffset] -= 27

	digest := accounts.TextHash(claimHash(common.HexToAddress(claim.Address), wei, claim.Nonce))
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func claimHash(addr common.Address, wei *big.Int, nonce string) []byte {
	return crypto.Keccak256(addr.Bytes(), common.LeftPadBytes(wei.Bytes(), 32), []byte(nonce))
}
