package app

import (
	"strings"

	"triviacast-service/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress validates a hex wallet address and returns its EIP-55 form.
func NormalizeAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return "", domain.ErrInvalidAddress
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return "", domain.ErrInvalidAddress
	}
	return addr.Hex(), nil
}
