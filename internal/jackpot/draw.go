// Package jackpot maps random rolls onto prize tiers.
package jackpot

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"triviacast-service/internal/domain"
)

// RollSpace is the exclusive upper bound of a roll.
const RollSpace = 1_000_000

type band struct {
	tier  domain.Tier
	width int64
	prize int64
}

// bands are checked in order against a cumulative threshold.
var bands = []band{
	{domain.TierJackpot, 100, 10_000_000},
	{domain.TierMedium, 10_000, 10_000},
	{domain.TierSmall, 250_000, 100},
}

// Outcome is the result of one draw.
type Outcome struct {
	Roll  int64       `json:"roll"`
	Tier  domain.Tier `json:"tier"`
	Prize int64       `json:"prize"`
}

// TierForRoll resolves a roll in [0, RollSpace) to its tier and TRIV prize.
func TierForRoll(roll int64) (domain.Tier, int64) {
	var threshold int64
	for _, b := range bands {
		threshold += b.width
		if roll < threshold {
			return b.tier, b.prize
		}
	}
	return domain.TierNone, 0
}

// PrizeFor returns the fixed prize of a tier.
func PrizeFor(tier domain.Tier) int64 {
	for _, b := range bands {
		if b.tier == tier {
			return b.prize
		}
	}
	return 0
}

// Drawer draws rolls from a random source.
type Drawer struct {
	src io.Reader
}

// NewDrawer returns a Drawer backed by crypto/rand.
func NewDrawer() *Drawer {
	return &Drawer{src: rand.Reader}
}

// NewDrawerWithSource is used by tests to make draws deterministic.
func NewDrawerWithSource(src io.Reader) *Drawer {
	return &Drawer{src: src}
}

// Draw rolls once and resolves the tier.
func (d *Drawer) Draw() (Outcome, error) {
	n, err := rand.Int(d.src, big.NewInt(RollSpace))
	if err != nil {
		return Outcome{}, fmt.Errorf("draw roll: %w", err)
	}
	roll := n.Int64()
	tier, prize := TierForRoll(roll)
	return Outcome{Roll: roll, Tier: tier, Prize: prize}, nil
}
