package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte width of a player address
const AddressLength = 20

// Address identifies a player or contract. It is kept in canonical form:
// lowercase hex with a 0x prefix.
type Address string

// ZeroAddress is returned by reads that have nothing to report
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates and canonicalizes a hex address
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if len(raw) != AddressLength*2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address("0x" + strings.ToLower(raw)), nil
}

// MustParseAddress is ParseAddress for constants and tests
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// IsZero reports whether a is empty or the zero address
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// String returns the canonical hex form
func (a Address) String() string {
	if a == "" {
		return string(ZeroAddress)
	}
	return string(a)
}

// Short renders an address the way the leaderboard screens show it
func (a Address) Short() string {
	s := a.String()
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

// PlayerSummary is the per-player view served to the lobby screens
type PlayerSummary struct {
	Address      Address  `json:"address"`
	TotalScore   uint64   `json:"total_score"`
	DailyScore   uint64   `json:"daily_score"`
	Day          uint64   `json:"day"`
	Rank         int64    `json:"rank,omitempty"`
	IsChampion   bool     `json:"is_champion"`
	OwnedTokens  []uint64 `json:"owned_tokens,omitempty"`
	TokenBalance int      `json:"token_balance"`
}
