package common

import (
	"fmt"
	"math/big"
	"strings"

	gcommon "github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress validates a hex account address and returns its canonical
// lowercase form. Ledger records always store the normalized form so lookups
// never miss on checksum-cased input.
func NormalizeAddress(s string) (string, error) {
	if !gcommon.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address: %s", s)
	}
	return strings.ToLower(gcommon.HexToAddress(s).Hex()), nil
}

// ParseAmount parses a base-10 amount string into a big integer.
func ParseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}
	return amount, nil
}

// ParsePositiveAmount parses a base-10 amount string and rejects zero and
// negative values.
func ParsePositiveAmount(s string) (*big.Int, error) {
	amount, err := ParseAmount(s)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0, got %q", s)
	}
	return amount, nil
}

// GetSortingCondition translates an API sort parameter ("field" or "-field")
// into an ORDER BY column and direction, falling back to created_at for
// unknown fields.
func GetSortingCondition(sort string, allowed map[string]bool) (string, string) {
	direction := "ASC"
	field := sort
	if strings.HasPrefix(sort, "-") {
		direction = "DESC"
		field = sort[1:]
	}
	if !allowed[field] {
		field = "created_at"
	}
	return field, direction
}
