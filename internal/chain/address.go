package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsAddress accepts only the 0x-prefixed 40 hex digit form.
func IsAddress(s string) bool {
	return (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) && common.IsHexAddress(s)
}
