package postgres

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// numStr renders a big integer for a NUMERIC(78,0) parameter. Nil is
// stored as zero so numeric columns never need NULL handling.
func numStr(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

// parseNum parses a NUMERIC column selected with ::text.
func parseNum(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed numeric %q", s)
	}
	return n, nil
}

// addrBytes renders an address for a BYTEA parameter.
func addrBytes(a common.Address) []byte {
	return a.Bytes()
}

// hashBytes renders a hash for a BYTEA parameter.
func hashBytes(h common.Hash) []byte {
	return h.Bytes()
}
