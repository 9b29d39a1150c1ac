package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Contract identifies the source contract of a decoded event.
// Values match the contract names used by the delivery layer.
type Contract string

const (
	ContractAuctionHouse     Contract = "DomainAuctionHouse"
	ContractEnglishAuction   Contract = "EnglishAuction"
	ContractDutchAuction     Contract = "DutchAuction"
	ContractSealedBidAuction Contract = "SealedBidAuction"
	ContractFeeManager       Contract = "FeeManager"
	ContractRegistrarBridge  Contract = "RegistrarBridge"
	ContractLendingPool      Contract = "DomainLendingPool"
	ContractRentalVault      Contract = "DomainRentalVault"
)

// RouteKey identifies the reducer responsible for an event.
type RouteKey struct {
	Contract Contract
	Event    string
}

func (k RouteKey) String() string {
	return string(k.Contract) + ":" + k.Event
}

// Event is one decoded contract event as delivered by the event-delivery
// layer. Ordering within a chain is (BlockNumber ASC, LogIndex ASC).
type Event struct {
	ChainID         uint64
	Contract        Contract
	ContractAddress common.Address
	Name            string
	Args            Args
	BlockNumber     uint64
	Timestamp       uint64 // Unix timestamp in seconds (block time)
	TxHash          common.Hash
	TxFrom          common.Address
	LogIndex        uint32
}

// RouteKey returns the (contract, event) routing key.
func (e *Event) RouteKey() RouteKey {
	return RouteKey{Contract: e.Contract, Event: e.Name}
}

// LedgerID derives the deterministic primary key used for append-only rows
// produced by this event.
func (e *Event) LedgerID() string {
	return fmt.Sprintf("%s-%d", e.TxHash.Hex(), e.LogIndex)
}

// DecodeError reports a malformed or missing event argument. Events that
// fail to decode are skipped, never fatal to the stream.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode arg %q: %s", e.Field, e.Reason)
}

// Args holds the typed arguments of a decoded event. Accessors coerce both
// canonical in-process values and the JSON representations produced by the
// delivery layer, and fail with *DecodeError otherwise.
type Args map[string]any

// Has reports whether an argument is present. Used for args that are
// optional at the ABI level, like the strategy carried on some listings.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// ID returns an entity id argument as its decimal string form. On-chain
// ids are unsigned integers; entity keys store them as strings.
func (a Args) ID(key string) (string, error) {
	n, err := a.BigInt(key)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// Address returns a 20-byte address argument.
func (a Args) Address(key string) (common.Address, error) {
	v, ok := a[key]
	if !ok {
		return common.Address{}, &DecodeError{Field: key, Reason: "missing"}
	}
	switch t := v.(type) {
	case common.Address:
		return t, nil
	case string:
		if !common.IsHexAddress(t) {
			return common.Address{}, &DecodeError{Field: key, Reason: "not a hex address"}
		}
		return common.HexToAddress(t), nil
	default:
		return common.Address{}, &DecodeError{Field: key, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
}

// Hash returns a 32-byte hash argument.
func (a Args) Hash(key string) (common.Hash, error) {
	v, ok := a[key]
	if !ok {
		return common.Hash{}, &DecodeError{Field: key, Reason: "missing"}
	}
	switch t := v.(type) {
	case common.Hash:
		return t, nil
	case string:
		if !strings.HasPrefix(t, "0x") || len(t) != 66 {
			return common.Hash{}, &DecodeError{Field: key, Reason: "not a 32-byte hex hash"}
		}
		return common.HexToHash(t), nil
	default:
		return common.Hash{}, &DecodeError{Field: key, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
}

// BigInt returns an arbitrary-precision unsigned integer argument.
func (a Args) BigInt(key string) (*big.Int, error) {
	v, ok := a[key]
	if !ok {
		return nil, &DecodeError{Field: key, Reason: "missing"}
	}
	switch t := v.(type) {
	case *big.Int:
		return new(big.Int).Set(t), nil
	case int:
		return big.NewInt(int64(t)), nil
	case int64:
		return big.NewInt(t), nil
	case uint64:
		return new(big.Int).SetUint64(t), nil
	case json.Number:
		return parseBig(key, t.String())
	case string:
		return parseBig(key, t)
	default:
		return nil, &DecodeError{Field: key, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
}

func parseBig(key, s string) (*big.Int, error) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, &DecodeError{Field: key, Reason: "not an integer"}
	}
	if n.Sign() < 0 {
		return nil, &DecodeError{Field: key, Reason: "negative amount"}
	}
	return n, nil
}

// Uint64 returns a small unsigned integer argument (day counts, flags).
func (a Args) Uint64(key string) (uint64, error) {
	n, err := a.BigInt(key)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, &DecodeError{Field: key, Reason: "does not fit in uint64"}
	}
	return n.Uint64(), nil
}

// Bool returns a boolean argument.
func (a Args) Bool(key string) (bool, error) {
	v, ok := a[key]
	if !ok {
		return false, &DecodeError{Field: key, Reason: "missing"}
	}
	b, ok := v.(bool)
	if !ok {
		return false, &DecodeError{Field: key, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
	return b, nil
}

// Bytes returns an opaque byte-string argument (strategy data, eligibility
// data). Hex strings are decoded; "0x" yields an empty slice.
func (a Args) Bytes(key string) ([]byte, error) {
	v, ok := a[key]
	if !ok {
		return nil, &DecodeError{Field: key, Reason: "missing"}
	}
	switch t := v.(type) {
	case []byte:
		return append([]byte(nil), t...), nil
	case string:
		if !strings.HasPrefix(t, "0x") {
			return nil, &DecodeError{Field: key, Reason: "byte string without 0x prefix"}
		}
		b, err := parseHexBytes(t[2:])
		if err != nil {
			return nil, &DecodeError{Field: key, Reason: "invalid hex bytes"}
		}
		return b, nil
	default:
		return nil, &DecodeError{Field: key, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
}

func parseHexBytes(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		s = "0" + s
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		b, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}

// Text returns a free-form string argument (registrar references, messages).
func (a Args) Text(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", &DecodeError{Field: key, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &DecodeError{Field: key, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
	return s, nil
}
