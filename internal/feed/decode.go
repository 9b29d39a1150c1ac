// Package feed delivers decoded contract events to the dispatcher,
// either live over a websocket or replayed from a JSONL dump. Both paths
// produce identical domain.Event values, so replay and live ingestion
// reduce to the same rows.
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"domain-market-indexer/internal/domain"
)

// wireEvent is the JSON envelope emitted by the delivery layer.
type wireEvent struct {
	ChainID         uint64         `json:"chainId"`
	Contract        string         `json:"contract"`
	ContractAddress string         `json:"contractAddress"`
	Name            string         `json:"name"`
	Args            map[string]any `json:"args"`
	BlockNumber     uint64         `json:"blockNumber"`
	Timestamp       uint64         `json:"timestamp"`
	TxHash          string         `json:"txHash"`
	TxFrom          string         `json:"txFrom"`
	LogIndex        uint32         `json:"logIndex"`
}

// DecodeEvent parses one wire envelope. Numeric argument values are kept
// as json.Number so uint256 amounts survive without float truncation.
func DecodeEvent(data []byte) (*domain.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var w wireEvent
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if w.Contract == "" || w.Name == "" {
		return nil, fmt.Errorf("event envelope missing contract or name")
	}
	if !strings.HasPrefix(w.TxHash, "0x") || len(w.TxHash) != 66 {
		return nil, fmt.Errorf("event envelope has malformed txHash %q", w.TxHash)
	}

	ev := &domain.Event{
		ChainID:     w.ChainID,
		Contract:    domain.Contract(w.Contract),
		Name:        w.Name,
		Args:        domain.Args(w.Args),
		BlockNumber: w.BlockNumber,
		Timestamp:   w.Timestamp,
		TxHash:      common.HexToHash(w.TxHash),
		LogIndex:    w.LogIndex,
	}
	if w.ContractAddress != "" {
		if !common.IsHexAddress(w.ContractAddress) {
			return nil, fmt.Errorf("event envelope has malformed contractAddress %q", w.ContractAddress)
		}
		ev.ContractAddress = common.HexToAddress(w.ContractAddress)
	}
	if w.TxFrom != "" {
		if !common.IsHexAddress(w.TxFrom) {
			return nil, fmt.Errorf("event envelope has malformed txFrom %q", w.TxFrom)
		}
		ev.TxFrom = common.HexToAddress(w.TxFrom)
	}
	if ev.Args == nil {
		ev.Args = domain.Args{}
	}
	return ev, nil
}
