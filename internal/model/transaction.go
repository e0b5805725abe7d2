package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// TransactionMeta is a candidate transaction awaiting a signature.
type TransactionMeta struct {
	From    string   `json:"from,omitempty"`
	To      string   `json:"to,omitempty"`
	Data    string   `json:"data,omitempty"`
	Value   *big.Int `json:"value,omitempty"`
	ChainID *uint64  `json:"chain_id,omitempty"`
}

// HasData reports whether the transaction carries call-data. An empty payload
// and a payload of zero digits only ("0x0", "0x0000") count as no call-data.
func (tx TransactionMeta) HasData() bool {
	data := strings.TrimSpace(tx.Data)
	data = strings.TrimPrefix(strings.TrimPrefix(data, "0x"), "0X")
	return strings.Trim(data, "0") != ""
}

// MarshalJSON encodes Value as a decimal string so large amounts survive JS consumers.
func (tx TransactionMeta) MarshalJSON() ([]byte, error) {
	type Alias TransactionMeta
	out := struct {
		Alias
		Value string `json:"value,omitempty"`
	}{Alias: Alias(tx)}
	if tx.Value != nil {
		out.Value = tx.Value.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts value as a JSON number, a decimal string or a 0x hex string.
func (tx *TransactionMeta) UnmarshalJSON(data []byte) error {
	type Alias TransactionMeta
	var a struct {
		Alias
		Value json.RawMessage `json:"value,omitempty"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*tx = TransactionMeta(a.Alias)
	tx.Value = nil

	raw := bytes.TrimSpace(a.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
	}
	value, err := ParseAmount(text)
	if err != nil {
		return err
	}
	tx.Value = value
	return nil
}

// ParseAmount parses a non-negative integer amount in decimal or 0x hex form.
func ParseAmount(input string) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(input, 0)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", input)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", input)
	}
	return value, nil
}
