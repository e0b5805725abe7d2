package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"txguard/internal/guard"
	"txguard/internal/model"
)

// BuildPolicy validates the raw policy values and builds a guard.Policy.
func BuildPolicy(cfg PolicyConfig) (*guard.Policy, error) {
	contracts, err := ParseAddresses(cfg.WhitelistContracts)
	if err != nil {
		return nil, err
	}

	chainIDs, err := ParseChainIDs(cfg.WhitelistChainIDs)
	if err != nil {
		return nil, err
	}

	maxValue, err := model.ParseAmount(cfg.MaxNativeValue)
	if err != nil {
		return nil, fmt.Errorf("max native value: %w", err)
	}

	return guard.NewPolicy(contracts, chainIDs, maxValue), nil
}

// BuildTx converts command-line transaction fields into a TransactionMeta.
func BuildTx(cfg TxConfig) (model.TransactionMeta, error) {
	tx := model.TransactionMeta{
		From: cfg.From,
		To:   cfg.To,
		Data: cfg.Data,
	}

	value, err := model.ParseAmount(cfg.Value)
	if err != nil {
		return model.TransactionMeta{}, fmt.Errorf("value: %w", err)
	}
	tx.Value = value

	if cfg.ChainID != "" {
		id, err := strconv.ParseUint(cfg.ChainID, 0, 64)
		if err != nil {
			return model.TransactionMeta{}, fmt.Errorf("invalid chain id: %s", cfg.ChainID)
		}
		tx.ChainID = &id
	}

	return tx, nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		addr, err := guard.CanonicalAddress(input)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// ParseChainIDs converts decimal or 0x-prefixed chain ids into uint64.
func ParseChainIDs(inputs []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		id, err := strconv.ParseUint(input, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id: %s", input)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
