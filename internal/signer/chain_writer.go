package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"txguard/internal/guard"
	"txguard/internal/model"
)

// Backend is the subset of the chain client used to build and submit transactions.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// ChainWriterConfig holds retry settings for read-only RPC calls.
type ChainWriterConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// ChainWriter signs transactions with a local key and submits them through Backend.
type ChainWriter struct {
	cfg     ChainWriterConfig
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	logger  *zap.Logger
}

// NewChainWriter builds a ChainWriter for the given key.
func NewChainWriter(cfg ChainWriterConfig, backend Backend, key *ecdsa.PrivateKey, logger *zap.Logger) (*ChainWriter, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if key == nil {
		return nil, fmt.Errorf("private key is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainWriter{
		cfg:     cfg,
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		logger:  logger,
	}, nil
}

// ParsePrivateKey decodes a hex private key with or without the 0x prefix.
func ParsePrivateKey(input string) (*ecdsa.PrivateKey, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "0x")
	if input == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(input)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// From returns the signing address.
func (w *ChainWriter) From() common.Address {
	return w.from
}

// Send signs tx and submits it. Submission itself is never retried.
func (w *ChainWriter) Send(ctx context.Context, tx model.TransactionMeta) (common.Hash, error) {
	signed, err := w.Sign(ctx, tx)
	if err != nil {
		return common.Hash{}, err
	}
	return w.Submit(ctx, signed)
}

// Submit broadcasts an already signed transaction once.
func (w *ChainWriter) Submit(ctx context.Context, signed *types.Transaction) (common.Hash, error) {
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("submit: %w", err)
	}
	w.logger.Info("transaction submitted",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", signed.Nonce()),
		zap.Uint64("gas", signed.Gas()),
	)
	return signed.Hash(), nil
}

// Sign builds and signs tx without submitting it.
func (w *ChainWriter) Sign(ctx context.Context, tx model.TransactionMeta) (*types.Transaction, error) {
	to, err := guard.CanonicalAddress(tx.To)
	if err != nil {
		return nil, err
	}

	if tx.From != "" {
		from, err := guard.CanonicalAddress(tx.From)
		if err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
		if from != w.from {
			return nil, fmt.Errorf("from %s does not match signing key %s", from.Hex(), w.from.Hex())
		}
	}

	var data []byte
	if strings.TrimSpace(tx.Data) != "" {
		data, err = guard.DecodeCallData(tx.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid data: %w", err)
		}
	}

	value := new(big.Int)
	if tx.Value != nil {
		value.Set(tx.Value)
	}

	var chainID *big.Int
	if err := w.retry(ctx, "chain id", func(ctx context.Context) error {
		id, err := w.backend.ChainID(ctx)
		chainID = id
		return err
	}); err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if chainID == nil {
		return nil, fmt.Errorf("get chain id: node returned no chain id")
	}
	if tx.ChainID != nil && (!chainID.IsUint64() || chainID.Uint64() != *tx.ChainID) {
		return nil, fmt.Errorf("chain id mismatch: transaction %d, node %s", *tx.ChainID, chainID)
	}

	var nonce uint64
	if err := w.retry(ctx, "nonce", func(ctx context.Context) error {
		n, err := w.backend.PendingNonceAt(ctx, w.from)
		nonce = n
		return err
	}); err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	var gas uint64
	msg := ethereum.CallMsg{From: w.from, To: &to, Value: value, Data: data}
	if err := w.retry(ctx, "estimate gas", func(ctx context.Context) error {
		g, err := w.backend.EstimateGas(ctx, msg)
		gas = g
		return err
	}); err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	var gasPrice *big.Int
	if err := w.retry(ctx, "gas price", func(ctx context.Context) error {
		price, err := w.backend.SuggestGasPrice(ctx)
		gasPrice = price
		return err
	}); err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	var inner types.TxData
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		w.logger.Debug("tip cap unavailable, using legacy transaction", zap.Error(err))
		inner = &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     data,
		}
	} else {
		inner = &types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: new(big.Int).Add(gasPrice, tip),
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      data,
		}
	}

	signed, err := types.SignTx(types.NewTx(inner), types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return signed, nil
}

func (w *ChainWriter) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	return withRetry(ctx, w.cfg, w.logger, op, fn)
}
