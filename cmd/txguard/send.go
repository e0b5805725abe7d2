package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"txguard/internal/chain"
	"txguard/internal/config"
	"txguard/internal/model"
	"txguard/internal/signer"
)

func runSend(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSend(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	policy, err := config.BuildPolicy(cfg.Policy)
	if err != nil {
		return err
	}

	tx, err := config.BuildTx(cfg.Tx)
	if err != nil {
		return err
	}

	key, err := signer.ParsePrivateKey(cfg.Key)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	audit, closeAudit, err := openAudit(ctx, cfg.AuditOut, cfg.PGDSN, logger)
	if err != nil {
		return err
	}
	defer closeAudit()

	chainWriter, err := signer.NewChainWriter(signer.ChainWriterConfig{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, key, logger)
	if err != nil {
		return err
	}

	// keep the signed transaction so --wait can follow it
	var signed *types.Transaction
	submit := signer.WriterFunc(func(ctx context.Context, tx model.TransactionMeta) (common.Hash, error) {
		s, err := chainWriter.Sign(ctx, tx)
		if err != nil {
			return common.Hash{}, err
		}
		signed = s
		return chainWriter.Submit(ctx, s)
	})

	writer := signer.NewGuardedWriter(policy, submit,
		signer.WithLogger(logger),
		signer.WithAudit(audit),
		signer.WithNotifier(signer.NotifierFunc(func(_ model.TransactionMeta, result model.AnalysisResult) {
			fmt.Fprintf(cmd.ErrOrStderr(), "transaction blocked:\n  - %s\n", strings.Join(result.RiskLabels(), "\n  - "))
		})),
	)

	logger.Info("send start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("from", chainWriter.From().Hex()),
		zap.String("to", tx.To),
		zap.Bool("wait", cfg.Wait),
	)

	hash, err := writer.Send(ctx, tx)
	if err != nil {
		var riskErr *signer.RiskError
		if errors.As(err, &riskErr) {
			logger.Warn("send refused", zap.Int("risks", len(riskErr.Result.Risks)))
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash.Hex())

	if !cfg.Wait {
		return nil
	}

	receipt, err := chainClient.WaitMined(ctx, signed)
	if err != nil {
		return fmt.Errorf("wait receipt: %w", err)
	}
	logger.Info("transaction mined",
		zap.String("tx_hash", hash.Hex()),
		zap.Uint64("block_number", receipt.BlockNumber.Uint64()),
		zap.Uint64("status", receipt.Status),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return nil
}
