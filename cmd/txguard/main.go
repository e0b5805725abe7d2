package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"txguard/internal/storage"
	"txguard/internal/storage/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "txguard",
		Short:        "Transaction risk guard for EVM wallets",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	addPolicyFlags(root.PersistentFlags())

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze transactions and report risks",
		RunE:  runAnalyze,
	}

	addTxFlags(analyzeCmd.Flags())
	analyzeCmd.Flags().String("in", "", "input transactions JSONL (overrides transaction flags)")
	analyzeCmd.Flags().String("out", "", "output results JSONL, empty means stdout")
	analyzeCmd.Flags().String("audit-out", "", "optional audit JSONL path")
	analyzeCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the audit trail")

	root.AddCommand(analyzeCmd)

	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Sign and submit a transaction if the guard allows it",
		RunE:  runSend,
	}

	addTxFlags(sendCmd.Flags())
	sendCmd.Flags().String("rpc", "", "JSON-RPC URL")
	sendCmd.Flags().String("key", "", "hex private key (prefer TXGUARD_KEY)")
	sendCmd.Flags().Bool("wait", false, "wait for the transaction receipt")
	sendCmd.Flags().Int("max-retries", 3, "maximum retry attempts for read-only RPC calls")
	sendCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	sendCmd.Flags().String("audit-out", "", "optional audit JSONL path")
	sendCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the audit trail")

	root.AddCommand(sendCmd)

	return root
}

func addPolicyFlags(flags *pflag.FlagSet) {
	flags.StringSlice("whitelist-contract", nil, "trusted contract addresses (comma-separated)")
	flags.StringSlice("whitelist-chain-id", nil, "accepted chain ids (comma-separated)")
	flags.String("max-native-value", "", "largest acceptable native value in wei")
}

func addTxFlags(flags *pflag.FlagSet) {
	flags.String("from", "", "sender address")
	flags.String("to", "", "destination address")
	flags.String("data", "", "hex call-data")
	flags.String("value", "", "native value in wei (decimal or 0x hex)")
	flags.String("chain-id", "", "chain id of the transaction")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// openAudit returns the configured audit sink, preferring Postgres when both are set.
func openAudit(ctx context.Context, auditOut, pgDSN string, logger *zap.Logger) (storage.Storage, func(), error) {
	if pgDSN != "" {
		store, err := postgres.NewStore(ctx, pgDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		if auditOut != "" {
			logger.Warn("audit-out ignored, postgres audit enabled", zap.String("audit_out", auditOut))
		}
		return store, store.Close, nil
	}
	if auditOut != "" {
		return storage.NewJsonlStorage(auditOut), func() {}, nil
	}
	return nil, func() {}, nil
}
