package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"txguard/internal/config"
	"txguard/internal/guard"
	"txguard/internal/model"
	"txguard/internal/storage"
)

type analyzeLine struct {
	Line   int                   `json:"line,omitempty"`
	Tx     model.TransactionMeta `json:"tx"`
	Result model.AnalysisResult  `json:"result"`
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAnalyze(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	policy, err := config.BuildPolicy(cfg.Policy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	audit, closeAudit, err := openAudit(ctx, cfg.AuditOut, cfg.PGDSN, logger)
	if err != nil {
		return err
	}
	defer closeAudit()

	out, err := newJSONLWriter(cfg.Out, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	logger.Info("analyze start",
		zap.Int("whitelist_contracts", len(policy.Contracts())),
		zap.Int("whitelist_chain_ids", len(policy.ChainIDs())),
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
	)

	var runErr error
	if cfg.In == "" {
		runErr = analyzeOne(ctx, cfg.Tx, policy, out, audit, logger)
	} else {
		runErr = analyzeFile(ctx, cfg.In, policy, out, audit, logger)
	}

	// a failed flush must still fail the command
	closeErr := out.Close()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("close output: %w", closeErr)
	}
	return nil
}

func analyzeOne(ctx context.Context, txCfg config.TxConfig, policy *guard.Policy, out *jsonlWriter, audit storage.Storage, logger *zap.Logger) error {
	tx, err := config.BuildTx(txCfg)
	if err != nil {
		return err
	}
	result := guard.Analyze(tx, policy)
	recordAnalysis(ctx, audit, logger, tx, result)
	return out.Write(analyzeLine{Tx: tx, Result: result})
}

func analyzeFile(ctx context.Context, path string, policy *guard.Policy, out *jsonlWriter, audit storage.Storage, logger *zap.Logger) error {
	inputFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	scanner := bufio.NewScanner(inputFile)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var total, safe, risky, failed, lineNo int
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var tx model.TransactionMeta
		if err := json.Unmarshal(line, &tx); err != nil {
			failed++
			logger.Warn("skip malformed transaction", zap.Int("line", lineNo), zap.Error(err))
			continue
		}

		result := guard.Analyze(tx, policy)
		if result.OK {
			safe++
		} else {
			risky++
		}
		recordAnalysis(ctx, audit, logger, tx, result)

		if err := out.Write(analyzeLine{Line: lineNo, Tx: tx, Result: result}); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	logger.Info("analyze complete",
		zap.Int("total", total),
		zap.Int("safe", safe),
		zap.Int("risky", risky),
		zap.Int("failed", failed),
	)

	return nil
}

func recordAnalysis(ctx context.Context, audit storage.Storage, logger *zap.Logger, tx model.TransactionMeta, result model.AnalysisResult) {
	if audit == nil {
		return
	}
	record := model.NewAuditRecord(time.Now().UTC().Format(time.RFC3339Nano), model.AuditAnalyzed, tx, result)
	if err := audit.PutAuditBatch(ctx, []model.AuditRecord{record}); err != nil {
		logger.Warn("audit write failed", zap.Error(err))
	}
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

// newJSONLWriter truncates path, or writes to fallback when path is empty.
func newJSONLWriter(path string, fallback io.Writer) (*jsonlWriter, error) {
	if path == "" {
		return &jsonlWriter{writer: bufio.NewWriter(fallback)}, nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		if w.file != nil {
			w.file.Close()
		}
		return err
	}
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
