package signer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"txguard/internal/guard"
	"txguard/internal/model"
	"txguard/internal/storage"
)

// Writer signs and submits a transaction, returning its hash.
type Writer interface {
	Send(ctx context.Context, tx model.TransactionMeta) (common.Hash, error)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, tx model.TransactionMeta) (common.Hash, error)

func (f WriterFunc) Send(ctx context.Context, tx model.TransactionMeta) (common.Hash, error) {
	return f(ctx, tx)
}

// Notifier is told about every transaction the guard refuses to forward.
type Notifier interface {
	Notify(tx model.TransactionMeta, result model.AnalysisResult)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(tx model.TransactionMeta, result model.AnalysisResult)

func (f NotifierFunc) Notify(tx model.TransactionMeta, result model.AnalysisResult) {
	f(tx, result)
}

// RiskError is returned when a transaction is blocked by the guard.
type RiskError struct {
	Result model.AnalysisResult
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("transaction blocked: %s", strings.Join(e.Result.RiskLabels(), ", "))
}

// GuardedWriter analyzes every transaction before delegating to the next Writer.
type GuardedWriter struct {
	policy   *guard.Policy
	next     Writer
	logger   *zap.Logger
	audit    storage.Storage
	notifier Notifier
	now      func() time.Time
}

// Option configures a GuardedWriter.
type Option func(*GuardedWriter)

func WithLogger(logger *zap.Logger) Option {
	return func(w *GuardedWriter) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithAudit(sink storage.Storage) Option {
	return func(w *GuardedWriter) {
		w.audit = sink
	}
}

func WithNotifier(n Notifier) Option {
	return func(w *GuardedWriter) {
		w.notifier = n
	}
}

// NewGuardedWriter wraps next so that risky transactions never reach it.
func NewGuardedWriter(policy *guard.Policy, next Writer, opts ...Option) *GuardedWriter {
	w := &GuardedWriter{
		policy: policy,
		next:   next,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Send analyzes tx and forwards it unchanged when no risk is found.
// A blocked transaction yields a *RiskError and is never passed on.
func (w *GuardedWriter) Send(ctx context.Context, tx model.TransactionMeta) (common.Hash, error) {
	result := guard.Analyze(tx, w.policy)

	if !result.OK {
		w.logger.Warn("transaction blocked",
			zap.String("to", tx.To),
			zap.Strings("risks", riskStrings(result.Risks)),
			zap.String("decoded", result.DecodedName()),
		)
		w.record(ctx, model.NewAuditRecord(w.timestamp(), model.AuditBlocked, tx, result))
		if w.notifier != nil {
			w.notifier.Notify(tx, result)
		}
		return common.Hash{}, &RiskError{Result: result}
	}

	if w.next == nil {
		return common.Hash{}, fmt.Errorf("writer is nil")
	}

	hash, err := w.next.Send(ctx, tx)
	record := model.NewAuditRecord(w.timestamp(), model.AuditForwarded, tx, result)
	if err != nil {
		record.Action = model.AuditFailed
		record.Error = err.Error()
		w.record(ctx, record)
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}

	record.TxHash = hash.Hex()
	w.record(ctx, record)
	w.logger.Info("transaction forwarded", zap.String("to", tx.To), zap.String("tx_hash", hash.Hex()))
	return hash, nil
}

func (w *GuardedWriter) record(ctx context.Context, record model.AuditRecord) {
	if w.audit == nil {
		return
	}
	if err := w.audit.PutAuditBatch(ctx, []model.AuditRecord{record}); err != nil {
		w.logger.Warn("audit write failed", zap.Error(err), zap.String("action", string(record.Action)))
	}
}

func (w *GuardedWriter) timestamp() string {
	return w.now().UTC().Format(time.RFC3339Nano)
}

func riskStrings(risks []model.RiskKind) []string {
	out := make([]string, 0, len(risks))
	for _, risk := range risks {
		out = append(out, string(risk))
	}
	return out
}
