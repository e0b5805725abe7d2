package signer

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"txguard/internal/guard"
	"txguard/internal/model"
)

var (
	trusted = common.HexToAddress("0x1111111111111111111111111111111111111111")
	unknown = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type recordingWriter struct {
	mu   sync.Mutex
	sent []model.TransactionMeta
	hash common.Hash
	err  error
}

func (w *recordingWriter) Send(_ context.Context, tx model.TransactionMeta) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, tx)
	return w.hash, w.err
}

type memoryAudit struct {
	records []model.AuditRecord
	err     error
}

func (m *memoryAudit) PutAuditBatch(_ context.Context, records []model.AuditRecord) error {
	m.records = append(m.records, records...)
	return m.err
}

func approveData(t *testing.T, spender common.Address, value *big.Int) string {
	t.Helper()
	parsed, err := guard.RiskyCallsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	data, err := parsed.Pack("approve", spender, value)
	if err != nil {
		t.Fatalf("pack approve: %v", err)
	}
	return hexutil.Encode(data)
}

func TestGuardedWriterBlocksRiskyTransaction(t *testing.T) {
	next := &recordingWriter{hash: common.HexToHash("0x01")}
	audit := &memoryAudit{}
	var notified []model.AnalysisResult

	policy := guard.NewPolicy([]common.Address{trusted}, nil, nil)
	writer := NewGuardedWriter(policy, next,
		WithLogger(zap.NewNop()),
		WithAudit(audit),
		WithNotifier(NotifierFunc(func(_ model.TransactionMeta, result model.AnalysisResult) {
			notified = append(notified, result)
		})),
	)

	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	tx := model.TransactionMeta{To: trusted.Hex(), Data: approveData(t, unknown, max)}

	hash, err := writer.Send(context.Background(), tx)
	if err == nil {
		t.Fatalf("expected risk error")
	}
	if hash != (common.Hash{}) {
		t.Fatalf("expected empty hash, got %s", hash.Hex())
	}

	var riskErr *RiskError
	if !errors.As(err, &riskErr) {
		t.Fatalf("expected *RiskError, got %T", err)
	}
	if !riskErr.Result.HasRisk(model.RiskUnlimitedApproval) || !riskErr.Result.HasRisk(model.RiskUnknownSpender) {
		t.Fatalf("risk mismatch: %v", riskErr.Result.Risks)
	}
	for _, label := range riskErr.Result.RiskLabels() {
		if !strings.Contains(err.Error(), label) {
			t.Fatalf("error %q missing label %q", err.Error(), label)
		}
	}

	if len(next.sent) != 0 {
		t.Fatalf("risky transaction was forwarded")
	}
	if len(notified) != 1 {
		t.Fatalf("expected one notification, got %d", len(notified))
	}
	if len(audit.records) != 1 || audit.records[0].Action != model.AuditBlocked || audit.records[0].DecodedName != "approve" {
		t.Fatalf("audit mismatch: %+v", audit.records)
	}
}

func TestGuardedWriterForwardsSafeTransaction(t *testing.T) {
	next := &recordingWriter{hash: common.HexToHash("0xabcdef")}
	audit := &memoryAudit{}
	policy := guard.NewPolicy([]common.Address{trusted}, []uint64{56}, big.NewInt(1000))
	writer := NewGuardedWriter(policy, next, WithAudit(audit))

	chainID := uint64(56)
	tx := model.TransactionMeta{To: trusted.Hex(), Value: big.NewInt(10), ChainID: &chainID}

	hash, err := writer.Send(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != next.hash {
		t.Fatalf("hash mismatch: %s", hash.Hex())
	}
	if len(next.sent) != 1 {
		t.Fatalf("expected one forwarded transaction, got %d", len(next.sent))
	}
	sent := next.sent[0]
	if sent.To != tx.To || sent.Value.Cmp(tx.Value) != 0 || sent.ChainID != tx.ChainID || sent.Data != tx.Data {
		t.Fatalf("forwarded transaction changed: %+v", sent)
	}
	if len(audit.records) != 1 || audit.records[0].Action != model.AuditForwarded || audit.records[0].TxHash != hash.Hex() {
		t.Fatalf("audit mismatch: %+v", audit.records)
	}
}

func TestGuardedWriterRecordsSendFailure(t *testing.T) {
	want := errors.New("nonce too low")
	next := &recordingWriter{err: want}
	audit := &memoryAudit{}
	writer := NewGuardedWriter(guard.NewPolicy(nil, nil, nil), next, WithAudit(audit))

	_, err := writer.Send(context.Background(), model.TransactionMeta{To: trusted.Hex()})
	if !errors.Is(err, want) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
	var riskErr *RiskError
	if errors.As(err, &riskErr) {
		t.Fatalf("send failure must not be a risk error")
	}
	if len(audit.records) != 1 || audit.records[0].Action != model.AuditFailed || audit.records[0].Error != want.Error() {
		t.Fatalf("audit mismatch: %+v", audit.records)
	}
}

func TestGuardedWriterIgnoresAuditFailure(t *testing.T) {
	next := &recordingWriter{hash: common.HexToHash("0x02")}
	audit := &memoryAudit{err: errors.New("disk full")}
	writer := NewGuardedWriter(guard.NewPolicy(nil, nil, nil), next, WithAudit(audit))

	if _, err := writer.Send(context.Background(), model.TransactionMeta{To: trusted.Hex()}); err != nil {
		t.Fatalf("audit failure leaked: %v", err)
	}
	if len(next.sent) != 1 {
		t.Fatalf("expected forward despite audit failure")
	}
}

func TestGuardedWriterBlocksMissingDestination(t *testing.T) {
	next := &recordingWriter{}
	writer := NewGuardedWriter(guard.NewPolicy(nil, nil, nil), next)

	_, err := writer.Send(context.Background(), model.TransactionMeta{Value: big.NewInt(1)})
	var riskErr *RiskError
	if !errors.As(err, &riskErr) {
		t.Fatalf("expected *RiskError, got %v", err)
	}
	if len(riskErr.Result.Risks) != 1 || riskErr.Result.Risks[0] != model.RiskNonWhitelistedContract {
		t.Fatalf("risk mismatch: %v", riskErr.Result.Risks)
	}
	if len(next.sent) != 0 {
		t.Fatalf("transaction without destination was forwarded")
	}
}
