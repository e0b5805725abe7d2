package model

// AuditAction describes what happened to a transaction after analysis.
type AuditAction string

const (
	AuditAnalyzed  AuditAction = "analyzed"
	AuditBlocked   AuditAction = "blocked"
	AuditForwarded AuditAction = "forwarded"
	AuditFailed    AuditAction = "failed"
)

// AuditRecord is the persisted trace of one guard decision.
type AuditRecord struct {
	CreatedAt   string          `json:"created_at"`
	Action      AuditAction     `json:"action"`
	Tx          TransactionMeta `json:"tx"`
	OK          bool            `json:"ok"`
	Risks       []RiskKind      `json:"risks"`
	DecodedName string          `json:"decoded_name,omitempty"`
	TxHash      string          `json:"tx_hash,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// NewAuditRecord builds an audit record from an analysis result.
func NewAuditRecord(createdAt string, action AuditAction, tx TransactionMeta, result AnalysisResult) AuditRecord {
	risks := make([]RiskKind, len(result.Risks))
	copy(risks, result.Risks)
	return AuditRecord{
		CreatedAt:   createdAt,
		Action:      action,
		Tx:          tx,
		OK:          result.OK,
		Risks:       risks,
		DecodedName: result.DecodedName(),
	}
}
