package storage

import (
	"context"

	"txguard/internal/model"
)

// Storage defines a sink for guard audit records.
type Storage interface {
	PutAuditBatch(ctx context.Context, records []model.AuditRecord) error
}
