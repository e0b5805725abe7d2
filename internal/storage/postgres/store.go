package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"txguard/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS guard_audit (
	id           BIGSERIAL PRIMARY KEY,
	created_at   TIMESTAMPTZ NOT NULL,
	action       TEXT NOT NULL,
	chain_id     NUMERIC(20),
	from_address TEXT,
	to_address   TEXT,
	value        NUMERIC,
	data         TEXT,
	ok           BOOLEAN NOT NULL,
	risks        TEXT[] NOT NULL DEFAULT '{}',
	decoded_name TEXT,
	tx_hash      TEXT,
	error        TEXT
)`

// Store provides Postgres persistence for guard audit records.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the audit table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create guard_audit: %w", err)
	}
	return nil
}

// PutAuditBatch inserts audit records in a single round trip.
func (s *Store) PutAuditBatch(ctx context.Context, records []model.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		args := auditArgs(r)
		batch.Queue(`
			INSERT INTO guard_audit (
				created_at, action, chain_id, from_address, to_address, value, data,
				ok, risks, decoded_name, tx_hash, error
			) VALUES ($1::timestamptz, $2, $3::numeric, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12)
		`, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func auditArgs(r model.AuditRecord) []interface{} {
	// chain ids span the full uint64 range, which BIGINT cannot hold
	var chainID *string
	if r.Tx.ChainID != nil {
		id := strconv.FormatUint(*r.Tx.ChainID, 10)
		chainID = &id
	}

	var value *string
	if r.Tx.Value != nil {
		text := r.Tx.Value.String()
		value = &text
	}

	risks := make([]string, 0, len(r.Risks))
	for _, risk := range r.Risks {
		risks = append(risks, string(risk))
	}

	return []interface{}{
		r.CreatedAt,
		string(r.Action),
		chainID,
		nullable(r.Tx.From),
		nullable(r.Tx.To),
		value,
		nullable(r.Tx.Data),
		r.OK,
		risks,
		nullable(r.DecodedName),
		nullable(r.TxHash),
		nullable(r.Error),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
