package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const licenseColumns = "id, file_name, format, digest, payload_json, sidecar, embedded_at"

// RecordLicense persists the trace of one embed operation. Re-embedding the
// same license ID overwrites the previous row.
func (s *Store) RecordLicense(ctx context.Context, record *LicenseRecord) error {
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO licenses (id, file_name, format, digest, payload_json, sidecar, embedded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             file_name = excluded.file_name,
             format = excluded.format,
             digest = excluded.digest,
             payload_json = excluded.payload_json,
             sidecar = excluded.sidecar,
             embedded_at = excluded.embedded_at`,
		record.ID, record.FileName, record.Format, record.Digest,
		record.PayloadJSON, boolToInt(record.Sidecar), formatTime(record.EmbeddedAt),
	); err != nil {
		return fmt.Errorf("record license: %w", err)
	}
	return nil
}

// GetLicense fetches a license record by ID.
func (s *Store) GetLicense(ctx context.Context, id string) (*LicenseRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE id = ?`, id)
	record, err := scanLicense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("license %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get license: %w", err)
	}
	return record, nil
}

// ListLicenses returns license records newest first.
func (s *Store) ListLicenses(ctx context.Context, limit int) ([]*LicenseRecord, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + licenseColumns + ` FROM licenses ORDER BY embedded_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	var records []*LicenseRecord
	for rows.Next() {
		record, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate licenses: %w", err)
	}
	return records, nil
}
