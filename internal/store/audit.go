package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuditEntry is one recorded operation outcome.
type AuditEntry struct {
	ID           int64
	Timestamp    time.Time
	TraceID      string
	SessionID    string
	Kind         string
	Target       sql.NullString
	Result       string
	ErrorMessage sql.NullString
}

// WriteAudit records the outcome of one dispatched operation.
func (s *Store) WriteAudit(ctx context.Context, traceID, sessionID, kind, target, result, errorMsg string) error {
	var targetNull sql.NullString
	if target != "" {
		targetNull = sql.NullString{String: target, Valid: true}
	}
	var errorNull sql.NullString
	if errorMsg != "" {
		errorNull = sql.NullString{String: errorMsg, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (ts, trace_id, session_id, kind, target, result, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, time.Now(), traceID, sessionID, kind, targetNull, result, errorNull)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// RecentAudit returns the newest audit entries, most recent first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, trace_id, session_id, kind, target, result, error_message
		FROM audit_log
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.Timestamp, &entry.TraceID, &entry.SessionID,
			&entry.Kind, &entry.Target, &entry.Result, &entry.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
