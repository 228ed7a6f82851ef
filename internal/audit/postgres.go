// Package audit persists the append-only escalation audit trail.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/monitoring"
)

// PostgresStore appends audit entries to PostgreSQL. Rows are never updated
// or deleted; compliance reviews read the table directly.
type PostgresStore struct {
	db *sql.DB
}

var _ monitoring.AuditSink = (*PostgresStore)(nil)

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts one audit entry.
func (s *PostgresStore) Append(ctx context.Context, entry monitoring.AuditEntry) error {
	record, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("audit: encode escalation record: %w", err)
	}

	query := `
		INSERT INTO escalation_audit_entries (
			id, escalation_id, session_id, tier, trigger, outcome,
			error_text, response_ms, sla_ms, target_met, region,
			record, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.EscalationID,
		entry.SessionID,
		entry.Tier,
		entry.Trigger,
		string(entry.Outcome),
		nullString(entry.ErrorText),
		entry.ResponseTime.Milliseconds(),
		entry.SLATarget.Milliseconds(),
		entry.TargetMet,
		nullString(entry.Region),
		record,
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: append entry: %w", err)
	}
	return nil
}

// Filter specifies criteria for reading the audit trail.
type Filter struct {
	SessionID string
	Tier      int
	Outcome   monitoring.Outcome
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// Query retrieves audit entries matching the filter, newest first.
func (s *PostgresStore) Query(ctx context.Context, filter Filter) ([]monitoring.AuditEntry, error) {
	query := `
		SELECT id, escalation_id, session_id, tier, trigger, outcome,
			   error_text, response_ms, sla_ms, target_met, region,
			   record, recorded_at
		FROM escalation_audit_entries
		WHERE 1=1
	`
	var args []interface{}
	argIdx := 1

	if filter.SessionID != "" {
		query += fmt.Sprintf(" AND session_id = $%d", argIdx)
		args = append(args, filter.SessionID)
		argIdx++
	}
	if filter.Tier > 0 {
		query += fmt.Sprintf(" AND tier = $%d", argIdx)
		args = append(args, filter.Tier)
		argIdx++
	}
	if filter.Outcome != "" {
		query += fmt.Sprintf(" AND outcome = $%d", argIdx)
		args = append(args, string(filter.Outcome))
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND recorded_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND recorded_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY recorded_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query entries: %w", err)
	}
	defer rows.Close()

	var entries []monitoring.AuditEntry
	for rows.Next() {
		var e monitoring.AuditEntry
		var errText, region sql.NullString
		var outcome string
		var responseMs, slaMs int64
		var record []byte
		err := rows.Scan(
			&e.ID, &e.EscalationID, &e.SessionID, &e.Tier, &e.Trigger,
			&outcome, &errText, &responseMs, &slaMs, &e.TargetMet,
			&region, &record, &e.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		e.Outcome = monitoring.Outcome(outcome)
		e.ErrorText = errText.String
		e.Region = region.String
		e.ResponseTime = time.Duration(responseMs) * time.Millisecond
		e.SLATarget = time.Duration(slaMs) * time.Millisecond
		if len(record) > 0 {
			if err := json.Unmarshal(record, &e.Record); err != nil {
				return nil, fmt.Errorf("audit: decode escalation record: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate entries: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
