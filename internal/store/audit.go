// ABOUTME: Request log entity store methods for auditing handled requests
// ABOUTME: Records who called which tool or resource and how it ended

package store

import (
	"context"
	"fmt"
	"time"
)

// AppendRequestLog appends a new entry to the request log.
// Sets CreatedAt if not set and fills in Seq.
func (s *SQLiteStore) AppendRequestLog(ctx context.Context, e *RequestLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO request_log (request_id, client_id, kind, target, status, code, stage, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		e.RequestID,
		e.ClientID,
		e.Kind,
		e.Target,
		e.Status,
		e.Code,
		e.Stage,
		e.DurationMS,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting request log entry: %w", err)
	}

	if seq, err := res.LastInsertId(); err == nil {
		e.Seq = seq
	}

	s.logger.Debug("appended request log",
		"request_id", e.RequestID,
		"client_id", e.ClientID,
		"target", e.Kind+"/"+e.Target,
		"status", e.Status,
	)
	return nil
}

const requestLogQuery = `
	SELECT seq, request_id, client_id, kind, target, status, code, stage, duration_ms, created_at
	FROM request_log
	WHERE (? IS NULL OR created_at >= ?)
	  AND (? IS NULL OR client_id = ?)
	  AND (? IS NULL OR status = ?)
	  AND (? IS NULL OR target = ?)
	ORDER BY seq DESC
	LIMIT ?
`

// ListRequestLog returns request log entries matching the filter criteria.
// Results are returned newest first.
func (s *SQLiteStore) ListRequestLog(ctx context.Context, f RequestLogFilter) ([]RequestLog, error) {
	var since *string
	if f.Since != nil {
		str := formatTime(*f.Since)
		since = &str
	}

	rows, err := s.db.QueryContext(ctx, requestLogQuery,
		since, since,
		f.ClientID, f.ClientID,
		f.Status, f.Status,
		f.Target, f.Target,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying request log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []RequestLog{}
	for rows.Next() {
		var e RequestLog
		var createdAt string
		if err := rows.Scan(
			&e.Seq,
			&e.RequestID,
			&e.ClientID,
			&e.Kind,
			&e.Target,
			&e.Status,
			&e.Code,
			&e.Stage,
			&e.DurationMS,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning request log entry: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating request log: %w", err)
	}
	return entries, nil
}
