package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/edugate/edugate/internal/auth/domain"
)

type securityEventsRepo struct {
	db dbtx
}

const securityEventColumns = `id, user_id, user_role, event_type, event_status, ip_address, user_agent, details, metadata, created_at`

func (r *securityEventsRepo) InsertSecurityEvent(ctx context.Context, e domain.SecurityEvent) error {
	metadata := "{}"
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		metadata = string(raw)
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO security_events (id, user_id, user_role, event_type, event_status, ip_address, user_agent, details, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, mapStringNull(e.UserID), e.UserRole, string(e.EventType), string(e.EventStatus),
		e.IPAddress, e.UserAgent, e.Details, metadata, createdAt.UTC(),
	)
	return err
}

func (r *securityEventsRepo) ListUserSecurityEvents(ctx context.Context, userID, role string, limit int) ([]domain.SecurityEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+securityEventColumns+` FROM security_events
		 WHERE user_id = ? AND user_role = ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSecurityEvents(rows)
}

func (r *securityEventsRepo) ListRecentFailedLogins(ctx context.Context, limit int) ([]domain.SecurityEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+securityEventColumns+` FROM security_events
		 WHERE event_type = ?
		 ORDER BY created_at DESC LIMIT ?`,
		string(domain.EventLoginFailed), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSecurityEvents(rows)
}

func (r *securityEventsRepo) CountEventsByTypeSince(ctx context.Context, t domain.EventType, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM security_events WHERE event_type = ? AND created_at >= ?`,
		string(t), since.UTC()).Scan(&count)
	return count, err
}

func (r *securityEventsRepo) CountEventsByStatusSince(ctx context.Context, s domain.EventStatus, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM security_events WHERE event_status = ? AND created_at >= ?`,
		string(s), since.UTC()).Scan(&count)
	return count, err
}

func (r *securityEventsRepo) CountEventsByIPSince(ctx context.Context, since time.Time, minCount int) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ip_address, COUNT(*) AS n FROM security_events
		 WHERE created_at >= ? AND ip_address != ''
		 GROUP BY ip_address HAVING n >= ?`,
		since.UTC(), minCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var ip string
		var n int
		if err := rows.Scan(&ip, &n); err != nil {
			return nil, err
		}
		counts[ip] = n
	}
	return counts, rows.Err()
}

func (r *securityEventsRepo) DeleteSecurityEventsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM security_events WHERE created_at < ?`, cutoff.UTC())
	return err
}

func scanSecurityEvents(rows *sql.Rows) ([]domain.SecurityEvent, error) {
	var events []domain.SecurityEvent
	for rows.Next() {
		var (
			e        domain.SecurityEvent
			userID   sql.NullString
			metadata string
		)
		err := rows.Scan(
			&e.ID, &userID, &e.UserRole, &e.EventType, &e.EventStatus,
			&e.IPAddress, &e.UserAgent, &e.Details, &metadata, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		e.UserID = mapNullString(userID)
		if metadata != "" && metadata != "{}" {
			// Metadata is stored as it was logged; rows with garbage are
			// still returned rather than hidden from the audit trail.
			_ = json.Unmarshal([]byte(metadata), &e.Metadata)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
