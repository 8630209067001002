package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/plumeapp/plume/internal/session/domain"
)

type sessionsRepo struct {
	db *sql.DB
}

const sessionColumns = `session_id, device_id, user_id, last_active_at,
	expires_at, metadata, is_active, created_at`

// UpsertSession is a single atomic insert-or-update keyed on session_id.
// On conflict only last_active_at and metadata are written: a session_id
// that already belongs to a user and device stays theirs.
func (r *sessionsRepo) UpsertSession(
	ctx context.Context,
	in domain.SessionUpsert,
) (domain.SessionRecord, error) {
	metadata := in.Metadata
	if metadata == "" {
		metadata = "{}"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, device_id, user_id, last_active_at,
			expires_at, metadata, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			last_active_at = excluded.last_active_at,
			metadata = excluded.metadata`,
		in.SessionID, in.DeviceID, in.UserID, in.LastActiveAt.UTC(),
		mapOptionalTime(in.ExpiresAt), metadata, time.Now().UTC(),
	)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	return r.GetSession(ctx, in.SessionID)
}

func (r *sessionsRepo) GetSession(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	return scanSession(row)
}

func (r *sessionsRepo) FindActiveSession(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ? AND is_active = 1`,
		sessionID)
	return scanSession(row)
}

// UpdateSessionActivity only ever moves last_active_at forward; a stale
// timestamp from a reordered tick leaves the row as it was.
func (r *sessionsRepo) UpdateSessionActivity(
	ctx context.Context,
	sessionID string,
	ts time.Time,
) (bool, error) {
	ts = ts.UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET last_active_at = CASE
			WHEN ? > last_active_at THEN ?
			ELSE last_active_at
		END
		WHERE session_id = ?`,
		ts, ts, sessionID,
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *sessionsRepo) DeactivateSession(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *sessionsRepo) DeleteInactiveSessionsBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE is_active = 0 AND last_active_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (domain.SessionRecord, error) {
	var (
		rec       domain.SessionRecord
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&rec.SessionID, &rec.DeviceID, &rec.UserID, &rec.LastActiveAt,
		&expiresAt, &rec.Metadata, &rec.IsActive, &rec.CreatedAt,
	)
	if err != nil {
		return domain.SessionRecord{}, mapNotFound(err)
	}
	rec.ExpiresAt = mapNullTimePtr(expiresAt)
	return rec, nil
}
