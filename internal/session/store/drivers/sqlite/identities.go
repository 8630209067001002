package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/plumeapp/plume/internal/session/domain"
	"github.com/plumeapp/plume/pkg/idx"
)

type identitiesRepo struct {
	db *sql.DB
}

const identityColumns = `id, did, handle, display_name, avatar, description, pds,
	last_seen_at, preferences, is_active, created_at, updated_at`

// UpsertIdentity is a single atomic insert-or-update keyed on did. The
// candidate row ID is only used when the identity is new; an existing row
// keeps its ID and created_at.
func (r *identitiesRepo) UpsertIdentity(
	ctx context.Context,
	in domain.IdentityUpsert,
) (domain.Identity, error) {
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (
			id, did, handle, display_name, avatar, description, pds,
			last_seen_at, preferences, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, '{}', 1, ?, ?)
		ON CONFLICT(did) DO UPDATE SET
			handle = excluded.handle,
			display_name = excluded.display_name,
			avatar = excluded.avatar,
			description = excluded.description,
			pds = excluded.pds,
			last_seen_at = excluded.last_seen_at,
			is_active = 1,
			updated_at = excluded.updated_at`,
		idx.MustNew().String(), in.DID, in.Handle, in.DisplayName, in.Avatar,
		in.Description, in.PDS, in.LastSeenAt.UTC(), now, now,
	)
	if err != nil {
		return domain.Identity{}, err
	}

	return r.GetIdentityByDID(ctx, in.DID)
}

func (r *identitiesRepo) GetIdentityByDID(ctx context.Context, did string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE did = ?`, did)
	return scanIdentity(row)
}

func (r *identitiesRepo) GetIdentityByID(ctx context.Context, id string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	return scanIdentity(row)
}

func (r *identitiesRepo) DeactivateIdentity(ctx context.Context, did string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE identities SET is_active = 0, updated_at = ? WHERE did = ?`,
		time.Now().UTC(), did,
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

func scanIdentity(row *sql.Row) (domain.Identity, error) {
	var ident domain.Identity
	err := row.Scan(
		&ident.ID, &ident.DID, &ident.Handle, &ident.DisplayName, &ident.Avatar,
		&ident.Description, &ident.PDS, &ident.LastSeenAt, &ident.Preferences,
		&ident.IsActive, &ident.CreatedAt, &ident.UpdatedAt,
	)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return ident, nil
}
