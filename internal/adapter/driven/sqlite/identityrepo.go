package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/ghswitch/internal/domain/model"
	"github.com/ericfisherdev/ghswitch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IdentityStore = (*IdentityRepo)(nil)

// IdentityRepo is the SQLite implementation of the IdentityStore port
// interface. Timestamps are stored as integer epoch seconds; the table name
// github_providers is kept for on-disk compatibility with earlier releases.
type IdentityRepo struct {
	db  *DB
	now func() time.Time
}

// NewIdentityRepo creates a new IdentityRepo backed by the given DB.
func NewIdentityRepo(db *DB) *IdentityRepo {
	return &IdentityRepo{db: db, now: time.Now}
}

const identityColumns = `id, name, access_token, email, avatar_url, github_id, created_at, last_used_at`

// List returns all identities ordered by creation time, newest first.
func (r *IdentityRepo) List(ctx context.Context) ([]model.Identity, error) {
	const query = `SELECT ` + identityColumns + ` FROM github_providers ORDER BY created_at DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	identities := []model.Identity{}
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}

	return identities, nil
}

// Insert stores a new identity. Returns driven.ErrDuplicateAccount when the
// GitHub account is already linked.
func (r *IdentityRepo) Insert(ctx context.Context, identity model.Identity) error {
	// The writer pool is capped at one connection, so the existence check and
	// the insert cannot interleave with another writer in this process.
	var count int
	const existsQuery = `SELECT COUNT(*) FROM github_providers WHERE github_id = ?`
	if err := r.db.Writer.QueryRowContext(ctx, existsQuery, identity.GitHubID).Scan(&count); err != nil {
		return fmt.Errorf("check github_id %d: %w", identity.GitHubID, err)
	}
	if count > 0 {
		return fmt.Errorf("github_id %d: %w", identity.GitHubID, driven.ErrDuplicateAccount)
	}

	const query = `
		INSERT INTO github_providers (` + identityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Writer.ExecContext(ctx, query,
		identity.ID, identity.Name, identity.AccessToken,
		identity.Email, identity.AvatarURL, identity.GitHubID,
		identity.CreatedAt.Unix(), nullableUnix(identity.LastUsedAt),
	)
	if err != nil {
		// The unique index on github_id backstops the check above for writes
		// that bypass this process, such as another tool editing the database.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("github_id %d: %w", identity.GitHubID, driven.ErrDuplicateAccount)
		}
		return fmt.Errorf("insert identity %q: %w", identity.ID, err)
	}

	return nil
}

// UpsertByGitHubID updates the record matching identity.GitHubID in place
// (token, profile fields, last-used), or inserts identity as a new record
// when no match exists. The stored record is returned: on the update path it
// keeps its original id and created_at.
func (r *IdentityRepo) UpsertByGitHubID(ctx context.Context, identity model.Identity) (model.Identity, error) {
	const query = `
		UPDATE github_providers
		SET access_token = ?, name = ?, email = ?, avatar_url = ?, last_used_at = ?
		WHERE github_id = ?
	`
	res, err := r.db.Writer.ExecContext(ctx, query,
		identity.AccessToken, identity.Name, identity.Email, identity.AvatarURL,
		nullableUnix(identity.LastUsedAt), identity.GitHubID,
	)
	if err != nil {
		return model.Identity{}, fmt.Errorf("update identity github_id %d: %w", identity.GitHubID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return model.Identity{}, fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		if err := r.Insert(ctx, identity); err != nil {
			return model.Identity{}, err
		}
		return identity, nil
	}

	return r.getByGitHubID(ctx, identity.GitHubID)
}

// Get returns the identity with the given id, or driven.ErrIdentityNotFound.
func (r *IdentityRepo) Get(ctx context.Context, id string) (model.Identity, error) {
	const query = `SELECT ` + identityColumns + ` FROM github_providers WHERE id = ?`

	identity, err := scanIdentity(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Identity{}, fmt.Errorf("identity %q: %w", id, driven.ErrIdentityNotFound)
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("get identity %q: %w", id, err)
	}

	return identity, nil
}

// Delete removes the identity with the given id. Absent ids are a no-op.
func (r *IdentityRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM github_providers WHERE id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete identity %q: %w", id, err)
	}
	return nil
}

// TouchLastUsed sets the identity's last-used timestamp to now and returns
// the updated record, or driven.ErrIdentityNotFound.
func (r *IdentityRepo) TouchLastUsed(ctx context.Context, id string) (model.Identity, error) {
	const query = `UPDATE github_providers SET last_used_at = ? WHERE id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, r.now().Unix(), id)
	if err != nil {
		return model.Identity{}, fmt.Errorf("touch identity %q: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return model.Identity{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return model.Identity{}, fmt.Errorf("identity %q: %w", id, driven.ErrIdentityNotFound)
	}

	return r.Get(ctx, id)
}

func (r *IdentityRepo) getByGitHubID(ctx context.Context, githubID int64) (model.Identity, error) {
	const query = `SELECT ` + identityColumns + ` FROM github_providers WHERE github_id = ?`

	identity, err := scanIdentity(r.db.Reader.QueryRowContext(ctx, query, githubID))
	if err != nil {
		return model.Identity{}, fmt.Errorf("get identity github_id %d: %w", githubID, err)
	}

	return identity, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanIdentity.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (model.Identity, error) {
	var (
		identity   model.Identity
		email      sql.NullString
		avatarURL  sql.NullString
		createdAt  int64
		lastUsedAt sql.NullInt64
	)

	err := row.Scan(
		&identity.ID, &identity.Name, &identity.AccessToken,
		&email, &avatarURL, &identity.GitHubID,
		&createdAt, &lastUsedAt,
	)
	if err != nil {
		return model.Identity{}, err
	}

	if email.Valid {
		identity.Email = &email.String
	}
	if avatarURL.Valid {
		identity.AvatarURL = &avatarURL.String
	}
	identity.CreatedAt = time.Unix(createdAt, 0).UTC()
	if lastUsedAt.Valid {
		t := time.Unix(lastUsedAt.Int64, 0).UTC()
		identity.LastUsedAt = &t
	}

	return identity, nil
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
