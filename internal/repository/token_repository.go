package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/skillwise/auth/internal/model"
)

// TokenRepo persists refresh tokens (single 'token_hash' column per row).
// Rows are never deleted while an investigation might need them; rotation
// and revocation only set revoked_at.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a refresh token hash row and returns its id.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// FindByHash returns the full record for a token hash, revoked or not.
// Deciding what a revoked or superseded record means is the service's job.
func (r *TokenRepo) FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var (
		t       model.RefreshToken
		revoked sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, revoked_at, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &revoked, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return model.RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return model.RefreshToken{}, err
	}
	if revoked.Valid {
		rv := revoked.Time
		t.RevokedAt = &rv
	}
	return t, nil
}

// CountIssuedAfter reports how many other refresh tokens the user received
// strictly after the given creation time. A non-zero result means the
// excluded record was already superseded by a rotation.
func (r *TokenRepo) CountIssuedAfter(ctx context.Context, userID uint64, after time.Time, excludeID uint64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM refresh_tokens WHERE user_id=? AND id<>? AND created_at>?",
		userID, excludeID, after).Scan(&n)
	return n, err
}

// Rotate revokes the old token and inserts its successor in one
// transaction. The revoke is conditional on the row still being active;
// if a concurrent refresh already revoked it, nothing is committed and
// ErrTokenRotated is returned.
func (r *TokenRepo) Rotate(ctx context.Context, oldID, userID uint64, newHash string, exp time.Time) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW(6) WHERE id=? AND revoked_at IS NULL", oldID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrTokenRotated
	}
	ins, err := tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, newHash, exp)
	if err != nil {
		return 0, err
	}
	id, err := ins.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// RevokeByHash marks a single token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW(6) WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForUser revokes every active token the user has. Used on reuse
// detection and after password changes.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW(6) WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}
