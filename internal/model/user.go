package model

import "time"

// Role names stored in users.role and embedded in access-token claims.
const (
    RoleStudent = "STUDENT"
    RoleAdmin   = "ADMIN"
)

// User represents a credential record as stored in the `users` table.  The
// json tags are omitted here because these structs are used internally by
// the repository layer; handlers define separate response types so the
// password hash can never leak into an API response.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, lowercase-normalized email address.
//  PasswordHash – bcrypt hashed password.
//  FirstName    – given name shown in the UI.
//  LastName     – family name shown in the UI.
//  Role         – role name (STUDENT or ADMIN).
//  IsActive     – whether the account may authenticate.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    FirstName    string    // users.first_name
    LastName     string    // users.last_name
    Role         string    // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// ProfilePatch carries an explicit optional-field update for a user row.
// Only non-nil fields are written, so the set of updatable columns is fixed
// at compile time and request bodies cannot mass-assign anything else.
type ProfilePatch struct {
    FirstName *string
    LastName  *string
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each token
// belongs to a user and forms one link of that user's rotation chain.  The
// serialized token is not stored; only its SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (nil if still active).
//  CreatedAt – creation timestamp; the reuse check depends on strict
//              per-user ordering of this column, hence DATETIME(6).
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}

// UserStats is the aggregate row created for every user at registration.
// The learning endpoints that increment these columns live in other
// services; this service only seeds and reads the row.
type UserStats struct {
    UserID              uint64    // user_stats.user_id
    Points              uint64    // user_stats.points
    ChallengesCompleted uint32    // user_stats.challenges_completed
    SubmissionsCount    uint32    // user_stats.submissions_count
    CurrentStreak       uint32    // user_stats.current_streak
    UpdatedAt           time.Time // user_stats.updated_at
}
