// Package service implements the credential/session state machine: login,
// registration, refresh-token rotation with reuse detection, and the
// password lifecycle. It owns no HTTP concerns; handlers translate its
// sentinel errors into the platform error body.
package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/skillwise/auth/internal/model"
	"github.com/skillwise/auth/internal/queue"
	"github.com/skillwise/auth/internal/repository"
	"github.com/skillwise/auth/internal/utils"
)

// UserStore is the subset of the user repository the service needs.  Create
// commits the user and its zeroed stats row together; Delete undoes both
// (plus any refresh tokens) when a registration has to be rolled back.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, firstName, lastName, role string) (uint64, error)
	Delete(ctx context.Context, id uint64) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	UpdateProfile(ctx context.Context, id uint64, p model.ProfilePatch) error
	SetActive(ctx context.Context, id uint64, active bool) error
	List(ctx context.Context) ([]model.User, error)
}

// TokenStore persists the refresh-token chain.
type TokenStore interface {
	Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time) (uint64, error)
	FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	CountIssuedAfter(ctx context.Context, userID uint64, after time.Time, excludeID uint64) (int, error)
	Rotate(ctx context.Context, oldID, userID uint64, newHash string, exp time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// StatsStore reads the per-user aggregate row; the row is created inside
// the registration transaction by UserStore.Create.
type StatsStore interface {
	GetByUser(ctx context.Context, userID uint64) (model.UserStats, error)
}

// EventPublisher delivers domain events to the broker. Publishing is
// best-effort: the service logs failures and continues.
type EventPublisher interface {
	Publish(ctx context.Context, e queue.Event) error
}

// Session is the result of a successful login, registration or refresh.
type Session struct {
	User    model.User
	Access  utils.SignedToken
	Refresh utils.SignedToken
}

// Auth bundles the stores and the token issuer behind the session
// operations. All methods are safe for concurrent use.
type Auth struct {
	issuer     *utils.Issuer
	users      UserStore
	tokens     TokenStore
	stats      StatsStore
	events     EventPublisher
	bcryptCost int
}

func NewAuth(issuer *utils.Issuer, users UserStore, tokens TokenStore, stats StatsStore, events EventPublisher, bcryptCost int) *Auth {
	return &Auth{issuer: issuer, users: users, tokens: tokens, stats: stats, events: events, bcryptCost: bcryptCost}
}

// RegisterInput carries the registration request fields.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register validates the input, creates the credential record plus its
// stats row, and starts the first session. The email is normalized to
// lowercase before the uniqueness check so casing differences cannot
// produce duplicate accounts.
func (s *Auth) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if verr := validateEmail(in.Email); verr != nil {
		return Session{}, verr
	}
	if verr := validatePassword(in.Password); verr != nil {
		return Session{}, verr
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return Session{}, &ValidationError{Field: "first_name", Message: "first name is required"}
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return Session{}, err
	}
	// Create commits the user and its stats row in one transaction; any
	// failure past this point rolls that commit back again, so a failed
	// registration never leaves a usable account or reserves the email.
	uid, err := s.users.Create(ctx, in.Email, hash, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), model.RoleStudent)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return Session{}, ErrEmailExists
		}
		return Session{}, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		s.unregister(ctx, uid)
		return Session{}, err
	}

	sess, err := s.startSession(ctx, u)
	if err != nil {
		s.unregister(ctx, uid)
		return Session{}, err
	}
	ev := queue.NewEvent(queue.EventUserRegistered, u.ID)
	ev.Email = u.Email
	s.publish(ctx, ev)
	return sess, nil
}

// Login verifies the credentials and starts a session. Missing accounts
// and wrong passwords fail with the same error.
func (s *Auth) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return Session{}, ErrAccountDisabled
	}
	return s.startSession(ctx, u)
}

// Refresh exchanges a valid refresh token for a new pair, rotating the
// presented token. Presenting a token that was already rotated is treated
// as theft: every token the user holds is revoked and ErrReuseDetected is
// returned so the client forces a full re-login.
func (s *Auth) Refresh(ctx context.Context, rawRefresh string) (Session, error) {
	claims, err := s.issuer.Verify(utils.KindRefresh, rawRefresh)
	if err != nil {
		return Session{}, ErrInvalidRefresh
	}
	rec, err := s.tokens.FindByHash(ctx, utils.HashToken(rawRefresh))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidRefresh
		}
		return Session{}, err
	}
	if rec.UserID != claims.UserID {
		return Session{}, ErrInvalidRefresh
	}

	// Reuse check: any record issued after this one means this token was
	// already rotated and its holder is replaying it.
	newer, err := s.tokens.CountIssuedAfter(ctx, rec.UserID, rec.CreatedAt, rec.ID)
	if err != nil {
		return Session{}, err
	}
	if newer > 0 {
		return Session{}, s.revokeFamily(ctx, rec.UserID, queue.ReasonReuseDetected)
	}
	if rec.RevokedAt != nil || time.Now().UTC().After(rec.ExpiresAt) {
		return Session{}, ErrInvalidRefresh
	}

	u, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidRefresh
		}
		return Session{}, err
	}
	if !u.IsActive {
		return Session{}, ErrAccountDisabled
	}

	access, err := s.issuer.Issue(utils.KindAccess, u.ID, u.Role)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.issuer.Issue(utils.KindRefresh, u.ID, "")
	if err != nil {
		return Session{}, err
	}
	// Revoke-old and insert-new commit together; losing the conditional
	// update to a concurrent refresh is handled like a replay.
	if _, err := s.tokens.Rotate(ctx, rec.ID, u.ID, utils.HashToken(refresh.Token), refresh.Exp); err != nil {
		if errors.Is(err, repository.ErrTokenRotated) {
			return Session{}, s.revokeFamily(ctx, u.ID, queue.ReasonReuseDetected)
		}
		return Session{}, err
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

// Logout revokes the presented refresh token. Unknown or already-revoked
// tokens are not an error; logout always succeeds from the client's view.
func (s *Auth) Logout(ctx context.Context, rawRefresh string) error {
	if strings.TrimSpace(rawRefresh) == "" {
		return nil
	}
	return s.tokens.RevokeByHash(ctx, utils.HashToken(rawRefresh))
}

// ForgotPassword issues a reset token for the account and hands it to the
// mailer via the broker. The outcome is identical whether or not the email
// is registered, to avoid account enumeration.
func (s *Auth) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	reset, err := s.issuer.Issue(utils.KindReset, u.ID, "")
	if err != nil {
		return err
	}
	ev := queue.NewEvent(queue.EventPasswordResetRequested, u.ID)
	ev.Email = u.Email
	ev.ResetToken = reset.Token
	s.publish(ctx, ev)
	return nil
}

// ResetPassword verifies a reset token, applies the new password and
// revokes every refresh token the user holds.
func (s *Auth) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	claims, err := s.issuer.Verify(utils.KindReset, rawToken)
	if err != nil {
		return ErrInvalidResetToken
	}
	if verr := validatePassword(newPassword); verr != nil {
		return verr
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		return err
	}
	ev := queue.NewEvent(queue.EventSessionsRevoked, u.ID)
	ev.Reason = queue.ReasonPasswordReset
	s.publish(ctx, ev)
	return nil
}

// ChangePassword verifies the current password before applying the new
// one, then revokes all sessions so stolen refresh tokens die with the old
// password.
func (s *Auth) ChangePassword(ctx context.Context, userID uint64, current, newPassword string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if verr := validatePassword(newPassword); verr != nil {
		return verr
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		return err
	}
	ev := queue.NewEvent(queue.EventSessionsRevoked, u.ID)
	ev.Reason = queue.ReasonPasswordChanged
	s.publish(ctx, ev)
	return nil
}

// Me returns the user's projection together with their stats row.
func (s *Auth) Me(ctx context.Context, userID uint64) (model.User, model.UserStats, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, model.UserStats{}, ErrUserNotFound
		}
		return model.User{}, model.UserStats{}, err
	}
	st, err := s.stats.GetByUser(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, model.UserStats{}, err
	}
	return u, st, nil
}

// UpdateProfile applies a partial update and returns the fresh record.
func (s *Auth) UpdateProfile(ctx context.Context, userID uint64, p model.ProfilePatch) (model.User, error) {
	if p.FirstName != nil && strings.TrimSpace(*p.FirstName) == "" {
		return model.User{}, &ValidationError{Field: "first_name", Message: "first name cannot be empty"}
	}
	if err := s.users.UpdateProfile(ctx, userID, p); err != nil {
		return model.User{}, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

// ListUsers returns every account. Restricted to admins at the route level.
func (s *Auth) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// SetUserActive flips the account flag; deactivating also revokes every
// refresh token so the account cannot keep refreshing.
func (s *Auth) SetUserActive(ctx context.Context, userID uint64, active bool) error {
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !active {
		if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			return err
		}
		ev := queue.NewEvent(queue.EventSessionsRevoked, userID)
		ev.Reason = queue.ReasonDeactivated
		s.publish(ctx, ev)
	}
	return nil
}

// unregister removes a freshly created user after a later registration step
// failed. The removal itself is best-effort: if it also fails the stranded
// row is logged for manual cleanup, but the request already failed either
// way.
func (s *Auth) unregister(ctx context.Context, userID uint64) {
	if err := s.users.Delete(ctx, userID); err != nil {
		log.Printf("register: rollback of user %d failed: %v", userID, err)
	}
}

// startSession issues a fresh access/refresh pair and persists the refresh
// hash, beginning a new link in the user's rotation chain.
func (s *Auth) startSession(ctx context.Context, u model.User) (Session, error) {
	access, err := s.issuer.Issue(utils.KindAccess, u.ID, u.Role)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.issuer.Issue(utils.KindRefresh, u.ID, "")
	if err != nil {
		return Session{}, err
	}
	if _, err := s.tokens.Store(ctx, u.ID, utils.HashToken(refresh.Token), refresh.Exp); err != nil {
		return Session{}, err
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

// revokeFamily wipes the user's entire token chain and reports why.
// It always returns ErrReuseDetected for the caller to propagate.
func (s *Auth) revokeFamily(ctx context.Context, userID uint64, reason string) error {
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	ev := queue.NewEvent(queue.EventSessionsRevoked, userID)
	ev.Reason = reason
	s.publish(ctx, ev)
	return ErrReuseDetected
}

func (s *Auth) publish(ctx context.Context, ev queue.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Printf("events: publish %s failed: %v", ev.Type, err)
	}
}
