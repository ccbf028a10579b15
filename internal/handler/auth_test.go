package handler_test

// End-to-end tests over the real router, service and middleware, with
// in-memory stores standing in for MySQL and the broker.

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skillwise/auth/internal/handler"
	"github.com/skillwise/auth/internal/httpx"
	"github.com/skillwise/auth/internal/model"
	"github.com/skillwise/auth/internal/queue"
	"github.com/skillwise/auth/internal/repository"
	"github.com/skillwise/auth/internal/router"
	"github.com/skillwise/auth/internal/service"
	"github.com/skillwise/auth/internal/utils"
)

// ----- in-memory stores -----

type users struct {
	mu     sync.Mutex
	seq    uint64
	rows   map[uint64]model.User
	stats  *stats
	tokens *tokens
}

// Create seeds the stats row together with the user, matching the
// registration transaction in the real repository.
func (s *users) Create(_ context.Context, email, hash, first, last, role string) (uint64, error) {
	s.mu.Lock()
	for _, u := range s.rows {
		if u.Email == email {
			s.mu.Unlock()
			return 0, repository.ErrEmailExists
		}
	}
	s.seq++
	id := s.seq
	s.rows[id] = model.User{ID: id, Email: email, PasswordHash: hash,
		FirstName: first, LastName: last, Role: role, IsActive: true, CreatedAt: time.Now().UTC()}
	s.mu.Unlock()
	s.stats.put(id)
	return id, nil
}

func (s *users) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	delete(s.rows, id)
	s.mu.Unlock()
	s.stats.mu.Lock()
	delete(s.stats.rows, id)
	s.stats.mu.Unlock()
	s.tokens.mu.Lock()
	for tid, t := range s.tokens.rows {
		if t.UserID == id {
			delete(s.tokens.rows, tid)
		}
	}
	s.tokens.mu.Unlock()
	return nil
}
func (s *users) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.rows {
		if u.Email == strings.ToLower(strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}
func (s *users) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}
func (s *users) UpdatePassword(_ context.Context, id uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.rows[id]
	u.PasswordHash = hash
	s.rows[id] = u
	return nil
}
func (s *users) UpdateProfile(_ context.Context, id uint64, p model.ProfilePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.rows[id]
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	s.rows[id] = u
	return nil
}
func (s *users) SetActive(_ context.Context, id uint64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = active
	s.rows[id] = u
	return nil
}
func (s *users) List(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.rows))
	for _, u := range s.rows {
		out = append(out, u)
	}
	return out, nil
}

type tokens struct {
	mu    sync.Mutex
	seq   uint64
	clock int64
	rows  map[uint64]model.RefreshToken
}

func (s *tokens) next() time.Time {
	s.clock++
	return time.Unix(0, s.clock*int64(time.Millisecond)).UTC()
}
func (s *tokens) Store(_ context.Context, userID uint64, hash string, exp time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.rows[s.seq] = model.RefreshToken{ID: s.seq, UserID: userID, TokenHash: hash, ExpiresAt: exp, CreatedAt: s.next()}
	return s.seq, nil
}
func (s *tokens) FindByHash(_ context.Context, hash string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.rows {
		if t.TokenHash == hash {
			return t, nil
		}
	}
	return model.RefreshToken{}, repository.ErrNotFound
}
func (s *tokens) CountIssuedAfter(_ context.Context, userID uint64, after time.Time, excludeID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.rows {
		if t.UserID == userID && t.ID != excludeID && t.CreatedAt.After(after) {
			n++
		}
	}
	return n, nil
}
func (s *tokens) Rotate(_ context.Context, oldID, userID uint64, newHash string, exp time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.rows[oldID]
	if !ok || old.RevokedAt != nil {
		return 0, repository.ErrTokenRotated
	}
	now := s.next()
	old.RevokedAt = &now
	s.rows[oldID] = old
	s.seq++
	s.rows[s.seq] = model.RefreshToken{ID: s.seq, UserID: userID, TokenHash: newHash, ExpiresAt: exp, CreatedAt: s.next()}
	return s.seq, nil
}
func (s *tokens) RevokeByHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.rows {
		if t.TokenHash == hash && t.RevokedAt == nil {
			now := s.next()
			t.RevokedAt = &now
			s.rows[id] = t
		}
	}
	return nil
}
func (s *tokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.rows {
		if t.UserID == userID && t.RevokedAt == nil {
			now := s.next()
			t.RevokedAt = &now
			s.rows[id] = t
		}
	}
	return nil
}

type stats struct {
	mu   sync.Mutex
	rows map[uint64]model.UserStats
}

func (s *stats) put(userID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[userID] = model.UserStats{UserID: userID}
}
func (s *stats) GetByUser(_ context.Context, userID uint64) (model.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rows[userID]
	if !ok {
		return model.UserStats{}, repository.ErrNotFound
	}
	return st, nil
}

type events struct{ mu sync.Mutex }

func (e *events) Publish(context.Context, queue.Event) error { return nil }

// ----- harness -----

type harness struct {
	e     *echo.Echo
	users *users
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := &stats{rows: map[uint64]model.UserStats{}}
	tk := &tokens{rows: map[uint64]model.RefreshToken{}}
	us := &users{rows: map[uint64]model.User{}, stats: st, tokens: tk}
	issuer := utils.NewIssuer("access-secret", "refresh-secret", "reset-secret", 15, 7, 30)
	svc := service.NewAuth(issuer, us, tk, st, &events{}, 4)
	h := handler.NewAuthHandler(svc, false)

	e := echo.New()
	router.RegisterRoutes(e)
	// nil Redis client: rate limiting and caching become pass-throughs.
	router.RegisterAuth(e, h, issuer, us, nil)
	return &harness{e: e, users: us}
}

func (h *harness) postJSON(path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "refresh_token" {
			return ck
		}
	}
	t.Fatal("no refresh_token cookie in response")
	return nil
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()
	var body httpx.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (body=%s)", err, rec.Body.String())
	}
	return body
}

const registerBody = `{"email":"ada@example.com","password":"Passw0rd","first_name":"Ada","last_name":"Lovelace"}`

// ----- tests -----

func TestRegisterContract(t *testing.T) {
	h := newHarness(t)
	rec := h.postJSON("/v1/auth/register", registerBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body=%s)", rec.Code, rec.Body.String())
	}

	var body struct {
		User struct {
			ID    uint64 `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.AccessToken == "" || body.User.Email != "ada@example.com" || body.User.Role != model.RoleStudent {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatal("response leaks a password field")
	}

	ck := refreshCookie(t, rec)
	if !ck.HttpOnly {
		t.Fatal("refresh cookie is not HttpOnly")
	}
	if ck.SameSite != http.SameSiteStrictMode {
		t.Fatal("refresh cookie is not SameSite=Strict")
	}
	if ck.Path != "/v1/auth" {
		t.Fatalf("refresh cookie path = %q, want /v1/auth", ck.Path)
	}
	if !ck.Expires.After(time.Now().Add(6 * 24 * time.Hour)) {
		t.Fatalf("refresh cookie expires too soon: %s", ck.Expires)
	}
}

func TestRegisterValidationAndDuplicate(t *testing.T) {
	h := newHarness(t)

	rec := h.postJSON("/v1/auth/register", `{"email":"ada@example.com","password":"short","first_name":"Ada"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeErr(t, rec); body.Error != httpx.CodeValidation || !strings.Contains(body.Message, "8 characters") {
		t.Fatalf("unexpected error body: %+v", body)
	}

	if rec := h.postJSON("/v1/auth/register", registerBody); rec.Code != http.StatusCreated {
		t.Fatalf("first register: %d", rec.Code)
	}
	rec = h.postJSON("/v1/auth/register", `{"email":"ADA@example.com","password":"Passw0rd","first_name":"Ada"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rec.Code)
	}
	if body := decodeErr(t, rec); body.Error != httpx.CodeEmailExists {
		t.Fatalf("code = %s, want %s", body.Error, httpx.CodeEmailExists)
	}
}

func TestLoginUniformRejection(t *testing.T) {
	h := newHarness(t)
	h.postJSON("/v1/auth/register", registerBody)

	wrongPw := h.postJSON("/v1/auth/login", `{"email":"ada@example.com","password":"Nope12345"}`)
	noUser := h.postJSON("/v1/auth/login", `{"email":"ghost@example.com","password":"Passw0rd"}`)

	if wrongPw.Code != http.StatusUnauthorized || noUser.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d/%d, want 401/401", wrongPw.Code, noUser.Code)
	}
	a, b := decodeErr(t, wrongPw), decodeErr(t, noUser)
	if a.Error != b.Error || a.Message != b.Message {
		t.Fatalf("bad-password and unknown-email responses differ: %+v vs %+v", a, b)
	}
	if a.Error != httpx.CodeInvalidCreds {
		t.Fatalf("code = %s, want %s", a.Error, httpx.CodeInvalidCreds)
	}
}

func TestRefreshRotationAndReuseOverHTTP(t *testing.T) {
	h := newHarness(t)
	reg := h.postJSON("/v1/auth/register", registerBody)
	cookieA := refreshCookie(t, reg)

	// First refresh rotates A -> B.
	r1 := h.postJSON("/v1/auth/refresh", "", cookieA)
	if r1.Code != http.StatusOK {
		t.Fatalf("refresh A: status = %d (body=%s)", r1.Code, r1.Body.String())
	}
	cookieB := refreshCookie(t, r1)
	if cookieB.Value == cookieA.Value {
		t.Fatal("refresh cookie was not rotated")
	}

	// Replaying A reports reuse and clears the cookie.
	r2 := h.postJSON("/v1/auth/refresh", "", cookieA)
	if r2.Code != http.StatusUnauthorized {
		t.Fatalf("replay A: status = %d, want 401", r2.Code)
	}
	if body := decodeErr(t, r2); body.Error != httpx.CodeReuseDetected {
		t.Fatalf("code = %s, want %s", body.Error, httpx.CodeReuseDetected)
	}
	if ck := refreshCookie(t, r2); ck.Value != "" {
		t.Fatal("cookie not cleared after reuse detection")
	}

	// B died with the rest of the family.
	r3 := h.postJSON("/v1/auth/refresh", "", cookieB)
	if r3.Code != http.StatusUnauthorized {
		t.Fatalf("refresh B after revocation: status = %d, want 401", r3.Code)
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	h := newHarness(t)
	rec := h.postJSON("/v1/auth/refresh", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if body := decodeErr(t, rec); body.Error != httpx.CodeInvalidRefresh {
		t.Fatalf("code = %s, want %s", body.Error, httpx.CodeInvalidRefresh)
	}
}

func TestLogoutClearsAndRevokes(t *testing.T) {
	h := newHarness(t)
	reg := h.postJSON("/v1/auth/register", registerBody)
	ck := refreshCookie(t, reg)

	out := h.postJSON("/v1/auth/logout", "", ck)
	if out.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", out.Code)
	}
	if cleared := refreshCookie(t, out); cleared.Value != "" {
		t.Fatal("logout did not clear the cookie")
	}
	// The revoked token is dead server-side too.
	if rec := h.postJSON("/v1/auth/refresh", "", ck); rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status = %d, want 401", rec.Code)
	}
}

func TestMeAndProfileUpdate(t *testing.T) {
	h := newHarness(t)
	reg := h.postJSON("/v1/auth/register", registerBody)
	var sess struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(reg.Body.Bytes(), &sess); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/v1/me status = %d (body=%s)", rec.Code, rec.Body.String())
	}
	var me struct {
		User struct {
			FirstName string `json:"first_name"`
		} `json:"user"`
		Stats struct {
			Points uint64 `json:"points"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatal(err)
	}
	if me.User.FirstName != "Ada" {
		t.Fatalf("first name = %q, want Ada", me.User.FirstName)
	}

	patch := httptest.NewRequest(http.MethodPatch, "/v1/me", bytes.NewBufferString(`{"first_name":"Augusta"}`))
	patch.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	patch.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	rec = httptest.NewRecorder()
	h.e.ServeHTTP(rec, patch)
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH /v1/me status = %d (body=%s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Augusta") || !strings.Contains(rec.Body.String(), "Lovelace") {
		t.Fatalf("partial update clobbered fields: %s", rec.Body.String())
	}
}

func TestAdminRoutesRequireRole(t *testing.T) {
	h := newHarness(t)
	reg := h.postJSON("/v1/auth/register", registerBody)
	var sess struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(reg.Body.Bytes(), &sess); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("student on admin route: status = %d, want 403", rec.Code)
	}
	if body := decodeErr(t, rec); body.Error != httpx.CodeForbidden {
		t.Fatalf("code = %s, want %s", body.Error, httpx.CodeForbidden)
	}

	// Seed an admin directly and log in through the API.
	hash, err := utils.HashPassword("R00tPass", 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.users.Create(context.Background(), "root@example.com", hash, "Root", "", model.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	login := h.postJSON("/v1/auth/login", `{"email":"root@example.com","password":"R00tPass"}`)
	if login.Code != http.StatusOK {
		t.Fatalf("admin login: status = %d", login.Code)
	}
	var adminSess struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(login.Body.Bytes(), &adminSess); err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminSess.AccessToken)
	rec = httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin on admin route: status = %d (body=%s)", rec.Code, rec.Body.String())
	}
}

func TestPasswordPolicyEndpoint(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/password-policy", nil)
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var policy struct {
		MinLength int `json:"min_length"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &policy); err != nil {
		t.Fatal(err)
	}
	if policy.MinLength != 8 {
		t.Fatalf("min_length = %d, want 8", policy.MinLength)
	}
}
