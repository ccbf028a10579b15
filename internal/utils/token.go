package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"   // secure random number generation for jti values
    "crypto/sha256" // SHA-256 hashing for persisted refresh tokens
    "encoding/hex"  // hex encoding of digests
    "errors"        // sentinel error definitions and errors.Is checks
    "strconv"       // parsing numeric subject claims encoded as strings
    "time"          // expiry calculations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// Kind identifies the class of a signed token.  Each kind is signed with an
// independent secret so a leaked secret for one class does not compromise
// the others.  Access tokens authenticate single requests, refresh tokens
// are exchanged for new pairs, and reset tokens authorize password resets.
type Kind string

const (
    KindAccess  Kind = "access"
    KindRefresh Kind = "refresh"
    KindReset   Kind = "reset"
)

// ErrTokenExpired is returned by Verify when the token's signature is valid
// but its expiry has passed.  Callers surface this to clients so they can
// attempt a refresh instead of a full re-login.
var ErrTokenExpired = errors.New("token expired")

// ErrTokenInvalid covers every other verification failure: malformed input,
// bad signature, wrong signing algorithm, or a token of a different kind.
var ErrTokenInvalid = errors.New("token invalid")

// SignedToken bundles a serialized JWT with its expiry.  The Exp field is
// used by handlers to set cookie lifetimes and by responses that report when
// the access token becomes stale.
type SignedToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// Claims holds the decoded, validated contents of a token.  Role is only
// populated for access tokens; refresh and reset tokens carry the subject
// alone.
type Claims struct {
    UserID    uint64
    Role      string
    ExpiresAt time.Time
}

// Issuer mints and verifies the three token kinds.  Secrets and TTLs are
// keyed by kind; both maps are populated once at construction and never
// mutated, so the Issuer is safe for concurrent use.
type Issuer struct {
    secrets map[Kind][]byte
    ttls    map[Kind]time.Duration
}

// NewIssuer builds an Issuer from per-kind secrets and TTLs.  Access and
// reset TTLs are expressed in minutes and the refresh TTL in days, matching
// how the configuration exposes them.
func NewIssuer(accessSecret, refreshSecret, resetSecret string, accessTTLMin, refreshTTLDays, resetTTLMin int) *Issuer {
    return &Issuer{
        secrets: map[Kind][]byte{
            KindAccess:  []byte(accessSecret),
            KindRefresh: []byte(refreshSecret),
            KindReset:   []byte(resetSecret),
        },
        ttls: map[Kind]time.Duration{
            KindAccess:  time.Duration(accessTTLMin) * time.Minute,
            KindRefresh: time.Duration(refreshTTLDays) * 24 * time.Hour,
            KindReset:   time.Duration(resetTTLMin) * time.Minute,
        },
    }
}

// Issue builds and signs an HS256 JWT of the given kind for a user.  The
// claims are: subject (sub), expiration (exp), issued at (iat), a random jti
// so two tokens minted in the same second still differ, and the role claim
// for access tokens only.  Issue has no side effects; persisting refresh
// tokens is the caller's responsibility.
func (i *Issuer) Issue(kind Kind, userID uint64, role string) (SignedToken, error) {
    secret, ok := i.secrets[kind]
    if !ok {
        return SignedToken{}, ErrTokenInvalid
    }
    now := time.Now().UTC()
    exp := now.Add(i.ttls[kind])
    jti, err := randomHex(8)
    if err != nil {
        return SignedToken{}, err
    }
    claims := jwt.MapClaims{
        "sub": userID,
        "exp": exp.Unix(),
        "iat": now.Unix(),
        "jti": jti,
    }
    if role != "" {
        claims["role"] = role
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString(secret)
    if err != nil {
        return SignedToken{}, err
    }
    return SignedToken{Token: signed, Exp: exp}, nil
}

// Verify checks the signature and expiry of a token of the given kind and
// returns its decoded claims.  Failures collapse to two sentinels: an
// expired-but-otherwise-valid token yields ErrTokenExpired, everything else
// yields ErrTokenInvalid.  A token signed for a different kind fails the
// signature check because each kind has its own secret.
func (i *Issuer) Verify(kind Kind, raw string) (Claims, error) {
    secret, ok := i.secrets[kind]
    if !ok {
        return Claims{}, ErrTokenInvalid
    }
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        // Reject tokens that were signed with anything other than HMAC.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrTokenInvalid
        }
        return secret, nil
    })
    if err != nil {
        if errors.Is(err, jwt.ErrTokenExpired) {
            return Claims{}, ErrTokenExpired
        }
        return Claims{}, ErrTokenInvalid
    }
    if !tok.Valid {
        return Claims{}, ErrTokenInvalid
    }
    mc, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Claims{}, ErrTokenInvalid
    }

    var c Claims
    // JWT numbers decode as float64; some encoders emit numeric strings.
    switch sub := mc["sub"].(type) {
    case float64:
        c.UserID = uint64(sub)
    case string:
        n, err := strconv.ParseUint(sub, 10, 64)
        if err != nil {
            return Claims{}, ErrTokenInvalid
        }
        c.UserID = n
    default:
        return Claims{}, ErrTokenInvalid
    }
    if role, ok := mc["role"].(string); ok {
        c.Role = role
    }
    if exp, ok := mc["exp"].(float64); ok {
        c.ExpiresAt = time.Unix(int64(exp), 0).UTC()
    }
    return c, nil
}

// HashToken returns the SHA-256 hash of a serialized token as a hex string.
// Only the hash of a refresh token is persisted so a leaked database dump
// cannot be replayed against the refresh endpoint.
func HashToken(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
