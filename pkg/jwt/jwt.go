package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is what a service token may do.
type Role string

const (
	// RoleIngest may post join and message events.
	RoleIngest Role = "ingest"
	// RoleReader may read leaderboards, stats and member verdicts.
	RoleReader Role = "reader"
	// RoleAdmin may do everything, including threshold changes.
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleIngest, RoleReader, RoleAdmin:
		return true
	}
	return false
}

// Satisfies reports whether a token with role r may act as required.
func (r Role) Satisfies(required Role) bool {
	return r == RoleAdmin || r == required
}

// Claims extends jwt.RegisteredClaims with custom fields.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

var (
	ErrInvalidRole  = errors.New("invalid role")
	ErrInvalidToken = errors.New("invalid token")
)

type Manager struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
}

func NewManager(signingKey string, issuer string, tokenTTL time.Duration) *Manager {
	return &Manager{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		tokenTTL:   tokenTTL,
	}
}

// GenerateToken creates a signed service token for subject. A ttl of zero
// uses the manager's default.
func (m *Manager) GenerateToken(subject string, role Role, ttl time.Duration) (string, error) {
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	if ttl <= 0 {
		ttl = m.tokenTTL
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

// Validate parses and validates a token string, returning claims.
func (m *Manager) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.signingKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidRole
	}
	return claims, nil
}
