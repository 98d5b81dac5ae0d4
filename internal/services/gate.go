package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/raquelitre/Encuesta/internal/apperrors"
	"github.com/raquelitre/Encuesta/internal/config"
)

// ErrTokensDisabled is returned when no token secret is configured
var ErrTokensDisabled = errors.New("stats tokens are disabled")

// Credentials is a username/password pair presented to the gate
type Credentials struct {
	Username string
	Password string
}

// Claims represents the stats bearer token claims
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// statsScope is the only scope a gate token carries
const statsScope = "stats:read"

// Gate guards the statistics views with a single shared credential pair.
// It optionally issues short-lived bearer tokens after a successful check.
type Gate struct {
	username     []byte
	password     []byte
	passwordHash []byte
	realm        string
	secret       []byte
	tokenTTL     time.Duration
	now          func() time.Time
}

// NewGate creates a gate from the stats configuration. When a bcrypt
// password hash is configured it takes precedence over the plain password.
func NewGate(cfg config.StatsConfig) *Gate {
	g := &Gate{
		username: []byte(cfg.Username),
		realm:    cfg.Realm,
		secret:   []byte(cfg.TokenSecret),
		tokenTTL: cfg.TokenLifetime(),
		now:      time.Now,
	}
	if cfg.PasswordHash != "" {
		g.passwordHash = []byte(cfg.PasswordHash)
	} else {
		g.password = []byte(cfg.Password)
	}
	if g.realm == "" {
		g.realm = "Stats"
	}
	return g
}

// Realm returns the basic auth realm announced in challenges
func (g *Gate) Realm() string {
	return g.realm
}

// Authorize reports whether creds exactly match the configured pair
func (g *Gate) Authorize(creds Credentials) bool {
	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), g.username) == 1

	var passOK bool
	if g.passwordHash != nil {
		passOK = bcrypt.CompareHashAndPassword(g.passwordHash, []byte(creds.Password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(creds.Password), g.password) == 1
	}

	return userOK && passOK
}

// Check returns apperrors.ErrAuthRequired unless creds are accepted
func (g *Gate) Check(creds Credentials) error {
	if !g.Authorize(creds) {
		return apperrors.ErrAuthRequired
	}
	return nil
}

// TokensEnabled reports whether bearer tokens can be issued and verified
func (g *Gate) TokensEnabled() bool {
	return len(g.secret) > 0
}

// IssueToken creates a signed stats token and returns it with its expiry
func (g *Gate) IssueToken(subject string) (string, time.Time, error) {
	if !g.TokensEnabled() {
		return "", time.Time{}, ErrTokensDisabled
	}

	now := g.now()
	expiresAt := now.Add(g.tokenTTL)
	claims := Claims{
		Scope: statsScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken validates a bearer token issued by IssueToken
func (g *Gate) VerifyToken(tokenString string) error {
	if !g.TokensEnabled() {
		return ErrTokensDisabled
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now))
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrAuthRequired, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Scope != statsScope {
		return apperrors.ErrAuthRequired
	}
	return nil
}
