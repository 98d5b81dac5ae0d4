package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/raquelitre/Encuesta/internal/apperrors"
	"github.com/raquelitre/Encuesta/internal/config"
)

func TestGate_Authorize(t *testing.T) {
	gate := NewGate(config.StatsConfig{Username: "admin", Password: "changeme"})

	tests := []struct {
		name  string
		creds Credentials
		want  bool
	}{
		{"exact pair", Credentials{"admin", "changeme"}, true},
		{"wrong password", Credentials{"admin", "changeMe"}, false},
		{"wrong user", Credentials{"root", "changeme"}, false},
		{"password prefix", Credentials{"admin", "change"}, false},
		{"password suffix", Credentials{"admin", "changeme!"}, false},
		{"empty", Credentials{}, false},
		{"swapped", Credentials{"changeme", "admin"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Authorize(tt.creds))
		})
	}
}

func TestGate_Check(t *testing.T) {
	gate := NewGate(config.StatsConfig{Username: "admin", Password: "changeme"})

	assert.NoError(t, gate.Check(Credentials{"admin", "changeme"}))
	err := gate.Check(Credentials{"admin", "nope"})
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)
	assert.Equal(t, apperrors.CodeAuthRequired, apperrors.CodeOf(err))
}

func TestGate_PasswordHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	gate := NewGate(config.StatsConfig{Username: "admin", Password: "ignored", PasswordHash: string(hash)})
	assert.True(t, gate.Authorize(Credentials{"admin", "s3cret"}))
	assert.False(t, gate.Authorize(Credentials{"admin", "ignored"}))
}

func TestGate_DefaultRealm(t *testing.T) {
	assert.Equal(t, "Stats", NewGate(config.StatsConfig{}).Realm())
	assert.Equal(t, "Panel", NewGate(config.StatsConfig{Realm: "Panel"}).Realm())
}

func TestGate_Tokens(t *testing.T) {
	gate := NewGate(config.StatsConfig{
		Username:    "admin",
		Password:    "changeme",
		TokenSecret: "test-secret",
		TokenTTL:    10,
	})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return now }

	token, expiresAt, err := gate.IssueToken("admin")
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), expiresAt)
	assert.NoError(t, gate.VerifyToken(token))

	now = now.Add(11 * time.Minute)
	assert.ErrorIs(t, gate.VerifyToken(token), apperrors.ErrAuthRequired)
}

func TestGate_VerifyToken_Rejects(t *testing.T) {
	gate := NewGate(config.StatsConfig{TokenSecret: "test-secret", TokenTTL: 10})

	other := NewGate(config.StatsConfig{TokenSecret: "other-secret", TokenTTL: 10})
	foreign, _, err := other.IssueToken("admin")
	require.NoError(t, err)
	assert.ErrorIs(t, gate.VerifyToken(foreign), apperrors.ErrAuthRequired)

	wrongScope := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Scope: "files:write",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := wrongScope.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	assert.ErrorIs(t, gate.VerifyToken(signed), apperrors.ErrAuthRequired)

	assert.ErrorIs(t, gate.VerifyToken("not-a-token"), apperrors.ErrAuthRequired)
}

func TestGate_TokensDisabled(t *testing.T) {
	gate := NewGate(config.StatsConfig{Username: "admin", Password: "changeme"})

	assert.False(t, gate.TokensEnabled())
	_, _, err := gate.IssueToken("admin")
	assert.ErrorIs(t, err, ErrTokensDisabled)
	assert.ErrorIs(t, gate.VerifyToken("anything"), ErrTokensDisabled)
}
