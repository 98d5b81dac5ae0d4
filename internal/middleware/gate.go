package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/raquelitre/Encuesta/internal/apperrors"
	"github.com/raquelitre/Encuesta/internal/services"
)

// Authorizer is the access check applied to protected routes
type Authorizer interface {
	Authorize(creds services.Credentials) bool
	VerifyToken(token string) error
	TokensEnabled() bool
	Realm() string
}

// StatsUserKey is the context key holding the authenticated principal
const StatsUserKey = "stats_user"

// GateMiddleware requires either HTTP basic credentials accepted by the gate
// or, when tokens are enabled, a bearer token it issued. Rejected requests
// get a 401 basic challenge.
func GateMiddleware(gate Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Authenticate(c, gate) {
			return
		}
		c.Next()
	}
}

// Authenticate checks the request credentials against gate. On failure it
// writes the challenge, aborts c and returns false.
func Authenticate(c *gin.Context, gate Authorizer) bool {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" && gate.TokensEnabled() {
		if err := gate.VerifyToken(strings.TrimSpace(parts[1])); err != nil {
			Challenge(c, gate.Realm())
			return false
		}
		c.Set(StatsUserKey, "token")
		return true
	}

	user, pass, ok := c.Request.BasicAuth()
	if !ok || !gate.Authorize(services.Credentials{Username: user, Password: pass}) {
		Challenge(c, gate.Realm())
		return false
	}

	c.Set(StatsUserKey, user)
	return true
}

// Challenge aborts the request with a basic auth challenge
func Challenge(c *gin.Context, realm string) {
	c.Header("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperrors.CodeAuthRequired})
}

// GetStatsUser extracts the authenticated principal from context
func GetStatsUser(c *gin.Context) string {
	user, _ := c.Get(StatsUserKey)
	s, _ := user.(string)
	return s
}
