package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raquelitre/Encuesta/internal/config"
	"github.com/raquelitre/Encuesta/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newGatedRouter(gate *services.Gate) *gin.Engine {
	r := gin.New()
	r.GET("/protected", GateMiddleware(gate), func(c *gin.Context) {
		c.String(http.StatusOK, GetStatsUser(c))
	})
	return r
}

func TestGateMiddleware_Basic(t *testing.T) {
	gate := services.NewGate(config.StatsConfig{Username: "admin", Password: "changeme", Realm: "Stats"})
	r := newGatedRouter(gate)

	tests := []struct {
		name       string
		setAuth    func(*http.Request)
		wantStatus int
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized},
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("admin", "wrong") }, http.StatusUnauthorized},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Basic !!!") }, http.StatusUnauthorized},
		{"bearer while tokens disabled", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, http.StatusUnauthorized},
		{"valid", func(r *http.Request) { r.SetBasicAuth("admin", "changeme") }, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tt.setAuth(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="Stats"`, w.Header().Get("WWW-Authenticate"))
				assert.JSONEq(t, `{"error":"AUTH_REQUIRED"}`, w.Body.String())
			} else {
				assert.Equal(t, "admin", w.Body.String())
			}
		})
	}
}

func TestGateMiddleware_Bearer(t *testing.T) {
	gate := services.NewGate(config.StatsConfig{
		Username:    "admin",
		Password:    "changeme",
		TokenSecret: "secret",
		TokenTTL:    5,
	})
	r := newGatedRouter(gate)

	token, _, err := gate.IssueToken("admin")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "token", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token+"x")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticate_InlineCheck(t *testing.T) {
	gate := services.NewGate(config.StatsConfig{Username: "admin", Password: "changeme", Realm: "Stats"})
	r := gin.New()
	r.GET("/page", func(c *gin.Context) {
		if !Authenticate(c, gate) {
			return
		}
		c.String(http.StatusOK, "page for "+GetStatsUser(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/page", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "page for")

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.SetBasicAuth("admin", "changeme")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "page for admin", w.Body.String())
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/echo", BodyLimit(8), func(c *gin.Context) {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusBadRequest, "too big")
			return
		}
		c.String(http.StatusOK, string(data))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "small", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("much too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// Unknown length is cut off while reading
	req := httptest.NewRequest(http.MethodPost, "/echo", io.NopCloser(strings.NewReader("much too large")))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(RequestLogger(logger))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"INFO"`)
	assert.Contains(t, lines[0], `"path":"/ok"`)
	assert.Contains(t, lines[1], `"level":"ERROR"`)
	assert.Contains(t, lines[1], `"status":500`)
}
