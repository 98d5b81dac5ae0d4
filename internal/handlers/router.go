package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/raquelitre/Encuesta/internal/config"
	"github.com/raquelitre/Encuesta/internal/middleware"
	"github.com/raquelitre/Encuesta/internal/services"
)

// Pinger reports whether the durable store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router wires into handlers
type Deps struct {
	Config    config.ServerConfig
	Responses *services.ResponseService
	Stats     *services.StatsService
	Images    *services.ImageService
	Gate      *services.Gate
	Store     Pinger
	Logger    *slog.Logger
}

// NewRouter builds the HTTP router
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	if len(d.Config.AllowOrigins) == 0 || (len(d.Config.AllowOrigins) == 1 && d.Config.AllowOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = d.Config.AllowOrigins
	}
	router.Use(cors.New(corsConfig))

	if d.Config.MaxBodyBytes > 0 {
		router.Use(middleware.BodyLimit(d.Config.MaxBodyBytes))
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		if d.Store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Store.Ping(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	shareHandler := NewShareHandler(d.Responses)
	imageHandler := NewImageHandler(d.Images)
	statsHandler := NewStatsHandler(d.Stats, d.Gate)
	gate := middleware.GateMiddleware(d.Gate)

	router.GET("/share/:file", imageHandler.Serve)

	api := router.Group("/api")
	{
		api.POST("/share", shareHandler.Submit)
		api.POST("/share-image", imageHandler.Upload)
		api.GET("/answers/:bits", RestoreAnswers)

		stats := api.Group("/stats")
		stats.Use(gate)
		{
			stats.GET("/percent", statsHandler.Percent)
			stats.GET("/items", statsHandler.Items)
			stats.POST("/token", statsHandler.Token)
		}
	}

	if dir := d.Config.StaticDir; dir != "" {
		mountStatic(router, dir, d.Gate)
	}

	return router
}

// protectedPages are static files only served to callers passing the gate
var protectedPages = map[string]bool{
	"/stats.html": true,
}

// mountStatic serves the survey front end. Every static path is cleaned and
// checked against protectedPages, whichever route it arrived through.
func mountStatic(router *gin.Engine, dir string, gate middleware.Authorizer) {
	site := staticSite{dir: dir, gate: gate}

	router.GET("/public/*filepath", func(c *gin.Context) {
		site.serve(c, c.Param("filepath"))
	})
	router.HEAD("/public/*filepath", func(c *gin.Context) {
		site.serve(c, c.Param("filepath"))
	})
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
			return
		}
		site.serve(c, c.Request.URL.Path)
	})
}

type staticSite struct {
	dir  string
	gate middleware.Authorizer
}

func (s staticSite) serve(c *gin.Context, name string) {
	name = path.Clean("/" + name)
	if name == "/" {
		name = "/index.html"
	}
	if protectedPages[strings.ToLower(name)] && !middleware.Authenticate(c, s.gate) {
		return
	}
	serveFile(c, filepath.Join(s.dir, filepath.FromSlash(name)))
}

func serveFile(c *gin.Context, file string) {
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
		return
	}
	c.File(file)
}
