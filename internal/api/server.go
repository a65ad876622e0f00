// Package api serves the status HTTP API: health, Prometheus metrics and
// per-user position control.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/engine"
	"solana-autotrader/internal/metrics"
	"solana-autotrader/internal/observability"
	"solana-autotrader/internal/storage"
)

// Engine is the part of the trading engine the API exposes.
type Engine interface {
	OpenPositions(userID string) ([]domain.Position, error)
	Deactivate(ctx context.Context, userID string) error
}

// Summarizer computes realized trade summaries.
type Summarizer interface {
	UserSummary(ctx context.Context, userID string, start, end int64) (metrics.Summary, error)
}

// Config holds server configuration.
type Config struct {
	Addr           string
	ProductionMode bool
	AllowOrigins   []string // empty allows all origins
}

// Server represents the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	engine     Engine
	fills      storage.FillStore // optional
	summaries  Summarizer        // optional
	logger     zerolog.Logger
	started    time.Time
}

// NewServer creates the API server. fills and summaries may be nil.
func NewServer(cfg Config, eng Engine, fills storage.FillStore, summaries Summarizer, logger zerolog.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:    router,
		engine:    eng,
		fills:     fills,
		summaries: summaries,
		logger:    logger.With().Str("component", "api").Logger(),
		started:   time.Now(),
	}
	router.Use(s.requestLogger())
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(observability.Handler()))

	users := s.router.Group("/users/:id")
	users.GET("/positions", s.handlePositions)
	users.GET("/fills", s.handleFills)
	users.GET("/summary", s.handleSummary)
	users.POST("/deactivate", s.handleDeactivate)
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("status API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Truncate(time.Second).String(),
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	userID := c.Param("id")
	positions, err := s.engine.OpenPositions(userID)
	if errors.Is(err, engine.ErrUnknownUser) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]positionView, 0, len(positions))
	for i := range positions {
		out = append(out, newPositionView(&positions[i]))
	}
	c.JSON(http.StatusOK, gin.H{"user": userID, "positions": out})
}

func (s *Server) handleDeactivate(c *gin.Context) {
	userID := c.Param("id")
	err := s.engine.Deactivate(c.Request.Context(), userID)
	if errors.Is(err, engine.ErrUnknownUser) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user", userID).Msg("deactivate failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userID, "active": false})
}

// handleFills lists a user's fills in [from, to] milliseconds. Both bounds
// are optional; the default window is the last 24 hours.
func (s *Server) handleFills(c *gin.Context) {
	if s.fills == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "fill store not configured"})
		return
	}

	from, to, ok := window(c)
	if !ok {
		return
	}

	userID := c.Param("id")
	fills, err := s.fills.GetByUser(c.Request.Context(), userID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]fillView, 0, len(fills))
	for _, f := range fills {
		out = append(out, newFillView(f))
	}
	c.JSON(http.StatusOK, gin.H{"user": userID, "fills": out})
}

// handleSummary returns realized results of positions closed in [from, to].
func (s *Server) handleSummary(c *gin.Context) {
	if s.summaries == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "summaries not configured"})
		return
	}
	from, to, ok := window(c)
	if !ok {
		return
	}

	userID := c.Param("id")
	summary, err := s.summaries.UserSummary(c.Request.Context(), userID, from, to)
	if err != nil && !errors.Is(err, metrics.ErrNoTrades) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	summary.UserID = userID
	c.JSON(http.StatusOK, summary)
}

// window reads the from/to query bounds in ms, defaulting to the last 24
// hours. Writes a 400 and returns false on malformed input.
func window(c *gin.Context) (int64, int64, bool) {
	now := time.Now().UnixMilli()
	from, err := queryInt(c, "from", now-24*time.Hour.Milliseconds())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return 0, 0, false
	}
	to, err := queryInt(c, "to", now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return 0, 0, false
	}
	return from, to, true
}

func queryInt(c *gin.Context, key string, def int64) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
