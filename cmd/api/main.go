package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"servetrack/internal/accesscode"
	"servetrack/internal/config"
	"servetrack/internal/httpmiddleware"
	"servetrack/internal/identity"
	"servetrack/internal/kiosk"
	"servetrack/internal/logging"
	"servetrack/internal/queue"
	"servetrack/internal/report"
	"servetrack/internal/session"
	"servetrack/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogFormat)
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		// A nil handle means the URL itself was rejected; nothing can be
		// wired without it. An unreachable-but-open handle keeps serving so
		// reads can fall back to the mirror.
		if db == nil {
			return fmt.Errorf("open database: %w", err)
		}
		logger.Warn("db not reachable", zap.Error(err))
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	codeStore := accesscode.NewChainStore(
		accesscode.NewRepository(db.Client),
		accesscode.NewCache(redisClient.Client),
		logger,
	)
	authority := accesscode.NewAuthority(codeStore, cfg.FallbackCode, logger)

	resolver := identity.NewResolver(identity.NewRepository(db.Client), logger)

	sessionStore := session.NewChainStore(
		session.NewRepository(db.Client),
		session.NewCache(redisClient.Client),
		logger,
	)
	sessions := session.NewService(sessionStore, authority, resolver, logger)

	reports := report.NewBuilder(resolver)
	tokens := kiosk.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.KioskTokenTTL)
	ctx := context.Background()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil && db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/people", func(c *gin.Context) {
		var req struct {
			Role        string `json:"role" binding:"required"`
			DisplayName string `json:"display_name" binding:"required"`
			Email       string `json:"email"`
			Phone       string `json:"phone"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p, err := resolver.Register(c.Request.Context(), identity.Role(req.Role), req.DisplayName, req.Email, req.Phone)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, p)
	})

	r.POST("/v1/identity/resolve", func(c *gin.Context) {
		var req struct {
			Identifier string `json:"identifier" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		p, err := resolver.Resolve(c.Request.Context(), req.Identifier)
		if err != nil {
			var ambiguous *identity.AmbiguousError
			switch {
			case errors.Is(err, identity.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "no person matches identifier"})
			case errors.As(err, &ambiguous):
				// Never auto-pick: hand back every candidate for an
				// explicit selection.
				c.JSON(http.StatusMultipleChoices, gin.H{"candidates": ambiguous.Candidates})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		issueKioskToken(c, tokens, p, req.Identifier)
	})

	r.POST("/v1/identity/select", func(c *gin.Context) {
		var req struct {
			PersonID   string `json:"person_id" binding:"required"`
			Identifier string `json:"identifier" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		p, err := resolver.Get(c.Request.Context(), req.PersonID)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown person"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !matchesContact(p, req.Identifier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "identifier does not match selected person"})
			return
		}

		issueKioskToken(c, tokens, p, req.Identifier)
	})

	authGroup := r.Group("/v1", kiosk.Auth(tokens))

	authGroup.POST("/checkins", func(c *gin.Context) {
		var req struct {
			Location         string `json:"location" binding:"required"`
			Code             string `json:"code"`
			CommunityService bool   `json:"community_service"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims, ok := kiosk.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing kiosk claims"})
			return
		}
		person, err := resolver.Get(c.Request.Context(), claims.PersonID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown person"})
			return
		}

		sess, err := sessions.CheckIn(c.Request.Context(), person, req.Location, req.Code, req.CommunityService)
		if err != nil {
			var codeErr *accesscode.CodeError
			switch {
			case errors.As(err, &codeErr):
				c.JSON(http.StatusForbidden, gin.H{"error": codeErr.Error(), "reason": codeErr.Reason})
			case errors.Is(err, session.ErrActiveSessionExists):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		publishRefresh(ctx, q, logger, sess)
		c.JSON(http.StatusCreated, sess)
	})

	authGroup.POST("/checkouts", func(c *gin.Context) {
		var req struct {
			SessionID string `json:"session_id" binding:"required"`
			Rating    int    `json:"rating"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sess, err := sessions.CheckOut(c.Request.Context(), req.SessionID, req.Rating)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrNotActive):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, session.ErrInvalidRating):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		publishRefresh(ctx, q, logger, sess)
		c.JSON(http.StatusOK, sess)
	})

	r.POST("/v1/admin/code", func(c *gin.Context) {
		var req struct {
			Code    string `json:"code"`
			AdminID string `json:"admin_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		code, err := authority.Issue(c.Request.Context(), req.Code, req.AdminID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, code)
	})

	r.GET("/v1/admin/code/audit", func(c *gin.Context) {
		entries, err := authority.Audit(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	r.GET("/v1/sessions/active", func(c *gin.Context) {
		active, err := sessions.ListActive(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": active})
	})

	r.GET("/v1/reports/sessions", func(c *gin.Context) {
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		completed, err := sessions.ListCompleted(c.Request.Context(), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		rows, err := reports.Rows(c.Request.Context(), completed)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rows": rows})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

func issueKioskToken(c *gin.Context, tokens *kiosk.Issuer, p identity.Person, identifier string) {
	token, exp, err := tokens.Issue(p.ID, string(p.Role), identifier)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp.Unix(),
		"person":     p,
	})
}

func matchesContact(p identity.Person, identifier string) bool {
	normalized, isEmail := identity.NormalizeIdentifier(identifier)
	if isEmail {
		return normalized == p.Email
	}
	return normalized != "" && normalized == p.Phone
}

// publishRefresh hands the freshly written session to the worker so the
// redis mirror catches up. A publish failure only widens the fallback
// window; the primary write already landed.
func publishRefresh(ctx context.Context, q queue.Queue, logger *zap.Logger, sess session.Session) {
	body, err := json.Marshal(sess)
	if err != nil {
		return
	}
	msgType := queue.TypeActiveSession
	if sess.Completed() {
		msgType = queue.TypeCompletedSession
	}
	if err := q.Publish(ctx, queue.Message{Type: msgType, Body: body}); err != nil {
		logger.Warn("queue publish failed", zap.Error(err))
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
