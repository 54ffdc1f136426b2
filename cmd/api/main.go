package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/config"
	"classattend/internal/httpmiddleware"
	"classattend/internal/queue"
	"classattend/internal/store"
)

var recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "classattend_attendance_records_total",
	Help: "Attendance write attempts by path and result.",
}, []string{"path", "result"})

func main() {
	cfg := config.Load()
	log := newLogger(cfg.Env)

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "production" || env == "prod" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func runHTTP(cfg config.App, log zerolog.Logger) error {
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		if db == nil {
			return err
		}
		log.Warn().Err(err).Msg("db not reachable at startup")
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classattend:recorded")
	}

	repo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(repo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(log, "/healthz", "/metrics"))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Token issue for registered users. Credential verification lives in the
	// identity layer; this service only mints role-scoped tokens.
	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
			Role   string `json:"role" binding:"required,oneof=student teacher"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.UserID, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		_ = repo.SaveRefreshToken(c.Request.Context(), req.UserID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Attendance write: students record their own presence, teachers set
	// any student's status. One row per class/student/day either way.
	authGroup.PUT("/classes/:id/attendance/:studentID/:status", func(c *gin.Context) {
		classID := c.Param("id")
		studentID := c.Param("studentID")
		status := c.Param("status")
		date := c.Query("date")

		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
			return
		}

		var err error
		switch claims.Role {
		case auth.RoleStudent:
			if claims.Subject != studentID {
				c.JSON(http.StatusForbidden, gin.H{"error": "students may only record their own attendance"})
				return
			}
			if status != "present" {
				c.JSON(http.StatusForbidden, gin.H{"error": "self check-in records presence only"})
				return
			}
			date, err = svc.RecordSelf(c.Request.Context(), classID, studentID, date)
		case auth.RoleTeacher:
			date, err = svc.SetManual(c.Request.Context(), claims.Subject, classID, studentID, date, status)
		default:
			c.JSON(http.StatusForbidden, gin.H{"error": "unknown role"})
			return
		}

		if err != nil {
			writeAttendanceError(c, claims.Role, err)
			return
		}

		recordsTotal.WithLabelValues(claims.Role, "recorded").Inc()
		evt := queue.RecordedEvent{
			ClassID:   classID,
			StudentID: studentID,
			Date:      date,
			Status:    status,
			Manual:    claims.Role == auth.RoleTeacher,
		}
		if err := q.Publish(c.Request.Context(), evt); err != nil {
			log.Warn().Err(err).Msg("queue publish failed")
		}

		c.JSON(http.StatusOK, gin.H{"class_id": classID, "student_id": studentID, "date": date, "status": status})
	})

	authGroup.GET("/classes/:id/attendance/:date", func(c *gin.Context) {
		records, err := svc.AttendanceForDate(c.Request.Context(), c.Param("id"), c.Param("date"))
		if err != nil {
			if errors.Is(err, attendance.ErrInvalidDate) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch attendance"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"attendance": records})
	})

	authGroup.GET("/classes/:id", func(c *gin.Context) {
		class, err := repo.GetClass(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch class"})
			return
		}
		if class == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": attendance.ErrClassNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, class)
	})

	authGroup.GET("/classes/:id/students", func(c *gin.Context) {
		students, err := svc.Roster(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch roster"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": students})
	})

	authGroup.POST("/classes", func(c *gin.Context) {
		claims, _ := auth.ClaimsFrom(c)
		if claims.Role != auth.RoleTeacher {
			c.JSON(http.StatusForbidden, gin.H{"error": "only teachers can register classes"})
			return
		}

		var req attendance.Class
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.TeacherID = claims.Subject

		created, err := svc.RegisterClass(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	authGroup.POST("/classes/:id/enroll", func(c *gin.Context) {
		claims, _ := auth.ClaimsFrom(c)
		if claims.Role != auth.RoleStudent {
			c.JSON(http.StatusForbidden, gin.H{"error": "only students can enroll"})
			return
		}
		if err := svc.Enroll(c.Request.Context(), c.Param("id"), claims.Subject); err != nil {
			if errors.Is(err, attendance.ErrClassNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "enrollment failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "enrolled"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced shutdown")
	}

	log.Info().Msg("server exited")
	return nil
}

// writeAttendanceError maps service errors to HTTP statuses. A student
// hitting the one-per-day rule gets 409 so clients treat it as idempotent
// success.
func writeAttendanceError(c *gin.Context, role string, err error) {
	switch {
	case errors.Is(err, attendance.ErrAlreadyRecorded):
		recordsTotal.WithLabelValues(role, "conflict").Inc()
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNotEnrolled), errors.Is(err, attendance.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrClassNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrInvalidStatus), errors.Is(err, attendance.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		recordsTotal.WithLabelValues(role, "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attendance write failed"})
	}
}

// CORS middleware for browser requests.
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

// Security headers middleware.
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
