package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/middlewares"
	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"bitbucket.org/mmdatafocus/rentroll_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("rentroll-backend")

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// ledgerPubSubHandler receives the push subscription for ledger events and
// notifies the property's tenants that a new reading was entered. Malformed
// payloads are acked and dropped so Pub/Sub does not retry them forever.
func ledgerPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "ledgerPubSubHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "ledgerPubSubHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var m config.LedgerEventMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "ledgerPubSubHandler", "Unmarshal pubsub message", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		if m.PropertyId == "" || m.EventType == "" {
			config.LogError(logger, "server.go", "ledgerPubSubHandler", "Invalid pubsub message (missing required fields)", m, fmt.Errorf("property_id/event_type required"))
			c.Status(http.StatusNoContent)
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "ledgerPubSubHandler")
		defer span.End()

		title := "Electricity bill updated"
		bodyText := fmt.Sprintf("Meter reading entered for %s. Electricity charge: %s.", m.MonthYear, m.ElectricityTotal.StringFixed(2))
		result, err := workflow.DispatchToPropertyTenants(ctx, m.PropertyId, title, bodyText, map[string]string{
			"kind":        "ledger_updated",
			"property_id": m.PropertyId,
			"ledger_id":   m.LedgerId,
		})
		if err != nil {
			config.LogError(logger, "server.go", "ledgerPubSubHandler", "DispatchToPropertyTenants", m, err)
			// Notification is best effort; ack anyway.
			c.Status(http.StatusNoContent)
			return
		}

		logger.WithFields(logrus.Fields{
			"property_id": m.PropertyId,
			"sent":        result.SentCount,
			"failed":      result.FailedCount,
		}).Info("ledger event notified")
		c.Status(http.StatusNoContent)
	}
}

// cronReminderHandler runs the monthly reminder pass. Cloud Scheduler calls
// it with a shared bearer secret.
func cronReminderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := strings.TrimSpace(os.Getenv("CRON_SECRET"))
		auth := c.Request.Header.Get("Authorization")
		if secret == "" || auth != "Bearer "+secret {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		summary, err := workflow.RunMonthlyReminders(c.Request.Context(), time.Now(), false)
		if err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "server.go", "cronReminderHandler", "RunMonthlyReminders", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reminder run failed"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			fields := logrus.Fields{}
			ctx := c.Request.Context()
			if userId, ok := utils.GetResolvedUserIdFromContext(ctx); ok {
				fields["user_id"] = userId
			}
			if role, ok := utils.GetRoleFromContext(ctx); ok {
				fields["role"] = role
			}
			logger.WithFields(fields).Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	logger := config.GetLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "X-Correlation-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	// Infra endpoints.
	r.POST("/pubsub/ledger-events", ledgerPubSubHandler())
	r.GET("/cron/monthly-reminders", cronReminderHandler())

	// Owner surface.
	owner := r.Group("/api/owner", middlewares.RoleGuard(models.RoleOwner))
	{
		owner.GET("/dashboard", ownerDashboardHandler())
		owner.POST("/properties", createPropertyHandler())
		owner.PUT("/properties/:id", updatePropertyHandler())
		owner.PUT("/properties/:id/charges", updatePropertyChargesHandler())
		owner.DELETE("/properties/:id", deletePropertyHandler())
		owner.POST("/properties/:id/meter-reading", meterReadingHandler())
		owner.POST("/tenants", saveTenantHandler())
		owner.DELETE("/tenants/:id", deleteTenantHandler())
		owner.PUT("/complaints/:id/status", complaintStatusHandler())
		owner.PUT("/settings", ownerSettingsHandler())
		owner.GET("/reports/ledger-history", ledgerHistoryExportHandler())
		owner.POST("/uploads/document", uploadDocumentHandler())
		owner.POST("/uploads/profile-photo", uploadProfilePhotoHandler())
	}

	// Tenant surface.
	tenant := r.Group("/api/tenant", middlewares.RoleGuard(models.RoleTenant))
	{
		tenant.GET("/dashboard", tenantDashboardHandler())
		tenant.POST("/complaints", createComplaintHandler())
	}

	// Device tokens are role-agnostic; either role may register.
	r.POST("/api/device-token", deviceTokenHandler())

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	if config.PubSubConfigured() {
		topicCtx, cancelTopic := context.WithTimeout(context.Background(), 15*time.Second)
		if _, err := config.CreateTopicIfNotExists(topicCtx, os.Getenv("PUBSUB_TOPIC")); err != nil {
			// The dispatcher retries publishes; a missing topic only delays them.
			logger.WithFields(logrus.Fields{"field": "pubsub", "error": err.Error()}).Warn("ledger event topic not ready")
		}
		cancelTopic()
	}

	// Start outbox dispatcher (publishes AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelDispatcher()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
