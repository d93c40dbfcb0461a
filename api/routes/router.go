// api/routes/router.go
package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tourly/internal/bookings"
	"tourly/internal/ledger"
	"tourly/internal/operations"
	"tourly/internal/pricing"
	"tourly/internal/shared/config"
	"tourly/internal/shared/database"
	"tourly/internal/workers"
	"tourly/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HealthChecker is anything whose liveness the /health endpoint reports
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Router holds the ops-surface dependencies. Business traffic never
// arrives over HTTP; the routes here are health, worker status, and
// read-only inspection of the engine's state (accounts, ledger entries,
// bookings, price quotes).
type Router struct {
	config     *config.Config
	db         *database.DB
	runner     *workers.Runner
	producer   HealthChecker
	ledger     ledger.Service
	bookings   bookings.Service
	operations operations.Service
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, runner *workers.Runner, producer HealthChecker,
	ledgerService ledger.Service, bookingService bookings.Service, operationService operations.Service) *Router {
	return &Router{
		config:     cfg,
		db:         db,
		runner:     runner,
		producer:   producer,
		ledger:     ledgerService,
		bookings:   bookingService,
		operations: operationService,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)
	r.setupJobRoutes(engine)
	r.setupLedgerRoutes(engine)
	r.setupBookingRoutes(engine)
	r.setupQuoteRoutes(engine)
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		checks := gin.H{}
		healthy := true

		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			checks["databases"] = err.Error()
			healthy = false
		} else {
			checks["databases"] = "ok"
		}

		if r.producer != nil {
			if err := r.producer.HealthCheck(c.Request.Context()); err != nil {
				checks["notifications"] = err.Error()
				healthy = false
			} else {
				checks["notifications"] = "ok"
			}
		}

		status := http.StatusOK
		statusText := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			statusText = "unhealthy"
		}

		c.JSON(status, gin.H{
			"status":    statusText,
			"checks":    checks,
			"timestamp": time.Now().UTC(),
			"service":   "tourly-engine",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
}

// setupJobRoutes exposes the last run snapshot of each background worker
func (r *Router) setupJobRoutes(engine *gin.Engine) {
	engine.GET("/jobs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"jobs":      r.runner.GetJobStatus(c.Request.Context()),
			"timestamp": time.Now().UTC(),
		})
	})
}

// setupLedgerRoutes exposes operator balances and the audit trail behind them
func (r *Router) setupLedgerRoutes(engine *gin.Engine) {
	engine.GET("/operators/:operator_id/account", func(c *gin.Context) {
		operatorID, err := uuid.Parse(c.Param("operator_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid operator id"})
			return
		}

		account, err := r.ledger.GetAccount(c.Request.Context(), operatorID)
		if err != nil {
			if errors.Is(err, ledger.ErrAccountNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "escrow account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, account)
	})

	engine.GET("/operators/:operator_id/ledger", func(c *gin.Context) {
		operatorID, err := uuid.Parse(c.Param("operator_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid operator id"})
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		entries, err := r.ledger.GetRecentEntries(c.Request.Context(), operatorID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})
}

// setupBookingRoutes exposes single-booking lookup for support tooling
func (r *Router) setupBookingRoutes(engine *gin.Engine) {
	engine.GET("/bookings/:id", func(c *gin.Context) {
		bookingID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
			return
		}

		booking, err := r.bookings.GetBooking(c.Request.Context(), bookingID)
		if err != nil {
			if bookings.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, booking)
	})
}

// setupQuoteRoutes exposes the early-bird price evaluation for a slot
func (r *Router) setupQuoteRoutes(engine *gin.Engine) {
	engine.GET("/operations/:id/quote", func(c *gin.Context) {
		operationID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid operation id"})
			return
		}
		slotID, err := uuid.Parse(c.Query("slot_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot id"})
			return
		}
		guests, err := strconv.Atoi(c.DefaultQuery("guests", "1"))
		if err != nil || guests <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "guests must be a positive integer"})
			return
		}

		quote, err := r.operations.QuoteBooking(c.Request.Context(), operationID, slotID, guests)
		if err != nil {
			switch {
			case errors.Is(err, operations.ErrSlotNotFound), errors.Is(err, gorm.ErrRecordNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, pricing.ErrInvalidPrice), errors.Is(err, pricing.ErrDeparturePassed):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, quote)
	})
}

// NewEngine builds the gin engine with the shared middleware stack
func NewEngine(cfg *config.Config) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	return engine
}

// RequestLoggerMiddleware logs every request on the ops surface
func RequestLoggerMiddleware(appLogger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		appLogger.LogHTTPRequest(c, time.Since(start))
	}
}
