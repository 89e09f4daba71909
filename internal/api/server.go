// Package api is the HTTP surface of the bot: health, manual transaction
// entry, summaries and the WhatsApp webhook.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nanmax/wa-finance-bot-sub000/internal/bot"
	"github.com/nanmax/wa-finance-bot-sub000/internal/cache"
	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
	"github.com/nanmax/wa-finance-bot-sub000/internal/middleware/ratelimit"
	"github.com/nanmax/wa-finance-bot-sub000/internal/middleware/security"
	"github.com/nanmax/wa-finance-bot-sub000/internal/report"
	"github.com/nanmax/wa-finance-bot-sub000/internal/storage"
)

type (
	// Ledger is the slice of services.TransactionService the API needs.
	Ledger interface {
		Record(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, id string) (core.Transaction, error)
		List(ctx context.Context, opts storage.ListOptions) ([]core.Transaction, error)
		All(ctx context.Context) ([]core.Transaction, error)
	}

	MessageHandler interface {
		Handle(ctx context.Context, msg bot.InboundMessage) (string, bool)
	}

	// HealthChecker is implemented by stores that can reach their backend.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)

// Options configures NewServer. Zero values are usable.
type Options struct {
	Addr         string
	AllowOrigins []string
	RateLimit    ratelimit.Config
	// Summaries caches GET /api/summary responses; nil disables caching.
	Summaries cache.Cache[SummaryResponse]
	Health    HealthChecker
	Logger    *log.Logger
}

type Server struct {
	http.Server

	ledger    Ledger
	bot       MessageHandler
	reports   *report.Engine
	summaries cache.Cache[SummaryResponse]
	health    HealthChecker
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger

	shutdownOnce sync.Once
}

// NewServer wires the routes and returns a server ready for ListenAndServe.
func NewServer(ledger Ledger, handler MessageHandler, reports *report.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		ledger:    ledger,
		bot:       handler,
		reports:   reports,
		summaries: opts.Summaries,
		health:    opts.Health,
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		detector:  security.NewDetector(logger),
		logger:    logger.WithComponent(log.ComponentHTTP),
	}

	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		log.GinMiddleware(logger),
		security.Headers(security.DefaultHeadersConfig()),
		s.detector.Middleware(),
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	)

	r.GET("/health", s.handleHealth)

	api := r.Group("/api", s.limiter.Middleware())
	api.GET("/transactions", s.handleListTransactions)
	api.POST("/transactions", s.handleCreateTransaction)
	api.DELETE("/transactions/:id", s.handleDeleteTransaction)
	api.GET("/summary", s.handleSummary)

	r.POST("/webhook/whatsapp", s.handleWhatsAppWebhook)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server. Only the first
// call has an effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Health check failed", log.FieldError, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "storage unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": s.reports.Now().Format(time.RFC3339)})
}
