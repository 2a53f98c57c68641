package main

import (
	"net/http"
	"time"

	"github.com/diewo77/ap-invoices/httpx"
	"github.com/diewo77/ap-invoices/internal/assistant"
	"github.com/diewo77/ap-invoices/internal/config"
	"github.com/diewo77/ap-invoices/internal/handlers"
	"github.com/diewo77/ap-invoices/internal/logger"
	"github.com/diewo77/ap-invoices/internal/services"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	db        *gorm.DB
	invoices  *handlers.InvoiceHandler
	analytics *handlers.AnalyticsHandler
	export    *handlers.ExportHandler
	assistant *handlers.AssistantHandler
	handler   http.Handler
}

// NewApp wires services and handlers. model may be nil when no assistant
// credential is configured.
func NewApp(db *gorm.DB, cfg *config.Config, model assistant.Model) *App {
	invoiceSvc := services.NewInvoiceService(db)
	analyticsSvc := services.NewAnalyticsService(db, cfg.App.FullAnalyticsRepair)
	bridge := assistant.NewBridge(model, invoiceSvc, analyticsSvc, assistant.Options{
		ContextSize: cfg.Assistant.ContextSize,
		Timeout:     cfg.Assistant.Timeout,
	})

	app := &App{
		mux:       http.NewServeMux(),
		db:        db,
		invoices:  handlers.NewInvoiceHandler(invoiceSvc),
		analytics: handlers.NewAnalyticsHandler(analyticsSvc),
		export:    handlers.NewExportHandler(invoiceSvc),
		assistant: handlers.NewAssistantHandler(bridge, cfg.Assistant.Provider),
	}
	app.setupRoutes()
	app.handler = withRecover(withLogging(app.mux))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	a.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	a.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Invoices
	a.mux.HandleFunc("GET /api/invoices", a.invoices.List)
	a.mux.HandleFunc("GET /api/invoices/{invoice_num}", a.invoices.Get)
	a.mux.HandleFunc("PUT /api/invoices/{invoice_num}", a.invoices.Update)
	a.mux.HandleFunc("GET /api/invoices/{invoice_num}/pdf", a.invoices.PDF)

	// Analytics & vendors
	a.mux.HandleFunc("GET /api/analytics/summary", a.analytics.Summary)
	a.mux.HandleFunc("GET /api/vendors", a.analytics.Vendors)
	a.mux.HandleFunc("GET /api/vendors/summary", a.analytics.VendorSummary)

	a.mux.HandleFunc("GET /api/export/invoices", a.export.Invoices)
	a.mux.HandleFunc("POST /api/ai-assistant/query", a.assistant.Query)
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withLogging tags each request with an id and logs it once served.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		log := logger.WithRequestID(id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(log.WithContext(r.Context())))

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				l := logger.WithComponent("server")
				l.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("recovered from panic")
				httpx.JSONError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
