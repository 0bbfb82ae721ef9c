package router

import (
	"net/http"

	"fraud-graph-engine/internal/interfaces/http/handler"
)

// Router holds all HTTP handlers
type Router struct {
	mux            *http.ServeMux
	controlHandler *handler.ControlHandler
	healthHandler  *handler.HealthHandler
	metricsHandler http.Handler
}

// NewRouter creates a new router with all routes configured
func NewRouter(
	controlHandler *handler.ControlHandler,
	healthHandler *handler.HealthHandler,
	metricsHandler http.Handler,
) *Router {
	r := &Router{
		mux:            http.NewServeMux(),
		controlHandler: controlHandler,
		healthHandler:  healthHandler,
		metricsHandler: metricsHandler,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// Health endpoints
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)
	r.mux.HandleFunc("GET /ready", r.healthHandler.Ready)
	r.mux.HandleFunc("GET /live", r.healthHandler.Live)

	// Metrics
	r.mux.Handle("GET /metrics", r.metricsHandler)

	// Transactions
	r.mux.HandleFunc("POST /api/v1/transactions", r.controlHandler.CreateTransaction)
	r.mux.HandleFunc("GET /api/v1/transactions/recent", r.controlHandler.RecentTransactions)

	// Detection rules
	r.mux.HandleFunc("GET /api/v1/rules", r.controlHandler.ListRules)
	r.mux.HandleFunc("PUT /api/v1/rules/{name}", r.controlHandler.ToggleRule)

	// Account flags
	r.mux.HandleFunc("POST /api/v1/accounts/{id}/flag", r.controlHandler.FlagAccount)
	r.mux.HandleFunc("DELETE /api/v1/accounts/{id}/flag", r.controlHandler.UnflagAccount)

	// Load generator
	r.mux.HandleFunc("POST /api/v1/generator/start", r.controlHandler.StartGenerator)
	r.mux.HandleFunc("POST /api/v1/generator/stop", r.controlHandler.StopGenerator)
	r.mux.HandleFunc("GET /api/v1/generator/status", r.controlHandler.GeneratorStatus)

	// Stats
	r.mux.HandleFunc("GET /api/v1/stats", r.controlHandler.Dashboard)
	r.mux.HandleFunc("GET /api/v1/stats/transactions", r.controlHandler.TransactionStats)
	r.mux.HandleFunc("GET /api/v1/stats/users", r.controlHandler.UserStats)
	r.mux.HandleFunc("GET /api/v1/performance", r.controlHandler.Performance)

	// Graph administration
	r.mux.HandleFunc("GET /api/v1/indexes", r.controlHandler.InspectIndexes)
	r.mux.HandleFunc("POST /api/v1/indexes/fraud", r.controlHandler.CreateFraudIndexes)
	r.mux.HandleFunc("POST /api/v1/seed", r.controlHandler.Seed)
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Add CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}
