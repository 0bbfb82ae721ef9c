package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"fraud-graph-engine/internal/application/dto"
	"fraud-graph-engine/internal/domain/fraud"
	"fraud-graph-engine/internal/orchestrator"
)

// ControlHandler exposes the engine's control surface over HTTP
type ControlHandler struct {
	svc *orchestrator.Service
}

// NewControlHandler creates a new control handler
func NewControlHandler(svc *orchestrator.Service) *ControlHandler {
	return &ControlHandler{svc: svc}
}

// CreateTransaction handles POST /api/v1/transactions
func (h *ControlHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	txType, err := req.Validate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	location := req.Location
	if location == "" {
		location = "Unknown, US"
	}

	summary, err := h.svc.CreateTransaction(r.Context(), parseID(req.SenderID),
		parseID(req.ReceiverID), req.Amount, txType, location)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "transaction failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.NewTransactionResponse(summary))
}

// RecentTransactions handles GET /api/v1/transactions/recent
func (h *ControlHandler) RecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	recent := h.svc.RecentTransactions(limit)
	out := make([]dto.TransactionResponse, 0, len(recent))
	for _, tx := range recent {
		out = append(out, dto.NewTransactionResponse(fraud.TransactionSummary{Transaction: tx}))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": out,
		"count":        len(out),
	})
}

// ListRules handles GET /api/v1/rules
func (h *ControlHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules := dto.NewRuleResponses(h.svc.ListRules())
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// ToggleRule handles PUT /api/v1/rules/{name}
func (h *ControlHandler) ToggleRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "rule name is required")
		return
	}

	var req dto.ToggleRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.svc.ToggleRule(name, req.Enabled); err != nil {
		if errors.Is(err, fraud.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"name": name, "enabled": req.Enabled})
}

// FlagAccount handles POST /api/v1/accounts/{id}/flag
func (h *ControlHandler) FlagAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "account id is required")
		return
	}

	var req dto.FlagAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	if err := h.svc.FlagAccount(r.Context(), parseID(id), req.Reason); err != nil {
		writeError(w, http.StatusInternalServerError, "flag failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "flagged": true})
}

// UnflagAccount handles DELETE /api/v1/accounts/{id}/flag
func (h *ControlHandler) UnflagAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "account id is required")
		return
	}

	if err := h.svc.UnflagAccount(r.Context(), parseID(id)); err != nil {
		writeError(w, http.StatusInternalServerError, "unflag failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "flagged": false})
}

// StartGenerator handles POST /api/v1/generator/start
func (h *ControlHandler) StartGenerator(w http.ResponseWriter, r *http.Request) {
	var req dto.StartGeneratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.svc.StartGenerator(r.Context(), req.TargetTPS); err != nil {
		switch {
		case errors.Is(err, fraud.ErrRateOutOfRange):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, fraud.ErrGeneratorRunning):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.NewGeneratorStatusResponse(h.svc.GeneratorStatus()))
}

// StopGenerator handles POST /api/v1/generator/stop
func (h *ControlHandler) StopGenerator(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.StopGenerator(); err != nil {
		if errors.Is(err, fraud.ErrGeneratorNotRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dto.NewGeneratorStatusResponse(h.svc.GeneratorStatus()))
}

// GeneratorStatus handles GET /api/v1/generator/status
func (h *ControlHandler) GeneratorStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.NewGeneratorStatusResponse(h.svc.GeneratorStatus()))
}

// Dashboard handles GET /api/v1/stats
func (h *ControlHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// TransactionStats handles GET /api/v1/stats/transactions
func (h *ControlHandler) TransactionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.TransactionStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// UserStats handles GET /api/v1/stats/users
func (h *ControlHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.UserStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Performance handles GET /api/v1/performance
func (h *ControlHandler) Performance(w http.ResponseWriter, r *http.Request) {
	window := 1
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = n
	}

	all, window := h.svc.Performance(window)
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	out := dto.PerformanceResponse{WindowMinutes: window}
	for _, name := range names {
		out.Streams = append(out.Streams, dto.NewStreamStats(name, all[name]))
	}
	writeJSON(w, http.StatusOK, out)
}

// InspectIndexes handles GET /api/v1/indexes
func (h *ControlHandler) InspectIndexes(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.InspectIndexes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "index inspection failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// CreateFraudIndexes handles POST /api/v1/indexes/fraud
func (h *ControlHandler) CreateFraudIndexes(w http.ResponseWriter, r *http.Request) {
	results := h.svc.CreateFraudIndexes(r.Context())

	out := make(map[string]string, len(results))
	for name, err := range results {
		if err != nil {
			out[name] = err.Error()
		} else {
			out[name] = "created"
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Seed handles POST /api/v1/seed
func (h *ControlHandler) Seed(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Seed(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "seed failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

// parseID keeps numeric-looking ids numeric; graph providers assign int64
// ids while seeded datasets often use strings
func parseID(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
