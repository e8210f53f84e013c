package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.startedAt).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if _, err := s.store.ListUsers(ctx, ""); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["cache"] = map[string]any{
		"summary_entries": s.summaryCache.Size(),
		"status":          "ok",
	}

	// The last mutation warning is surfaced here so a UI polling readiness
	// can show it, mirroring the dashboard's error banner.
	response := map[string]any{
		"status":     status,
		"timestamp":  time.Now().Format(time.RFC3339),
		"checks":     checks,
		"last_error": s.ledgerSvc.LastError(),
	}

	writeJSON(w, httpStatus, response)
}

// handleMetrics provides application metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	totalRequests := atomic.LoadInt64(&s.metrics.totalRequests)
	totalMutations := atomic.LoadInt64(&s.metrics.totalMutations)
	cacheHits := atomic.LoadInt64(&s.metrics.cacheHits)
	cacheMisses := atomic.LoadInt64(&s.metrics.cacheMisses)
	rateLimitHits := atomic.LoadInt64(&s.security.rateLimitHits)
	suspicious := atomic.LoadInt64(&s.security.suspiciousRequests)
	uptime := time.Since(s.metrics.startedAt)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", totalRequests)

	fmt.Fprintf(w, "# HELP ledger_mutations_total Total number of accepted ledger mutations\n")
	fmt.Fprintf(w, "# TYPE ledger_mutations_total counter\n")
	fmt.Fprintf(w, "ledger_mutations_total %d\n\n", totalMutations)

	fmt.Fprintf(w, "# HELP summary_cache_hits_total Total summary cache hits\n")
	fmt.Fprintf(w, "# TYPE summary_cache_hits_total counter\n")
	fmt.Fprintf(w, "summary_cache_hits_total %d\n\n", cacheHits)

	fmt.Fprintf(w, "# HELP summary_cache_misses_total Total summary cache misses\n")
	fmt.Fprintf(w, "# TYPE summary_cache_misses_total counter\n")
	fmt.Fprintf(w, "summary_cache_misses_total %d\n\n", cacheMisses)

	fmt.Fprintf(w, "# HELP summary_cache_entries Current summary cache entries\n")
	fmt.Fprintf(w, "# TYPE summary_cache_entries gauge\n")
	fmt.Fprintf(w, "summary_cache_entries %d\n\n", s.summaryCache.Size())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", suspicious)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", uptime.Seconds())
}

type createHouseholdRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateHousehold(w http.ResponseWriter, r *http.Request) {
	var req createHouseholdRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h, err := s.householdSvc.Create(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.ledgerSvc.SelectHousehold(h)
	if err := s.reloadSnapshot(r.Context(), h.ID); err != nil {
		s.logger.ErrorContext(r.Context(), "snapshot reload failed",
			log.FieldHouseholdID, h.ID,
			log.FieldError, err)
	}
	atomic.AddInt64(&s.metrics.totalMutations, 1)

	writeJSON(w, http.StatusCreated, toHouseholdJSON(h))
}

type joinHouseholdRequest struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
}

func (s *Server) handleJoinHousehold(w http.ResponseWriter, r *http.Request) {
	var req joinHouseholdRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h, err := s.householdSvc.Join(r.Context(), req.Code, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.ledgerSvc.SelectHousehold(h)
	if err := s.reloadSnapshot(r.Context(), h.ID); err != nil {
		s.logger.ErrorContext(r.Context(), "snapshot reload failed",
			log.FieldHouseholdID, h.ID,
			log.FieldError, err)
	}
	s.invalidateSummary(h.ID)
	atomic.AddInt64(&s.metrics.totalMutations, 1)

	writeJSON(w, http.StatusOK, toHouseholdJSON(h))
}

func (s *Server) handleCurrentHousehold(w http.ResponseWriter, r *http.Request) {
	h := s.ledgerSvc.CurrentHousehold()
	if h == nil {
		writeError(w, http.StatusNotFound, "no household selected")
		return
	}
	writeJSON(w, http.StatusOK, toHouseholdJSON(h))
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toLedgerJSON(s.Snapshot()))
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	key := s.currentHouseholdID()

	if cached, found := s.summaryCache.Get(key); found {
		atomic.AddInt64(&s.metrics.cacheHits, 1)
		writeJSON(w, http.StatusOK, cached)
		return
	}
	atomic.AddInt64(&s.metrics.cacheMisses, 1)

	led := s.Snapshot()
	summary := buildSummary(led)
	s.summaryCache.Set(key, summary)

	writeJSON(w, http.StatusOK, summary)
}

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u := core.User{
		Name:  sanitizeInput(req.Name),
		Email: sanitizeInput(req.Email),
	}

	next, err := s.ledgerSvc.AddUser(r.Context(), s.Snapshot(), u)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.afterMutation(next)

	writeJSON(w, http.StatusCreated, toUserJSON(next.Users[len(next.Users)-1]))
}

type createIncomeRequest struct {
	Title       string      `json:"title"`
	Amount      amountField `json:"amount"`
	UserID      string      `json:"user_id"`
	IsRecurring bool        `json:"is_recurring"`
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req createIncomeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := core.Income{
		Title:       sanitizeInput(req.Title),
		Amount:      float64(req.Amount),
		UserID:      req.UserID,
		IsRecurring: req.IsRecurring,
	}

	next, err := s.ledgerSvc.AddIncome(r.Context(), s.Snapshot(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.afterMutation(next)

	writeJSON(w, http.StatusCreated, toIncomeJSON(next.Incomes[len(next.Incomes)-1]))
}

type createExpenseRequest struct {
	Title        string      `json:"title"`
	Amount       amountField `json:"amount"`
	PayerID      string      `json:"payer_id"`
	IsShared     bool        `json:"is_shared"`
	Category     string      `json:"category"`
	LinkedGoalID string      `json:"linked_goal_id"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	e := core.Expense{
		Title:        sanitizeInput(req.Title),
		Amount:       float64(req.Amount),
		PayerID:      req.PayerID,
		IsShared:     req.IsShared,
		Category:     core.Category(req.Category),
		LinkedGoalID: req.LinkedGoalID,
	}

	next, err := s.ledgerSvc.AddExpense(r.Context(), s.Snapshot(), e)
	// A partial write still advanced the snapshot: the expense is durable
	// even when the goal funding step failed.
	s.afterMutation(next)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toExpenseJSON(next.Expenses[len(next.Expenses)-1]))
}

type createGoalRequest struct {
	Title               string      `json:"title"`
	TargetAmount        amountField `json:"target_amount"`
	CurrentAmount       amountField `json:"current_amount"`
	MonthlyContribution amountField `json:"monthly_contribution"`
	Deadline            string      `json:"deadline"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var deadline time.Time
	if req.Deadline != "" {
		parsed, err := time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid deadline, expected YYYY-MM-DD")
			return
		}
		deadline = parsed
	}

	g := core.Goal{
		Title:               sanitizeInput(req.Title),
		TargetAmount:        float64(req.TargetAmount),
		CurrentAmount:       float64(req.CurrentAmount),
		MonthlyContribution: float64(req.MonthlyContribution),
		Deadline:            deadline,
	}

	next, err := s.ledgerSvc.AddGoal(r.Context(), s.Snapshot(), g)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.afterMutation(next)

	writeJSON(w, http.StatusCreated, toGoalJSON(next.Goals[len(next.Goals)-1]))
}

type updateGoalRequest struct {
	CurrentAmount amountField `json:"current_amount"`
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateGoalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	next, err := s.ledgerSvc.UpdateGoal(r.Context(), s.Snapshot(), id, float64(req.CurrentAmount))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.afterMutation(next)

	for _, g := range next.Goals {
		if g.ID == id {
			writeJSON(w, http.StatusOK, toGoalJSON(g))
			return
		}
	}
	writeError(w, http.StatusNotFound, "goal not found")
}

// afterMutation installs the new snapshot and drops the stale summary.
func (s *Server) afterMutation(next ledger.Ledger) {
	s.setSnapshot(next)
	s.invalidateSummary(s.currentHouseholdID())
	atomic.AddInt64(&s.metrics.totalMutations, 1)
}
