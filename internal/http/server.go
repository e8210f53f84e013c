// Package http exposes the household ledger as a JSON API: household
// creation and joining, record mutations, and the per-user allocation
// summary.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/household"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// appMetrics tracks application-level counters exposed on /metrics.
type appMetrics struct {
	totalRequests  int64
	totalMutations int64
	cacheHits      int64
	cacheMisses    int64
	startedAt      time.Time
}

type Server struct {
	http.Server

	logger       *log.Logger
	store        storage.Store
	ledgerSvc    *ledger.Service
	householdSvc *household.Service

	rateLimiter *rateLimiter
	security    *securityMetrics
	metrics     *appMetrics

	// summaryCache keys by household id; any mutation for that household
	// invalidates the entry.
	summaryCache *cache.LRUCache[summaryResponse]
	cacheManager *cache.Manager

	// snapshot is the server's current ledger view, threaded through the
	// mutation service: operations read it and replace it with the returned
	// value only after the store acknowledged the write.
	mu           sync.RWMutex
	snapshot     ledger.Ledger
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store storage.Store, ledgerSvc *ledger.Service, householdSvc *household.Service, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:       logger.WithComponent(log.ComponentHTTP),
		store:        store,
		ledgerSvc:    ledgerSvc,
		householdSvc: householdSvc,
		rateLimiter:  newRateLimiter(),
		security:     &securityMetrics{},
		metrics:      &appMetrics{startedAt: time.Now()},
		summaryCache: cache.NewLRUCache[summaryResponse](100, 5*time.Minute), // Max 100 entries, 5min TTL
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/households", s.withMiddleware(s.handleCreateHousehold))
	mux.HandleFunc("POST /api/households/join", s.withMiddleware(s.handleJoinHousehold))
	mux.HandleFunc("GET /api/households/current", s.withMiddleware(s.handleCurrentHousehold))

	mux.HandleFunc("GET /api/ledger", s.withMiddleware(s.handleGetLedger))
	mux.HandleFunc("GET /api/summary", s.withMiddleware(s.handleGetSummary))

	mux.HandleFunc("POST /api/users", s.withMiddleware(s.handleCreateUser))
	mux.HandleFunc("POST /api/incomes", s.withMiddleware(s.handleCreateIncome))
	mux.HandleFunc("POST /api/expenses", s.withMiddleware(s.handleCreateExpense))
	mux.HandleFunc("POST /api/goals", s.withMiddleware(s.handleCreateGoal))
	mux.HandleFunc("PUT /api/goals/{id}", s.withMiddleware(s.handleUpdateGoal))

	return s
}

// Snapshot returns the server's current ledger view.
func (s *Server) Snapshot() ledger.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Server) setSnapshot(led ledger.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = led
}

// reloadSnapshot replaces the server's view with the store contents for the
// given household. Used after selecting or joining a household.
func (s *Server) reloadSnapshot(ctx context.Context, householdID string) error {
	led, err := ledger.LoadLedger(ctx, s.store, householdID)
	if err != nil {
		return err
	}
	s.setSnapshot(led)
	return nil
}

func (s *Server) invalidateSummary(householdID string) {
	s.summaryCache.Delete(householdID)
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&s.metrics.totalRequests, 1)

		clientIP := extractClientIP(r)
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, requestID)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, s.security) {
			s.logger.WarnContext(ctx, "suspicious request",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}

		// Rate limit mutations only; reads are cheap and cached.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.security) {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.logger.InfoContext(ctx, "request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, duration.Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

type ctxKeyRequestID struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// currentHouseholdID is a convenience for cache keys and scoping checks.
func (s *Server) currentHouseholdID() string {
	if h := s.ledgerSvc.CurrentHousehold(); h != nil {
		return h.ID
	}
	return ""
}
