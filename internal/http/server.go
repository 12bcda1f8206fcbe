package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"raisin/internal/cache"
	"raisin/internal/core"
	applog "raisin/internal/log"
	"raisin/internal/services"
	"raisin/internal/storage"
)

type Server struct {
	http.Server
	donations   *services.DonationService
	reconcile   *services.ReconcileService
	storage     *storage.SQLiteRepository
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	structured  *applog.StructuredLogger

	// LRU cache for fundraiser overviews with eviction policy
	overviewCache *cache.LRUCache[fundraiserOverview]

	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, donations *services.DonationService, reconcile *services.ReconcileService, repo *storage.SQLiteRepository) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		donations:     donations,
		reconcile:     reconcile,
		storage:       repo,
		rateLimiter:   newRateLimiter(),
		metrics:       &securityMetrics{},
		structured:    applog.NewStructuredLogger(applog.New(applog.DefaultConfig())),
		overviewCache: cache.NewLRUCache[fundraiserOverview](100, 30*time.Second),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.overviewCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /fundraisers/{id}", s.withSecurityHeaders(s.handleGetFundraiser))
	mux.HandleFunc("POST /fundraisers", s.withSecurityHeaders(s.handleCreateFundraiser))
	mux.HandleFunc("POST /fundraisers/{id}/donations", s.withSecurityHeaders(s.handleCreateDonation))
	mux.HandleFunc("GET /donations/{id}/gift-aid", s.withSecurityHeaders(s.handleGiftAid))
	mux.HandleFunc("POST /admin/donations/{id}/edits", s.withSecurityHeaders(s.handleEditDonation))
	mux.HandleFunc("POST /admin/payments/{id}/edits", s.withSecurityHeaders(s.handleEditPayment))
	mux.HandleFunc("POST /admin/payments/{id}/refunds", s.withSecurityHeaders(s.handleRefundPayment))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}

		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.structured.LogHTTPStart(ctx, r, clientIP)

		if detectSuspiciousRequest(r, s.metrics) {
			slog.WarnContext(ctx, "Suspicious request detected",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
		}

		// Apply rate limiting to mutating requests
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Create a custom response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.storage != nil {
		if err := s.storage.Ping(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) overviewCacheKey(fundraiserID int64) string {
	return strconv.FormatInt(fundraiserID, 10)
}

func (s *Server) invalidateOverview(fundraiserID int64) {
	s.overviewCache.Delete(s.overviewCacheKey(fundraiserID))
}

// getOverview returns the fundraiser overview, from cache when fresh.
func (s *Server) getOverview(ctx context.Context, fundraiserID int64) (fundraiserOverview, error) {
	key := s.overviewCacheKey(fundraiserID)

	if data, found := s.overviewCache.Get(key); found {
		slog.DebugContext(ctx, "Overview cache hit", "fundraiser_id", fundraiserID)
		return data, nil
	}

	f, err := s.storage.GetFundraiser(ctx, fundraiserID)
	if err != nil {
		return fundraiserOverview{}, err
	}

	ov := buildFundraiserOverview(f)
	s.overviewCache.Set(key, ov)
	slog.DebugContext(ctx, "Overview cached",
		"fundraiser_id", fundraiserID,
		"total_raised_minor", f.TotalRaised,
		"donations_count", f.DonationsCount)
	return ov, nil
}

func buildFundraiserOverview(f core.Fundraiser) fundraiserOverview {
	rate := f.MatchFundingRate
	return fundraiserOverview{
		ID:                           f.ID,
		Name:                         f.Name,
		Currency:                     f.Currency,
		Goal:                         f.Goal,
		GoalFormatted:                core.FormatAmountShort(f.Currency, &f.Goal),
		TotalRaised:                  f.TotalRaised,
		TotalRaisedFormatted:         core.FormatAmount(f.Currency, &f.TotalRaised),
		DonationsCount:               f.DonationsCount,
		PeopleProtected:              core.MoneyToPeopleProtected(f.Currency, f.TotalRaised),
		MatchFundingRate:             core.FormatPercent(&rate),
		MatchFundingRemaining:        f.MatchFundingRemaining,
		MatchFundingRemainingDisplay: core.FormatAmount(f.Currency, f.MatchFundingRemaining),
		MatchFundingPerDonationLimit: f.MatchFundingPerDonationLimit,
		RecurringDonationsTo:         core.FormatTimestamp(f.RecurringDonationsTo),
	}
}
