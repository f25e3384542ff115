package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	NewJSONResponse().Payload(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	// The balance read is the cheapest query that exercises the backend.
	if _, err := s.backend.GetBalance(ctx); err != nil {
		checks["backend"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}

	checks["cache"] = map[string]any{
		"response_entries": s.responseCache.Size(),
		"status":           "ok",
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Payload(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	totalEntries := atomic.LoadInt64(&s.appMetrics.totalEntries)
	cacheHits := atomic.LoadInt64(&s.appMetrics.cacheHits)
	cacheMisses := atomic.LoadInt64(&s.appMetrics.cacheMisses)
	uptime := time.Since(s.appMetrics.uptime)

	responseCacheSize := s.responseCache.Size()
	activeClients := s.rateLimiter.ActiveClients()

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP entries_total Total number of ledger entries created\n")
	fmt.Fprintf(w, "# TYPE entries_total counter\n")
	fmt.Fprintf(w, "entries_total %d\n\n", totalEntries)

	fmt.Fprintf(w, "# HELP cache_hits_total Total cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total %d\n\n", cacheHits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total %d\n\n", cacheMisses)

	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"responses\"} %d\n\n", responseCacheSize)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", activeClients)

	fmt.Fprintf(w, "# HELP average_response_time_microseconds Average HTTP response time\n")
	fmt.Fprintf(w, "# TYPE average_response_time_microseconds gauge\n")
	fmt.Fprintf(w, "average_response_time_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", uptime.Seconds())
}

// handleEntries serves the entry collection: POST creates, GET lists.
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateEntry(w, r)
	case http.MethodGet:
		s.handleListEntries(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := DecodeEntryPayload(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	created, err := s.backend.AddEntry(r.Context(), entry)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Entry rejected",
			log.FieldError, err,
			log.FieldOperation, log.OpCreate)
		DomainError(err).Write(w)
		return
	}

	atomic.AddInt64(&s.appMetrics.totalEntries, 1)
	s.invalidateCache()
	s.structuredLogger.LogEntryCreated(r.Context(), created.ID, created.Amount.Cents, created.Category, created.Date.Format("2006-01-02"))

	NewJSONResponse().Status(http.StatusCreated).Payload(created).Write(w)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	s.cachedJSON(w, r, func() (any, *JSONResponseBuilder) {
		query := r.URL.Query()

		var (
			entries []core.Entry
			err     error
		)
		if query.Get("from") == "" && query.Get("to") == "" {
			entries, err = s.backend.ListEntries(r.Context())
		} else {
			var rng core.PeriodRange
			rng, err = ParsePeriodRange(query, time.Now())
			if err != nil {
				return nil, DomainError(err)
			}
			entries, err = s.backend.ListEntriesInRange(r.Context(), rng)
		}
		if err != nil {
			return nil, DomainError(err)
		}
		if entries == nil {
			entries = []core.Entry{}
		}
		return entries, nil
	})
}

// handleEntryByID serves one entry: GET reads, PUT replaces, DELETE removes.
func (s *Server) handleEntryByID(w http.ResponseWriter, r *http.Request) {
	id, err := ParseEntryID(r.URL.Path, "/api/entries/")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetEntry(w, r, id)
	case http.MethodPut:
		s.handleUpdateEntry(w, r, id)
	case http.MethodDelete:
		s.handleDeleteEntry(w, r, id)
	default:
		MethodNotAllowedError("GET, PUT, DELETE").Write(w)
	}
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request, id int64) {
	entry, err := s.backend.GetEntry(r.Context(), id)
	if err != nil {
		DomainError(err).Write(w)
		return
	}
	NewJSONResponse().Payload(entry).Write(w)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request, id int64) {
	entry, err := DecodeEntryPayload(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	// The path is authoritative for the id; the body may omit it.
	entry.ID = id

	updated, err := s.backend.UpdateEntry(r.Context(), entry)
	if err != nil {
		DomainError(err).Write(w)
		return
	}

	s.invalidateCache()
	s.logger.InfoContext(r.Context(), "Entry updated",
		log.FieldEntryID, updated.ID,
		log.FieldCategory, updated.Category,
		log.FieldOperation, log.OpUpdate)

	NewJSONResponse().Payload(updated).Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.backend.DeleteEntry(r.Context(), id); err != nil {
		DomainError(err).Write(w)
		return
	}

	s.invalidateCache()
	s.logger.InfoContext(r.Context(), "Entry deleted",
		log.FieldEntryID, id,
		log.FieldOperation, log.OpDelete)

	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
