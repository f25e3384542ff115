package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"bilancio/internal/backend"
	"bilancio/internal/cache"
	"bilancio/internal/engine"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
)

// Options tune server construction; zero values fall back to defaults.
type Options struct {
	CacheSize          int
	CacheTTL           time.Duration
	RateLimitPerMinute int
}

// appMetrics tracks application counters exposed on /metrics.
type appMetrics struct {
	uptime       time.Time
	totalEntries int64
	cacheHits    int64
	cacheMisses  int64
}

// Server wires the ledger backend and the analytics engine behind the
// JSON API, with tracing, rate limiting and security headers around it.
type Server struct {
	http.Server

	backend          backend.Backend
	engine           *engine.Engine
	logger           *log.Logger
	structuredLogger *log.StructuredLogger

	traceMiddleware  *trace.Middleware
	securityHeaders  *security.HeadersMiddleware
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter

	// Cached JSON bodies of read endpoints. The epoch is part of every
	// key; bumping it after a mutation invalidates all cached reads.
	responseCache *cache.LRUCache[[]byte]
	cacheEpoch    atomic.Int64
	cacheManager  *cache.Manager

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, b backend.Backend, logger *log.Logger, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 60
	}

	mux := http.NewServeMux()

	detector := security.NewDetector()
	structured := log.NewStructuredLogger(logger)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		backend:          b,
		engine:           engine.New(b, b),
		logger:           logger,
		structuredLogger: structured,

		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, structured),
		securityHeaders:  security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		securityDetector: detector,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),

		responseCache: cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL),
		cacheManager:  cache.NewManager(),

		appMetrics: appMetrics{uptime: time.Now()},
	}

	s.cacheManager.Register(s.responseCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/api/entries", s.handleEntries)
	mux.HandleFunc("/api/entries/", s.handleEntryByID)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/series", s.handleSeries)
	mux.HandleFunc("/api/forecast", s.handleForecast)
	mux.HandleFunc("/api/balance", s.handleBalance)
	mux.HandleFunc("/api/outlook", s.handleOutlook)

	// Middleware onion, innermost first.
	var handler http.Handler = mux
	handler = s.securityHeaders.Middleware(handler)
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, rateLimitedResponse)(handler)
	handler = s.suspiciousRequestMiddleware(handler)
	handler = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = log.Middleware(logger)(handler)
	s.Server.Handler = handler

	return s
}

// rateLimitedResponse writes the JSON variant of a 429.
func rateLimitedResponse(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Header("Retry-After", "60").
		Error("rate limit exceeded, try again later").
		Write(w)
}

// suspiciousRequestMiddleware flags request patterns the detector considers
// hostile. Detection is log-only; blocking stays with the rate limiter.
func (s *Server) suspiciousRequestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			s.logger.WarnContext(r.Context(), "Suspicious request detected",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// cacheKey builds the response cache key for a read request.
func (s *Server) cacheKey(r *http.Request) string {
	return strconv.FormatInt(s.cacheEpoch.Load(), 10) + "|" + r.URL.Path + "?" + r.URL.RawQuery
}

// invalidateCache drops every cached read. Mutations are rare next to
// reads, so a full epoch bump beats tracking which ranges an entry
// touches.
func (s *Server) invalidateCache() {
	s.cacheEpoch.Add(1)
}

// cachedJSON serves a read endpoint through the response cache. The
// compute callback runs only on a miss; its error responses are never
// cached.
func (s *Server) cachedJSON(w http.ResponseWriter, r *http.Request, compute func() (any, *JSONResponseBuilder)) {
	key := s.cacheKey(r)
	if body, ok := s.responseCache.Get(key); ok {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Cache", "hit")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			s.logger.WarnContext(r.Context(), "Failed to write cached response", log.FieldError, err)
		}
		return
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	payload, errResp := compute()
	if errResp != nil {
		errResp.Write(w)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to encode response payload", log.FieldError, err)
		InternalServerError("internal error").Write(w)
		return
	}
	body = append(body, '\n')
	s.responseCache.Set(key, body)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Cache", "miss")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.WarnContext(r.Context(), "Failed to write response", log.FieldError, err)
	}
}
