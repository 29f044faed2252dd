package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"arenda/internal/config"
	"arenda/internal/export"
	"arenda/internal/logging"
	"arenda/internal/metrics"
	"arenda/internal/resp"
	"arenda/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPServer exposes the public JSON API. Every response body is the
// errno envelope; transport-level failures (rate limit, panics) are the
// only places a non-200 status carries meaning.
type HTTPServer struct {
	cfg     config.APIConfig
	users   *service.UserService
	houses  *service.HouseService
	orders  *service.OrderService
	export  *export.OrderExporter
	limiter *clientLimiter
	logger  zerolog.Logger
	server  *http.Server
}

func NewHTTPServer(cfg config.APIConfig, users *service.UserService, houses *service.HouseService, orders *service.OrderService, exporter *export.OrderExporter, logger *zerolog.Logger) *HTTPServer {
	l := logging.Component(logger, "http-api")

	srv := &HTTPServer{
		cfg:     cfg,
		users:   users,
		houses:  houses,
		orders:  orders,
		export:  exporter,
		limiter: newClientLimiter(cfg.RateLimit),
		logger:  l,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/areas", srv.handleAreas)
	mux.HandleFunc("GET /api/v1/houses", srv.handleSearchHouses)
	mux.HandleFunc("POST /api/v1/houses", srv.handleCreateHouse)
	mux.HandleFunc("GET /api/v1/houses/index", srv.handleHouseIndex)
	mux.HandleFunc("GET /api/v1/houses/{id}", srv.handleHouseDetail)
	mux.HandleFunc("POST /api/v1/houses/{id}/images", srv.handleHouseImage)
	mux.HandleFunc("GET /api/v1/user/houses", srv.handleUserHouses)

	mux.HandleFunc("POST /api/v1/orders", srv.handleSubmitOrder)
	mux.HandleFunc("GET /api/v1/orders", srv.handleListOrders)
	mux.HandleFunc("GET /api/v1/orders/commit/{task_id}", srv.handlePollCommit)
	mux.HandleFunc("GET /api/v1/orders/export", srv.handleExportOrders)
	mux.HandleFunc("PUT /api/v1/orders/{id}/status", srv.handleOrderStatus)
	mux.HandleFunc("PUT /api/v1/orders/{id}/comment", srv.handleOrderComment)

	mux.HandleFunc("GET /api/v1/user", srv.handleProfile)
	mux.HandleFunc("PUT /api/v1/user/name", srv.handleSetName)
	mux.HandleFunc("PUT /api/v1/user/avatar", srv.handleSetAvatar)
	mux.HandleFunc("POST /api/v1/users", srv.handleRegister)
	mux.HandleFunc("POST /api/v1/sessions", srv.handleLogin)
	mux.HandleFunc("GET /api/v1/sessions", srv.handleCheckSession)
	mux.HandleFunc("DELETE /api/v1/sessions", srv.handleLogout)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := srv.loggingMiddleware(srv.rateLimitMiddleware(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the full middleware chain, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// clientIdentity keys the login throttle and the rate limiter by the
// request source address.
func clientIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// sessionToken extracts the token from the X-Session-Token header, with
// a Bearer Authorization fallback.
func sessionToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get("X-Session-Token")); token != "" {
		return token
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

type clientLimiter struct {
	cfg      config.APIRateLimitConfig
	limiters sync.Map // map[string]*rate.Limiter
}

func newClientLimiter(cfg config.APIRateLimitConfig) *clientLimiter {
	return &clientLimiter{cfg: cfg}
}

func (l *clientLimiter) allow(key string) bool {
	if l.cfg.RPS <= 0 {
		return true
	}
	return l.get(key).Allow()
}

func (l *clientLimiter) get(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIdentity(r)) {
			writeEnvelopeStatus(w, http.StatusTooManyRequests, resp.Error(resp.CodeReqErr, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		metrics.IncHTTP(r.URL.Path)
		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
