package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"transaction-engine/internal/auth"
	"transaction-engine/internal/config"
	"transaction-engine/internal/gateway"
	"transaction-engine/internal/handler"
	"transaction-engine/internal/idempotency"
	"transaction-engine/internal/repository"
	"transaction-engine/internal/service"
)

// Server represents the HTTP server
type Server struct {
	router  *mux.Router
	server  *http.Server
	db      *sql.DB
	breaker *gateway.Breaker
	logger  *slog.Logger
	port    string
}

type options struct {
	cache   idempotency.Cache
	gateway gateway.Gateway
}

type Option func(*options)

// WithCache enables the idempotency replay cache.
func WithCache(cache idempotency.Cache) Option {
	return func(o *options) { o.cache = cache }
}

// WithGateway replaces the simulated payment network. It is still called
// through the breaker.
func WithGateway(gw gateway.Gateway) Option {
	return func(o *options) { o.gateway = gw }
}

// NewServer wires the engine over db. The caller owns db and closes it after
// Stop.
func NewServer(cfg *config.Config, db *sql.DB, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{cache: idempotency.NopCache{}}
	for _, opt := range opts {
		opt(&o)
	}

	if o.gateway == nil {
		outcome, err := gateway.ParseOutcome(cfg.GatewayMode)
		if err != nil {
			return nil, err
		}
		o.gateway = gateway.NewSimulated(outcome, cfg.GatewayLatency)
	}
	breaker := gateway.NewBreaker(o.gateway, gateway.DefaultBreakerConfig(cfg.GatewayTimeout), logger)

	// Initialize store (Unit of Work)
	store := repository.NewStore(db, logger)
	authenticator := auth.NewJWTAuthenticator(cfg.JWTSecret, auth.Issuer)

	// Initialize services
	accountService := service.NewAccountService(store, logger)
	transactionService := service.NewTransactionService(store, breaker, logger, service.WithCache(o.cache))

	// Initialize handlers
	accountHandler := handler.NewAccountHandler(accountService, authenticator, logger)
	transactionHandler := handler.NewTransactionHandler(transactionService, authenticator, logger)

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	router.HandleFunc("/transactions", transactionHandler.Execute).Methods(http.MethodPost)
	router.HandleFunc("/accounts/{account_number}", accountHandler.GetAccount).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{account_number}/transactions", accountHandler.ListTransactions).Methods(http.MethodGet)

	s := &Server{
		router:  router,
		db:      db,
		breaker: breaker,
		logger:  logger,
	}
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	return s, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"gateway":   s.breaker.State(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create response wrapper to capture status code
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start listens on port and serves in the background. Port "0" picks a free
// port and the chosen one is returned.
func (s *Server) Start(port string) (string, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed to start", "error", err)
		}
	}()

	return s.port, nil
}

// Stop drains in-flight requests. The database handle is left open.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetBaseURL returns the base URL for the server
func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// StartServer builds and starts a server with the given configuration
func StartServer(cfg *config.Config, db *sql.DB, opts ...Option) (*Server, string, error) {
	server, err := NewServer(cfg, db, NewLogger(cfg), opts...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build server: %w", err)
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		return nil, "", err
	}

	return server, port, nil
}

// NewLogger discards output when the server runs on an ephemeral port, as
// the test suites do.
func NewLogger(cfg *config.Config) *slog.Logger {
	if cfg.ServerPort == "0" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
