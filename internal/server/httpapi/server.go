package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"casesync/internal/logging"
	"casesync/internal/server/config"
)

// Server is the HTTP front of the sync service.
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

// NewServer wires the handlers and middleware into an http.Server bound to
// cfg.EndpointAddr.
func NewServer(cfg *config.Config, logger logging.Logger, sync Syncer, users Authenticator, dictionaries DictionaryRegistry) *Server {
	log := logger.With("module", "httpapi")

	h := &handlers{
		sync:         sync,
		users:        users,
		dictionaries: dictionaries,
		logger:       log,
	}

	authorized := AuthMiddleware(log, []byte(cfg.SecretKey))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("POST /api/v1/auth/login", h.login)
	mux.Handle("GET /api/v1/dictionaries", authorized(http.HandlerFunc(h.listDictionaries)))
	mux.Handle("POST /api/v1/dictionaries", authorized(http.HandlerFunc(h.saveDictionary)))
	mux.Handle("POST /api/v1/dictionaries/{dict}/cases", authorized(http.HandlerFunc(h.push)))
	mux.Handle("GET /api/v1/dictionaries/{dict}/cases", authorized(http.HandlerFunc(h.pull)))
	mux.Handle("GET /api/v1/dictionaries/{dict}/syncs/latest", authorized(http.HandlerFunc(h.watermark)))

	root := RecoveryMiddleware(log)(LoggingMiddleware(log)(mux))

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.EndpointAddr,
			Handler:           root,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
