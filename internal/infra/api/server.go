package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"iran-payment/internal/domain"
	"iran-payment/internal/usecase"
)

// Pinger reports backing-store liveness for the health endpoint. Satisfied by
// the redis client; nil-able.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the merchant API and the bank callback route to the payment
// orchestrator.
type Server struct {
	orc   *usecase.Orchestrator
	auth  *AuthManager
	ready Pinger
	log   *zerolog.Logger
}

func NewServer(orc *usecase.Orchestrator, auth *AuthManager, ready Pinger, logger *zerolog.Logger) *Server {
	return &Server{orc: orc, auth: auth, ready: ready, log: logger}
}

// Router builds the chi mux: merchant endpoints behind bearer auth, the
// callback route open (the bank redirects the user's browser there), plus
// health and metrics.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Post("/", s.handleInitiate)
		r.Get("/{code}", s.handleGet)
	})

	r.Get("/payment/callback", s.handleCallback)
	r.Post("/payment/callback", s.handleCallback)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.Ping(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// statusFor maps the error taxonomy onto HTTP statuses for merchant callers.
func statusFor(err error) int {
	var gerr *domain.GatewayError
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTransactionAlreadyFinalized),
		errors.Is(err, domain.ErrAlreadyPurchased),
		errors.Is(err, domain.ErrLockNotAcquired):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidData),
		errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrCommunication):
		return http.StatusGatewayTimeout
	case errors.As(err, &gerr), errors.Is(err, domain.ErrUnexpectedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
