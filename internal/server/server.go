// Package server is the HTTP front-door: chi routing, session and CSRF
// middleware, per-endpoint rate limits, and the JSON handlers for chat,
// auth, credits, requests, suppliers, and interests.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/beroe-labs/abi/internal/auth"
	"github.com/beroe-labs/abi/internal/chat"
	"github.com/beroe-labs/abi/internal/interests"
	"github.com/beroe-labs/abi/internal/ledger"
	"github.com/beroe-labs/abi/internal/model"
	"github.com/beroe-labs/abi/internal/security"
	"github.com/beroe-labs/abi/pkg/intel"
)

// Cookie names.
const (
	sessionCookie = "abi_session"
	csrfCookie    = "abi_csrf"
	visitorCookie = "abi_visitor"
)

// inviteNoise bounds the timing noise added to invite validation.
const (
	inviteNoiseMin = 100 * time.Millisecond
	inviteNoiseMax = 300 * time.Millisecond
)

// Responder answers chat turns.
type Responder interface {
	Respond(ctx context.Context, req chat.Request) model.ResponseEnvelope
}

// Config tunes the front-door.
type Config struct {
	CookieSecret   string   `yaml:"cookie_secret" mapstructure:"cookie_secret"`
	SecureCookies  bool     `yaml:"secure_cookies" mapstructure:"secure_cookies"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Server bundles the services behind the HTTP surface.
type Server struct {
	cfg       Config
	auth      *auth.Service
	ledger    *ledger.Service
	interests *interests.Service
	chat      Responder
	intel     intel.Client
	limiter   *security.RateLimiter
}

// NewServer wires the front-door.
func NewServer(cfg Config, authSvc *auth.Service, ledgerSvc *ledger.Service, interestsSvc *interests.Service, responder Responder, intelClient intel.Client, limiter *security.RateLimiter) *Server {
	return &Server{
		cfg:       cfg,
		auth:      authSvc,
		ledger:    ledgerSvc,
		interests: interestsSvc,
		chat:      responder,
		intel:     intelClient,
		limiter:   limiter,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", security.CSRFHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.ensureVisitorCookie)
	r.Use(s.ensureCSRFCookie)
	r.Use(s.requireCSRF)

	r.Get("/health", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.With(s.rateLimit(security.PresetLogin)).Post("/login", s.handleLogin)
		r.With(s.rateLimit(security.PresetRegister)).Post("/register", s.handleRegister)
		r.With(s.rateLimit(security.PresetVerifyEmail)).Post("/verify-email", s.handleVerifyEmail)
		r.Post("/logout", s.handleLogout)
	})
	r.With(s.rateLimit(security.PresetInvite)).Post("/invites/validate", s.handleValidateInvite)
	r.With(s.rateLimit(security.PresetWaitlist)).Post("/waitlist", s.handleJoinWaitlist)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Post("/chat", s.handleChat)

		r.Route("/api", func(r chi.Router) {
			r.Get("/credits/balance", s.handleBalance)
			r.Get("/credits/transactions", s.handleTransactions)

			r.Route("/requests", func(r chi.Router) {
				r.Get("/", s.handleListRequests)
				r.Post("/", s.handleCreateRequest)
				r.Get("/{id}", s.handleGetRequest)
				r.Patch("/{id}", s.handleUpdateRequest)
			})

			r.Get("/suppliers/portfolio", s.handleSuppliers)

			r.Route("/interests", func(r chi.Router) {
				r.Get("/", s.handleListInterests)
				r.Post("/", s.handleAddInterest)
				r.Patch("/{id}", s.handleUpdateInterest)
				r.Delete("/{id}", s.handleRemoveInterest)
			})
		})
	})

	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"https://*.beroe.com"}
	}
	return s.cfg.AllowedOrigins
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
