package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/koorier/onboarding-api/internal/config"
	"github.com/koorier/onboarding-api/internal/handler"
	mw "github.com/koorier/onboarding-api/internal/middleware"
	"github.com/koorier/onboarding-api/internal/payment"
	"github.com/koorier/onboarding-api/internal/session"
	"github.com/koorier/onboarding-api/internal/upstream"
	"github.com/koorier/onboarding-api/internal/wizard"
	"github.com/koorier/onboarding-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Wizard creation and the gateway return leg are public; everything else is
// scoped to a wizard token.
func New(cfg *config.Config, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	fee, err := decimal.NewFromString(cfg.OnboardingFee)
	if err != nil {
		log.Fatalf("invalid ONBOARDING_FEE %q: %v", cfg.OnboardingFee, err)
	}

	registry := wizard.NewRegistry()
	client := upstream.New(cfg.APIBaseURL, cfg.PublicAPIBaseURL)
	sessions := session.NewStore(cfg.SessionTTL)
	orch := payment.NewOrchestrator(client, sessions, fee, cfg.Currency, cfg.ReturnBaseURL)

	wizardHandler := handler.NewWizardHandler(registry, client, hub, cfg.JWTSecret, fee, cfg.Currency)
	paymentHandler := handler.NewPaymentHandler(registry, orch, hub, cfg.JWTSecret, cfg.Currency)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	r.Post("/onboarding", wizardHandler.Create)

	// Gateway redirect back; carries no Authorization header.
	r.Get("/onboarding/return", paymentHandler.Return)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/onboarding/{wid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require the wizard token for this wizard)
	r.Route("/onboarding/{wid}", func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireWizard)

		wizardHandler.RegisterRoutes(r)
		paymentHandler.RegisterRoutes(r)
	})

	log.Println("Router initialized with all handlers")
	return r
}
