package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	accountsvc "github.com/leorifa93/desires-backend/internal/services/accounts"
	authsvc "github.com/leorifa93/desires-backend/internal/services/auth"
	decksvc "github.com/leorifa93/desires-backend/internal/services/deck"
	"github.com/leorifa93/desires-backend/internal/transport/http/handlers"
)

type Dependencies struct {
	JWTManager      *authsvc.JWTManager
	DeckManager     *decksvc.Manager
	AccountService  *accountsvc.Service
	LocationService handlers.LocationUpdater
	ProfileSource   handlers.ProfileSource
	Presigner       handlers.PhotoPresigner
	Logger          *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	quotaHandler := handlers.NewQuotaHandler(deps.AccountService)
	locationHandler := handlers.NewLocationHandler(deps.LocationService)
	deckHandler := handlers.NewDeckHandler(deps.DeckManager, deps.ProfileSource, deps.Logger)
	if deps.Presigner != nil {
		deckHandler.AttachPresigner(deps.Presigner)
	}

	authMW := AuthMiddleware(deps.JWTManager, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1", func(r chi.Router) {
		r.With(authMW).Get("/quota", quotaHandler.Handle)
		r.With(authMW).Put("/location", locationHandler.Update)

		r.Route("/deck/sessions", func(r chi.Router) {
			r.Use(authMW)
			r.Post("/", deckHandler.Start)
			r.Get("/{sessionID}", deckHandler.Snapshot)
			r.Post("/{sessionID}/swipes", deckHandler.Swipe)
			r.Post("/{sessionID}/refill", deckHandler.Refill)
			r.Delete("/{sessionID}", deckHandler.Close)
		})
	})
}
