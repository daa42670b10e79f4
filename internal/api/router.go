package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mcoot/shrubbery/internal/api/apierr"
	"github.com/mcoot/shrubbery/internal/api/handler"
	"github.com/mcoot/shrubbery/internal/metrics"
	shared "github.com/mcoot/shrubbery/internal/middleware"
	"github.com/mcoot/shrubbery/internal/services/player"
	"github.com/mcoot/shrubbery/internal/services/shrub"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger        *slog.Logger
	PlayerService *player.Service
	ShrubService  *shrub.Service
	// Store is pinged by the health endpoint (optional)
	Store handler.Pinger
	// Metrics enables request instrumentation and GET /metrics (optional)
	Metrics *metrics.Manager
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewNotFoundError())
	})

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.PlayerService)
	shrubHandler := handler.NewShrubHandler(cfg.ShrubService)
	healthHandler := handler.NewHealthHandler(cfg.Store, cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(shared.Recovery(cfg.Logger, cfg.Metrics, writePanic))
	api.Use(shared.Logging(cfg.Logger))
	api.Use(shared.Instrument(cfg.Metrics))

	// Player routes. Static segments are registered before /{id}.
	api.HandleFunc("/players", playerHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/players", playerHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/players/leaderboard", playerHandler.Leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/players/name/{name}", playerHandler.GetByName).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}", playerHandler.Get).Methods(http.MethodGet)

	// Shrub and vote routes
	api.HandleFunc("/shrubs", shrubHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/shrubs", shrubHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/shrubs/leaderboard", shrubHandler.Leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/shrubs/vote", shrubHandler.Vote).Methods(http.MethodPost)
	api.HandleFunc("/shrubs/vote", shrubHandler.RemoveVote).Methods(http.MethodDelete)
	api.HandleFunc("/shrubs/player/{shrubber}", shrubHandler.ListByPlayer).Methods(http.MethodGet)
	api.HandleFunc("/shrubs/{id}", shrubHandler.Get).Methods(http.MethodGet)

	// Health check endpoint
	api.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	return otelhttp.NewHandler(shared.CORS(r), "shrubbery.api")
}

// writePanic answers a recovered panic with the JSON error envelope
func writePanic(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}
