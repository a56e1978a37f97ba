package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"abode/internal/credits"
	"abode/internal/httpapi/handlers"
	"abode/internal/httpkit"
	"abode/internal/pkg/logger"
	"abode/internal/pkg/middleware"
	"abode/internal/render"
)

type Deps struct {
	Service   *render.Service
	Ledger    credits.Ledger
	Keys      KeyResolver
	FarmToken string
	// Pool and RDB feed the deep health check; nil when running in-memory.
	Pool *pgxpool.Pool
	RDB  *redis.Client
	Log  *logger.Logger

	CORSAllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	if len(d.CORSAllowedOrigins) > 0 {
		r.Use(httpkit.CORS(httpkit.CORSOptions{
			AllowedOrigins:   d.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: false,
			MaxAgeSeconds:    600,
		}))
	}

	h := handlers.New(handlers.Deps{
		Service: d.Service,
		Ledger:  d.Ledger,
		Pool:    d.Pool,
		RDB:     d.RDB,
		Log:     log,
	})

	r.Get("/health", h.Health)

	// Public API, bearer-key authenticated.
	r.Route("/v1", func(r chi.Router) {
		r.Use(Auth(d.Keys))

		r.Post("/render", h.SubmitRender)
		r.Get("/render", h.ListRender)
		r.Get("/render/{jobId}", h.GetRender)
		r.Post("/render/{jobId}/cancel", h.CancelRender)

		r.Get("/credits", h.GetCredits)
	})

	// Render-farm callbacks, shared-token authenticated.
	r.Route("/internal/farm", func(r chi.Router) {
		r.Use(FarmAuth(d.FarmToken))

		r.Post("/jobs/{jobId}/start", h.FarmStart)
		r.Post("/jobs/{jobId}/progress", h.FarmProgress)
		r.Post("/jobs/{jobId}/complete", h.FarmComplete)
		r.Post("/jobs/{jobId}/fail", h.FarmFail)
	})

	return r
}
