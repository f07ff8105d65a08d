package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/socialfeed/backend/internal/metrics"
	"github.com/socialfeed/backend/internal/middleware"
	"github.com/socialfeed/backend/internal/social"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger        *slog.Logger
	Users         UserStore
	Sessions      SessionManager
	Pictures      PictureStore
	Relationships Relationships
	Likes         Likes
	Feed          Feed
	Decorator     *social.Decorator
	Metrics       *metrics.Metrics
	Limiter       middleware.RateLimiter
	Health        HealthHandler
	CORSOrigins   []string
}

// NewRouter wires every endpoint. Auth routes are rate limited; user and
// post routes require a bearer token and mutations are rate limited too.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authHandler := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Pictures: deps.Pictures, Decorator: deps.Decorator}
	users := UserHandler{Relationships: deps.Relationships, Decorator: deps.Decorator}
	posts := PostHandler{Feed: deps.Feed, Likes: deps.Likes, Pictures: deps.Pictures}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(chimw.Timeout(60 * time.Second))

	r.Get("/healthz", deps.Health.Handle)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Limiter, "auth"))
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Sessions))

		r.Get("/users/{id}", users.Get)
		r.Get("/users/{id}/friends", users.Friends)
		r.Get("/posts", posts.List)
		r.Get("/posts/{userId}/posts", posts.UserPosts)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.Limiter, "mutation"))
			r.Patch("/users/{id}/{friendId}", users.ToggleFriend)
			r.Post("/posts", posts.Create)
			r.Patch("/posts/{id}/like", posts.Like)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return otelhttp.NewHandler(c.Handler(r), "socialfeed.http",
		otelhttp.WithFilter(func(req *http.Request) bool { return req.URL.Path != "/healthz" }),
	)
}
