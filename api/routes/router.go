package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/geodirectory-backend/api/controllers"
	"github.com/angelmondragon/geodirectory-backend/api/middleware"
	"github.com/angelmondragon/geodirectory-backend/internal/auth"
	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	"github.com/angelmondragon/geodirectory-backend/internal/moderation"
	"github.com/angelmondragon/geodirectory-backend/pkg/config"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/metrics"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	rateLimiter middleware.FixedWindowStore,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	authService auth.Service,
	registerService auth.RegisterService,
	listingService listings.Service,
	moderationService moderation.Service,
	userService moderation.UserService,
	categoryRepo controllers.CategoryReader,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.Auth.AllowedOrigins()),
	)

	loginPolicy := middleware.AuthRateLimitPolicy{
		Name:       "login",
		Window:     cfg.AuthRateLimit.LoginWindow,
		IPLimit:    cfg.AuthRateLimit.LoginIPLimit,
		EmailLimit: cfg.AuthRateLimit.LoginEmailLimit,
	}
	registerPolicy := middleware.AuthRateLimitPolicy{
		Name:       "register",
		Window:     cfg.AuthRateLimit.RegisterWindow,
		IPLimit:    cfg.AuthRateLimit.RegisterIPLimit,
		EmailLimit: cfg.AuthRateLimit.RegisterEmailLimit,
	}
	formLimits := controllers.ListingFormLimits{
		MaxBodyBytes:    cfg.Assets.MaxUploadBytes(),
		MaxGalleryFiles: cfg.Assets.MaxGalleryFiles,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, rateLimiter, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, rateLimiter, logg)).Post("/register", controllers.AuthRegister(registerService, authService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", controllers.ListCategories(categoryRepo, logg))
		r.Get("/listing-types", controllers.ListListingTypes(categoryRepo, logg))

		r.Route("/listings", func(r chi.Router) {
			r.With(middleware.RateLimit("map", cfg.MapRateLimit.Window, cfg.MapRateLimit.IPLimit, rateLimiter, logg)).
				Get("/map", controllers.ListingsMap(listingService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, logg))
				r.Post("/", controllers.ListingCreate(listingService, formLimits, logg))
				r.Get("/mine", controllers.ListingsMine(listingService, logg))
				r.Get("/{listingId}/edit", controllers.ListingForEdit(listingService, logg))
				r.Put("/{listingId}", controllers.ListingUpdate(listingService, formLimits, logg))
				r.Delete("/{listingId}", controllers.ListingDelete(listingService, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Get("/listings/pending", controllers.ModerationQueue(moderationService, logg))
		r.Patch("/listings/{listingId}/status", controllers.ModerationChangeStatus(moderationService, logg))
		if moderationService != nil {
			r.Post("/listings/{listingId}/publish", controllers.ModerationTransition(moderationService.Publish, logg))
			r.Post("/listings/{listingId}/reject", controllers.ModerationTransition(moderationService.Reject, logg))
			r.Post("/listings/{listingId}/unpublish", controllers.ModerationTransition(moderationService.Unpublish, logg))
		}
		r.Get("/users", controllers.AdminListUsers(userService, logg))
		r.Delete("/users/{userId}", controllers.AdminDeleteUser(userService, logg))
	})

	return r
}
