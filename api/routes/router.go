package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis_rate/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/localstall/stallmarket-backend/api/controllers"
	"github.com/localstall/stallmarket-backend/api/middleware"
	"github.com/localstall/stallmarket-backend/internal/auth"
	"github.com/localstall/stallmarket-backend/internal/cart"
	"github.com/localstall/stallmarket-backend/internal/messages"
	"github.com/localstall/stallmarket-backend/internal/notifications"
	"github.com/localstall/stallmarket-backend/internal/orders"
	product "github.com/localstall/stallmarket-backend/internal/products"
	"github.com/localstall/stallmarket-backend/internal/reviews"
	"github.com/localstall/stallmarket-backend/internal/stalls"
	"github.com/localstall/stallmarket-backend/internal/users"
	"github.com/localstall/stallmarket-backend/pkg/config"
	"github.com/localstall/stallmarket-backend/pkg/db"
	"github.com/localstall/stallmarket-backend/pkg/enums"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"github.com/localstall/stallmarket-backend/pkg/metrics"
	pkgredis "github.com/localstall/stallmarket-backend/pkg/redis"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Auth          auth.Service
	Users         users.Service
	Stalls        stalls.Service
	Products      product.Service
	Cart          cart.Service
	Orders        orders.Service
	Reviews       reviews.Service
	Messages      messages.Service
	Notifications notifications.Service
}

// Infra carries the shared clients used by middleware and probes. Redis may
// be nil, which disables idempotency and keeps rate limiting in-process.
type Infra struct {
	DB       db.Pinger
	Redis    *pkgredis.Client
	Storage  controllers.Pinger
	Registry *prometheus.Registry
	HTTP     *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Logging(logg, infra.HTTP),
	)

	limit := rateLimiter(infra.Redis, logg)
	idempotent := idempotency(infra.Redis, logg)

	apiPolicy := middleware.RateLimitPolicy{
		Name:  "api",
		Limit: middleware.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
	}
	authPolicy := middleware.RateLimitPolicy{
		Name:  "auth",
		Limit: middleware.PerMinute(cfg.RateLimit.AuthPerMinute, 0),
	}

	probes := map[string]controllers.Pinger{"database": infra.DB}
	if infra.Redis != nil {
		probes["redis"] = infra.Redis
	}
	if infra.Storage != nil {
		probes["storage"] = infra.Storage
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, probes))
	})
	if infra.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(infra.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(limit(authPolicy))
			r.Post("/login", controllers.AuthLogin(svc.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(svc.Auth, logg))
			r.With(middleware.Auth(cfg.JWT, logg)).Post("/logout", controllers.AuthLogout(svc.Auth, logg))
		})

		// Browsing needs no session.
		r.Group(func(r chi.Router) {
			r.Use(limit(apiPolicy))
			r.Get("/stalls", controllers.ListStalls(svc.Stalls, logg))
			r.Get("/stalls/{stallId}", controllers.GetStall(svc.Stalls, logg))
			r.Get("/stalls/{stallId}/products", controllers.ListStallProducts(svc.Products, logg))
			r.Get("/products/{productId}", controllers.GetProduct(svc.Products, logg))
			r.Get("/products/{productId}/reviews", controllers.ListProductReviews(svc.Reviews, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(limit(apiPolicy))

			r.Route("/me", func(r chi.Router) {
				r.Get("/", controllers.Me(svc.Users, logg))
				r.Delete("/", controllers.DeleteMe(svc.Users, logg))
				r.Get("/stall", controllers.MyStall(svc.Stalls, logg))
				r.Get("/orders", controllers.ListMyOrders(svc.Orders, logg))
			})

			// Flat so these share nodes with the public stall and product routes.
			r.Post("/stalls", controllers.CreateStall(svc.Stalls, logg))
			r.Patch("/stalls/{stallId}", controllers.UpdateStall(svc.Stalls, logg))
			r.Delete("/stalls/{stallId}", controllers.PurgeStall(svc.Stalls, logg))
			r.Post("/stalls/{stallId}/close", controllers.CloseStall(svc.Stalls, logg))
			r.Post("/stalls/{stallId}/products", controllers.CreateProduct(svc.Products, logg))
			r.Get("/stalls/{stallId}/orders", controllers.ListStallOrders(svc.Orders, logg))
			r.Patch("/products/{productId}", controllers.UpdateProduct(svc.Products, logg))
			r.Delete("/products/{productId}", controllers.DeleteProduct(svc.Products, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.GetCart(svc.Cart, logg))
				r.Delete("/", controllers.ClearCart(svc.Cart, logg))
				r.Post("/items", controllers.AddCartItem(svc.Cart, logg))
				r.Patch("/items/{productId}", controllers.UpdateCartItem(svc.Cart, logg))
				r.Delete("/items/{productId}", controllers.RemoveCartItem(svc.Cart, logg))
				r.Post("/merge", controllers.MergeCart(svc.Cart, logg))
				r.With(idempotent(middleware.CriticalIdempotencyTTL)).Post("/checkout", controllers.CheckoutCart(svc.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(idempotent(middleware.CriticalIdempotencyTTL)).Post("/", controllers.CreateOrder(svc.Orders, logg))
				r.Route("/{orderId}", func(r chi.Router) {
					r.Get("/", controllers.GetOrder(svc.Orders, logg))
					r.Patch("/status", controllers.UpdateOrderStatus(svc.Orders, logg))
					r.With(idempotent(middleware.DefaultIdempotencyTTL)).Post("/cancel", controllers.CancelOrder(svc.Orders, logg))
					r.Get("/messages", controllers.ListOrderMessages(svc.Messages, logg))
					r.Post("/messages", controllers.PostOrderMessage(svc.Messages, logg))
				})
			})

			r.Post("/reviews", controllers.CreateReview(svc.Reviews, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
				r.Get("/stalls/pending", controllers.AdminPendingStalls(svc.Stalls, logg))
				r.Post("/stalls/{stallId}/approve", controllers.AdminApproveStall(svc.Stalls, logg))
				r.Post("/stalls/{stallId}/reject", controllers.AdminRejectStall(svc.Stalls, logg))
				r.Post("/users/{userId}/promote", controllers.AdminPromoteUser(svc.Users, logg))
				r.Post("/users/{userId}/demote", controllers.AdminDemoteUser(svc.Users, logg))
				r.Delete("/users/{userId}", controllers.AdminDeleteUser(svc.Users, logg))
			})
		})
	})

	return r
}

func rateLimiter(client *pkgredis.Client, logg *logger.Logger) func(middleware.RateLimitPolicy) func(http.Handler) http.Handler {
	if client == nil || client.Raw() == nil {
		return func(policy middleware.RateLimitPolicy) func(http.Handler) http.Handler {
			return middleware.RateLimit(nil, policy, logg)
		}
	}
	l := redis_rate.NewLimiter(client.Raw())
	return func(policy middleware.RateLimitPolicy) func(http.Handler) http.Handler {
		return middleware.RateLimit(l, policy, logg)
	}
}

func idempotency(client *pkgredis.Client, logg *logger.Logger) func(ttl time.Duration) func(http.Handler) http.Handler {
	return func(ttl time.Duration) func(http.Handler) http.Handler {
		if client == nil {
			return middleware.Idempotency(nil, ttl, logg)
		}
		return middleware.Idempotency(client, ttl, logg)
	}
}
