package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/madebyloom/loomline-backend/api/controllers"
	"github.com/madebyloom/loomline-backend/api/middleware"
	"github.com/madebyloom/loomline-backend/internal/cart"
	"github.com/madebyloom/loomline-backend/internal/catalog"
	checkoutsvc "github.com/madebyloom/loomline-backend/internal/checkout"
	"github.com/madebyloom/loomline-backend/internal/orders"
	"github.com/madebyloom/loomline-backend/pkg/config"
	"github.com/madebyloom/loomline-backend/pkg/db"
	"github.com/madebyloom/loomline-backend/pkg/logger"
	"github.com/madebyloom/loomline-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	catalogService catalog.Service,
	cartService cart.Service,
	ordersService orders.Service,
	checkoutService checkoutsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Frontend),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))
		r.Use(middleware.BrowsingContext(logg, cfg.App.IsProd()))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(catalogService, logg))
			r.Get("/{productId}", controllers.ProductDetail(catalogService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Post("/sync", controllers.CartSync(cartService, logg))
			r.Post("/logout", controllers.CartLogout(cartService, logg))
			r.Post("/cleanup", controllers.CartCleanup(cartService, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutBegin(cartService, catalogService, ordersService, checkoutService, logg))
			r.Get("/", controllers.CheckoutLoad(checkoutService, logg))
			r.Post("/shipping", controllers.CheckoutShipping(checkoutService, logg))
			r.Post("/rate", controllers.CheckoutSelectRate(checkoutService, logg))
			r.Post("/navigate", controllers.CheckoutNavigate(checkoutService, logg))
			r.Post("/terms", controllers.CheckoutTerms(checkoutService, logg))
			r.Post("/submit", controllers.CheckoutSubmit(checkoutService, logg))
		})
	})

	return r
}
