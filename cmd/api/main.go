package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/madebyloom/loomline-backend/api"
	"github.com/madebyloom/loomline-backend/api/routes"
	"github.com/madebyloom/loomline-backend/internal/cart"
	"github.com/madebyloom/loomline-backend/internal/catalog"
	checkoutsvc "github.com/madebyloom/loomline-backend/internal/checkout"
	"github.com/madebyloom/loomline-backend/internal/orders"
	"github.com/madebyloom/loomline-backend/internal/payments"
	"github.com/madebyloom/loomline-backend/internal/pricing"
	shippingsvc "github.com/madebyloom/loomline-backend/internal/shipping"
	"github.com/madebyloom/loomline-backend/pkg/config"
	"github.com/madebyloom/loomline-backend/pkg/db"
	"github.com/madebyloom/loomline-backend/pkg/logger"
	"github.com/madebyloom/loomline-backend/pkg/metrics"
	"github.com/madebyloom/loomline-backend/pkg/migrate"
	"github.com/madebyloom/loomline-backend/pkg/paypal"
	"github.com/madebyloom/loomline-backend/pkg/redis"
	"github.com/madebyloom/loomline-backend/pkg/shipstation"
	"github.com/madebyloom/loomline-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	meters := metrics.New(nil)
	engine := pricing.NewEngine(cfg.Pricing, pricing.DefaultMaterialCost(cfg.Pricing.MaterialRatePerSqInCents))

	catalogRepo, err := catalog.NewRepository(dbClient.Conn())
	exitOnErr(ctx, logg, "catalog repository", err)
	catalogService, err := catalog.NewService(catalogRepo)
	exitOnErr(ctx, logg, "catalog service", err)

	cartRepo, err := cart.NewRepository(dbClient.Conn())
	exitOnErr(ctx, logg, "cart repository", err)
	guestStore, err := cart.NewGuestStore(redisClient, cfg.Cart)
	exitOnErr(ctx, logg, "guest store", err)
	cartService, err := cart.NewService(cartRepo, guestStore, catalogService, engine, redisClient, meters, logg, cfg.Cart)
	exitOnErr(ctx, logg, "cart service", err)

	shipClient, err := shipstation.NewClient(cfg.Shipping, logg)
	exitOnErr(ctx, logg, "shipstation client", err)
	shippingService, err := shippingsvc.NewService(shipClient, meters, logg, cfg.Shipping)
	exitOnErr(ctx, logg, "shipping service", err)

	ordersRepo, err := orders.NewRepository(dbClient.Conn())
	exitOnErr(ctx, logg, "orders repository", err)
	ordersService, err := orders.NewService(ordersRepo, engine, logg)
	exitOnErr(ctx, logg, "orders service", err)

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	exitOnErr(ctx, logg, "stripe client", err)
	paypalClient, err := paypal.NewClient(ctx, cfg.PayPal, logg)
	exitOnErr(ctx, logg, "paypal client", err)

	attemptRepo, err := payments.NewAttemptRepository(dbClient.Conn())
	exitOnErr(ctx, logg, "payment attempt repository", err)
	orchestrator, err := payments.NewOrchestrator(
		payments.NewStripeSessionClient(stripeClient),
		payments.NewPayPalOrderClient(paypalClient),
		attemptRepo,
		ordersService,
		redisClient,
		meters,
		logg,
		cfg.Frontend,
		cfg.Checkout,
	)
	exitOnErr(ctx, logg, "payment orchestrator", err)

	draftStore, err := checkoutsvc.NewDraftStore(redisClient, cfg.Checkout)
	exitOnErr(ctx, logg, "draft store", err)
	checkoutService, err := checkoutsvc.NewService(draftStore, ordersService, shippingService, orchestrator, meters, logg)
	exitOnErr(ctx, logg, "checkout service", err)

	router := routes.NewRouter(cfg, logg, dbClient, redisClient, catalogService, cartService, ordersService, checkoutService)
	server := api.NewServer(cfg, router)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx := logg.WithFields(runCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": server.Addr,
	})
	logg.Info(startCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(startCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(startCtx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(startCtx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
	logg.Info(startCtx, "api server stopped")
}

func exitOnErr(ctx context.Context, logg *logger.Logger, what string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to wire "+what, err)
	os.Exit(1)
}
