package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	"tackleshop/pkg/catalog"
	"tackleshop/pkg/config"
	"tackleshop/pkg/device"
	"tackleshop/pkg/logger"
	"tackleshop/pkg/otel"
	"tackleshop/pkg/storage"
	"tackleshop/pkg/storage/memory"
	"tackleshop/pkg/storage/postgres"
	"tackleshop/pkg/storage/redis"
	"tackleshop/pkg/storage/sqlite"
)

var (
	registry *device.Registry
	products *catalog.Accessor
	log      *logger.Logger
	tracer   trace.Tracer
)

// @title Tackleshop API
// @version 1.0
// @description Cart, session and catalog state for the tackleshop storefront
// @host localhost:8443
// @BasePath /
func main() {
	cfg, envLoaded := config.Load()
	log = logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), "tackleshop", otel.GetTraceID)
	defer log.Sync()
	ctx := context.Background()
	if !envLoaded {
		log.Info(ctx, "no .env file, using process environment")
	}

	tp, shutdown, err := otel.InitTracing(log, otel.Config{ServiceName: "tackleshop", Host: cfg.OTelHost, Probability: cfg.OTelSampling})
	if err != nil {
		log.Error(ctx, "init tracing", "error", err)
		os.Exit(1)
	}
	defer shutdown(context.Background())
	tracer = tp.Tracer("tackleshop")

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Error(ctx, "open storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer closeBackend()
	registry = device.NewRegistry(backend, log, nil)

	var src catalog.Source = catalog.EmbeddedSource{}
	if cfg.CatalogURL != "" {
		src = catalog.HTTPSource{URL: cfg.CatalogURL, Client: &http.Client{Timeout: 10 * time.Second}}
	}
	products = catalog.New(src)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info(ctx, "listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageBackend, "tls", cfg.TLSCert != "")
	if cfg.TLSCert != "" {
		err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil {
		log.Error(ctx, "server closed", "error", err)
	}
}

func newRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(traceMiddleware)

	r.HandleFunc("/products", listProductsHandler).Methods(http.MethodGet)
	r.HandleFunc("/products/{id:[0-9]+}", getProductHandler).Methods(http.MethodGet)
	r.HandleFunc("/categories", listCategoriesHandler).Methods(http.MethodGet)
	r.HandleFunc("/categories/{slug}", getCategoryHandler).Methods(http.MethodGet)
	r.HandleFunc("/search", searchHandler).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(deviceMiddleware)
	api.HandleFunc("/cart", getCartHandler).Methods(http.MethodGet)
	api.HandleFunc("/cart", clearCartHandler).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", addCartItemHandler).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{id:[0-9]+}", updateCartItemHandler).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{id:[0-9]+}", removeCartItemHandler).Methods(http.MethodDelete)
	api.HandleFunc("/session", getSessionHandler).Methods(http.MethodGet)
	api.HandleFunc("/session/login", loginHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/logout", logoutHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/profile", updateProfileHandler).Methods(http.MethodPatch)
	api.HandleFunc("/orders", listOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/favorites", listFavoritesHandler).Methods(http.MethodGet)
	api.HandleFunc("/favorites/{id:[0-9]+}", toggleFavoriteHandler).Methods(http.MethodPost)
	api.HandleFunc("/checkout/quote", quoteHandler).Methods(http.MethodGet)
	api.HandleFunc("/checkout/shipping", shippingHandler).Methods(http.MethodPost)
	api.HandleFunc("/checkout/payment", paymentHandler).Methods(http.MethodPost)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

// openBackend returns the configured storage backend and its closer.
func openBackend(ctx context.Context, cfg config.Config) (storage.Store, func() error, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return memory.New(), func() error { return nil }, nil
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendRedis:
		s, err := redis.Dial(ctx, redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
