package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sidvermani/fundflow/internal/api"
	"github.com/sidvermani/fundflow/internal/config"
	"github.com/sidvermani/fundflow/internal/events"
	"github.com/sidvermani/fundflow/internal/service"
	"github.com/sidvermani/fundflow/internal/store"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(".")
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	pool, err := store.NewPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var publisher events.Publisher = &events.NopPublisher{Logger: logger}
	if cfg.RabbitMQURL != "" {
		producer, err := events.NewProducer(cfg.RabbitMQURL, cfg.EventExchange)
		if err != nil {
			// The ledger stays available without a broker; events are dropped.
			logger.Warn("rabbitmq unavailable, events disabled", "error", err)
		} else {
			publisher = producer
			defer producer.Close()
		}
	}

	repo := store.NewPostgresRepository(pool)
	ledger := service.New(repo, publisher, logger)
	handler := api.NewHandler(ledger, logger)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(api.AuthMiddleware(cfg.JWTSecret))
	apiV1.HandleFunc("/transfers", handler.CreateTransferHandler).Methods("POST")
	apiV1.HandleFunc("/transfers", handler.ListTransfersHandler).Methods("GET")
	apiV1.HandleFunc("/transfers/{id}", handler.GetTransferHandler).Methods("GET")
	apiV1.HandleFunc("/deposits", handler.DepositHandler).Methods("POST")
	apiV1.HandleFunc("/accounts/{id}", handler.GetAccountHandler).Methods("GET")

	logger.Info("server starting", "port", cfg.ServerPort, "environment", cfg.Environment)
	if err := http.ListenAndServe(":"+cfg.ServerPort, r); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
