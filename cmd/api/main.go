package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/handler"
	"fintrack/internal/integrations/advisory"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware"
	"fintrack/internal/repository"
	"fintrack/internal/service"
	"fintrack/internal/utils/email"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Pick the store: Postgres when DB_CONN is set, in-memory otherwise.
	var store repository.Store
	if cfg.DBConn != "" {
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		store = repository.NewPostgresStore(db)
		logger.Info("Using Postgres store")
	} else {
		store = repository.NewMemoryStore()
		logger.Info("Using in-memory store")
	}

	// Initialize layers
	collector := metrics.NewCollector()
	alerter := email.NewSender(cfg, logger)
	fraudSvc := service.NewFraudService(logger, alerter, collector, cfg.SweepInterval)
	ledgerSvc := service.NewTransactionService(logger, fraudSvc, collector)
	authSvc := service.NewAuthService(store, logger, cfg)
	h := handler.NewHandler(ledgerSvc, fraudSvc, authSvc, store, logger)

	// Refresh the recognized-location set from the advisory feed, best effort.
	if cfg.AdvisoryURL != "" {
		advisoryClient := advisory.NewClient(cfg, logger)
		go func() {
			locations, err := advisoryClient.FetchRecognizedLocations()
			if err != nil {
				logger.Warnf("Advisory feed unavailable, keeping default locations: %v", err)
				return
			}
			fraudSvc.SetRecognizedLocations(locations)
		}()
	}

	fraudSvc.Start()
	defer fraudSvc.Stop()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.Handle("/metrics", collector.Handler()).Methods("GET")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	authRouter.HandleFunc("/accounts/{id}/balance", h.GetBalance).Methods("GET")
	authRouter.HandleFunc("/accounts/{id}/history", h.GetHistory).Methods("GET")
	authRouter.HandleFunc("/accounts/{id}/volume/daily", h.GetDailyVolume).Methods("GET")
	authRouter.HandleFunc("/transactions/deposit", h.Deposit).Methods("POST")
	authRouter.HandleFunc("/transactions/withdraw", h.Withdraw).Methods("POST")
	authRouter.HandleFunc("/transactions/transfer", h.Transfer).Methods("POST")
	authRouter.HandleFunc("/transactions/batch", h.SubmitBatch).Methods("POST")
	authRouter.HandleFunc("/transactions/pending", h.GetPending).Methods("GET")
	authRouter.HandleFunc("/transactions/suspicious", h.GetSuspicious).Methods("GET")
	authRouter.HandleFunc("/fraud/report", h.GetFraudReport).Methods("GET")
	authRouter.HandleFunc("/fraud/rules", h.GetFraudRules).Methods("GET")
	authRouter.HandleFunc("/fraud/rules", h.AddFraudRule).Methods("POST")
	authRouter.HandleFunc("/fraud/rules/{name}", h.UpdateFraudRule).Methods("PUT")
	authRouter.HandleFunc("/fraud/rules/{name}", h.RemoveFraudRule).Methods("DELETE")
	authRouter.HandleFunc("/fraud/transactions/{id}/legitimate", h.MarkLegitimate).Methods("POST")
	authRouter.HandleFunc("/fraud/transactions/{id}/fraud", h.MarkFraud).Methods("POST")
	authRouter.HandleFunc("/fraud/accounts/{id}/profile", h.GetProfile).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal, then drain the server and stop the sweep.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
}
