package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/datadeck/datadeck/internal/auth"
	"github.com/datadeck/datadeck/internal/config"
	"github.com/datadeck/datadeck/internal/db"
	"github.com/datadeck/datadeck/internal/etl"
	"github.com/datadeck/datadeck/internal/middleware"
	"github.com/datadeck/datadeck/internal/query"
	"github.com/datadeck/datadeck/internal/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	catalogRepo := repository.NewCatalogRepository(conn.Pool)
	rowRepo := repository.NewRowRepository(conn.Pool)
	jobRepo := repository.NewJobRepository(conn.Pool)
	provisioner := repository.NewTableProvisioner(conn.Pool, cfg.ETL.ReadyAttempts)

	// Create services
	loader := etl.NewBatchLoader(rowRepo, cfg.ETL.BatchSize, cfg.ETL.Workers)
	etlService := etl.NewService(catalogRepo, provisioner, loader, jobRepo)
	queryService := query.NewService(catalogRepo, rowRepo)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	router := chi.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.Use(corsHandler.Handler)
	router.Use(auth.Middleware(cfg.ETL.FallbackOwner))

	router.Route("/api/data", func(r chi.Router) {
		r.Handle("/upload", etl.NewHTTPHandler(etlService))
		r.Mount("/", query.NewHTTPHandler(queryService, jobRepo))
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		log.Printf("Upload endpoint available at http://localhost%s/api/data/upload", cfg.Server.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
