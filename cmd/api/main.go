package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lemmaiot-tech/neka/internal/ai"
	"github.com/lemmaiot-tech/neka/internal/app"
	"github.com/lemmaiot-tech/neka/internal/authpw"
	"github.com/lemmaiot-tech/neka/internal/config"
	"github.com/lemmaiot-tech/neka/internal/email"
	"github.com/lemmaiot-tech/neka/internal/files"
	"github.com/lemmaiot-tech/neka/internal/search"
	"github.com/lemmaiot-tech/neka/internal/session"
	"github.com/lemmaiot-tech/neka/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	authService := authpw.NewService(dataStore)

	var sessions app.SessionStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
		sessions = session.NewPGStore(dataStore)
	}

	service := app.New(cfg, dataStore, sessions, authService)

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		searchService := search.NewService(meiliClient, dataStore)
		service.AttachSearch(searchService)

		if requests, err := dataStore.ListRequests(ctx); err != nil {
			log.Printf("WARNING: could not load requests for reindex: %v", err)
		} else {
			searchService.ReindexAll(requests)
		}
	}

	gateway := ai.NewGateway(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.GeminiModel)
	service.AttachAI(gateway)
	if !gateway.Configured() {
		log.Printf("WARNING: GEMINI_API_KEY not set, AI assistance disabled")
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		fileService, err := files.NewService(files.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		if err := fileService.EnsureBucket(ctx); err != nil {
			log.Fatalf("minio bucket setup failed: %v", err)
		}
		service.AttachFiles(fileService)
	} else {
		log.Printf("WARNING: MINIO_ENDPOINT not set, project file uploads disabled")
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	service.AttachMailer(mailer)
	if !mailer.IsConfigured() {
		log.Printf("WARNING: SMTP not configured, owner notifications disabled")
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Neka API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
