package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mysql-dbdriver/internal/config"
	"mysql-dbdriver/internal/driver"
	"mysql-dbdriver/internal/server"
	"mysql-dbdriver/internal/storage"
	"mysql-dbdriver/internal/worker"
)

var version = "dev"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "dbhost %s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  dbhost [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DB_DIALECT     mysql, postgres or sqlite\n")
		fmt.Fprintf(os.Stderr, "  DB_DATASOURCE  host:port:database\n")
		fmt.Fprintf(os.Stderr, "  DB_USER, DB_PASSWORD\n")
		fmt.Fprintf(os.Stderr, "  API_KEY_HASH   bcrypt hash of the client API key (see dbshell keygen)\n")
		fmt.Fprintf(os.Stderr, "  API_SECRET     HMAC secret for signed requests\n")
		fmt.Fprintf(os.Stderr, "  STORAGE_TYPE   local or s3\n")
	}
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dbhost %s (%s)\n", version, driver.DefaultVersion)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	slog.Info("Starting dbhost", "env", cfg.AppEnv, "dialect", cfg.DBDialect, "datasource", cfg.DBDatasource)

	if cfg.AppEnv == "production" && (cfg.APIKeyHash == "" || cfg.APISecret == "") {
		slog.Error("API_KEY_HASH and API_SECRET are required in production")
		os.Exit(1)
	}

	// 1. Driver
	connector, err := cfg.Connector()
	if err != nil {
		slog.Error("Invalid driver configuration", "error", err)
		os.Exit(1)
	}
	opts := cfg.DriverOptions()
	opts.Logger = logger
	d := driver.New(connector, opts)

	// 2. Storage
	var store storage.Provider
	switch cfg.StorageType {
	case "s3":
		client := storage.NewS3Client(storage.S3Options{
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			SessionToken:    cfg.AWSSessionToken,
		})
		store = storage.NewS3Provider(client, cfg.S3Bucket, logger)
		slog.Info("Using S3 storage", "bucket", cfg.S3Bucket)
	default:
		store = storage.NewLocalProvider(cfg.LocalStoragePath, logger)
		slog.Info("Using local storage", "path", cfg.LocalStoragePath)
	}

	// 3. Hub and worker pool
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(logger)
	pool := worker.NewPool(d, store, worker.Options{
		Workers:          cfg.WorkerCount,
		MaxDBConcurrency: cfg.MaxDBConcurrency,
		Datasource:       cfg.DBDatasource,
		User:             cfg.DBUser,
		Password:         cfg.DBPassword,
		Verbose:          cfg.DBVerbose,
		Gzip:             cfg.Compression,
		Notifier:         hub,
		Logger:           logger,
	})
	if err := pool.Start(ctx); err != nil {
		slog.Error("Failed to start workers", "error", err)
		os.Exit(1)
	}

	// 4. Admin handle for ns_mysql commands
	ah := d.NewHandle(cfg.DBDatasource, cfg.DBUser, cfg.DBPassword)
	ah.Verbose = cfg.DBVerbose
	admin := server.NewAdmin(d, ah)

	srv := server.New(pool, store, hub, admin, server.Options{
		AppEnv:         cfg.AppEnv,
		AllowedOrigins: cfg.AllowedOrigins,
		APISecret:      cfg.APISecret,
		APIKeyHash:     cfg.APIKeyHash,
		JobTimeout:     cfg.DefaultTimeout,
		Logger:         logger,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("dbhost listening", "port", cfg.ServerPort)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	pool.Stop()
	admin.Close()
	hub.Close()
	slog.Info("dbhost stopped")
}
