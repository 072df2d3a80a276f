package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"nfseBack/internal/config"
	"nfseBack/internal/nfse"
	"nfseBack/internal/nfse/authority"
	"nfseBack/internal/repositories"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	configPath := flag.String("config", config.DefaultPath, "Path to the YAML config file")
	addr := flag.String("addr", "", "HTTP network address of the admin API (overrides config)")
	migrate := flag.Bool("migrate", false, "Create the database schema before starting")
	flag.Parse()

	infoLog := log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime)
	errorLog := log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		errorLog.Fatal(err)
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}
	nfseCfg, err := nfse.LoadConfig()
	if err != nil {
		errorLog.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := repositories.OpenDB(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		errorLog.Fatal(err)
	}
	defer db.Close()

	if *migrate {
		if err := repositories.Migrate(ctx, db, dialect); err != nil {
			errorLog.Fatal(err)
		}
		infoLog.Printf("Database schema is up to date")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		errorLog.Fatalf("redis ping: %v", err)
	}

	deps := &nfse.Deps{
		DB:         db,
		Dialect:    dialect,
		RDB:        rdb,
		Logger:     logAdapter{infoLog: infoLog, errorLog: errorLog},
		Config:     nfseCfg,
		HTTPClient: authority.NewIPv4HTTPClient(authority.DefaultTimeout),
	}

	app, err := initializeApp(deps, errorLog, infoLog)
	if err != nil {
		errorLog.Fatal(err)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		ErrorLog:     errorLog,
		Handler:      c.Handler(app.routes()),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	startDeadJobReporter(ctx, app.saleService, infoLog, errorLog)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		infoLog.Printf("Starting %d workers on queue %s", nfseCfg.WorkerConcurrency, app.queueName)
		return nfse.StartWorkers(gctx, deps)
	})
	g.Go(func() error {
		infoLog.Printf("Starting server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		errorLog.Fatal(err)
	}
	infoLog.Printf("Worker stopped")
}
