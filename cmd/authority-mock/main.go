package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nfseBack/internal/nfse/mock"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	infoLog := log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime)
	errorLog := log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)

	host := envOr("HOST", "0.0.0.0")
	port := envOr("MOCK_PORT", "3001")
	delayMs, err := readIntEnv("MOCK_RESPONSE_DELAY", 2000)
	if err != nil {
		errorLog.Fatal(err)
	}
	ratio, err := readFloatEnv("MOCK_SUCCESS_RATIO", 0.75)
	if err != nil {
		errorLog.Fatal(err)
	}
	if ratio < 0 || ratio > 1 {
		errorLog.Fatalf("MOCK_SUCCESS_RATIO must be between 0 and 1, got %v", ratio)
	}

	addr := flag.String("addr", net.JoinHostPort(host, port), "HTTP network address")
	flag.Parse()

	server := mock.New(mock.Config{
		Delay:         time.Duration(delayMs) * time.Millisecond,
		SuccessRatio:  ratio,
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
	}, infoLog, errorLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-server.Webhooks():
				protocol := "-"
				if p.Protocol != nil {
					protocol = *p.Protocol
				}
				infoLog.Printf("webhook: sale %s is %s (protocol %s)", p.UID, p.Status, protocol)
			}
		}
	}()

	srv := &http.Server{
		Addr:         *addr,
		ErrorLog:     errorLog,
		Handler:      server.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: time.Duration(delayMs)*time.Millisecond + 10*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errorLog.Printf("shutdown: %v", err)
		}
	}()

	infoLog.Printf("Authority mock listening on %s (delay %dms, success ratio %.2f)", *addr, delayMs, ratio)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errorLog.Fatal(err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func readIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func readFloatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}
