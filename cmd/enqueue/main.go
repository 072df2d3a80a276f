package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"nfseBack/internal/config"
	"nfseBack/internal/nfse"
	"nfseBack/internal/nfse/queue"
	"nfseBack/internal/nfse/vault"
)

func main() {
	_ = godotenv.Load()

	errorLog := log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime)

	defaults, err := nfse.LoadJobOptions()
	if err != nil {
		errorLog.Fatal(err)
	}

	configPath := flag.String("config", config.DefaultPath, "Path to the YAML config file")
	saleUID := flag.String("sale", "", "UID of the sale to enqueue")
	queueName := flag.String("queue", envOr("QUEUE_NAME", queue.DefaultName), "Queue name")
	attempts := flag.Int("attempts", defaults.Attempts, "Attempts before the job is dead (default from JOB_ATTEMPTS)")
	backoff := flag.Duration("backoff", defaults.Backoff, "Base delay of the exponential backoff (default from JOB_BACKOFF_MS)")
	inspect := flag.Bool("inspect", false, "Print queue counts and dead jobs")
	retry := flag.String("retry", "", "Requeue the dead job of this sale UID")
	encrypt := flag.String("encrypt", "", "Encrypt a keystore password with APP_KEY and print it")
	flag.Parse()

	if *encrypt != "" {
		cipher, err := vault.NewCipher(os.Getenv("APP_KEY"))
		if err != nil {
			errorLog.Fatal(err)
		}
		secret, err := cipher.Encrypt(*encrypt)
		if err != nil {
			errorLog.Fatal(err)
		}
		fmt.Println(secret)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		errorLog.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	q := queue.New(rdb, queue.DefaultPrefix, *queueName)

	switch {
	case *inspect:
		if err := printQueue(ctx, q); err != nil {
			errorLog.Fatal(err)
		}
	case *retry != "":
		if _, err := uuid.Parse(*retry); err != nil {
			errorLog.Fatalf("invalid sale uid %q", *retry)
		}
		ok, err := q.RetryDead(ctx, *retry)
		if err != nil {
			errorLog.Fatal(err)
		}
		if !ok {
			errorLog.Fatalf("no dead job for sale %s", *retry)
		}
		fmt.Printf("sale %s requeued\n", *retry)
	case *saleUID != "":
		if _, err := uuid.Parse(*saleUID); err != nil {
			errorLog.Fatalf("invalid sale uid %q", *saleUID)
		}
		opts := defaults
		opts.Attempts = *attempts
		opts.Backoff = *backoff
		added, err := q.Add(ctx, queue.SaleJob{SaleID: *saleUID}, opts)
		if err != nil {
			errorLog.Fatal(err)
		}
		if !added {
			fmt.Printf("sale %s is already queued\n", *saleUID)
			return
		}
		fmt.Printf("sale %s queued on %s\n", *saleUID, q.Name())
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func printQueue(ctx context.Context, q *queue.Queue) error {
	counts, err := q.Counts(ctx)
	if err != nil {
		return err
	}
	dead, err := q.DeadJobs(ctx)
	if err != nil {
		return err
	}
	out := map[string]interface{}{
		"queue":   q.Name(),
		"waiting": counts.Waiting,
		"active":  counts.Active,
		"delayed": counts.Delayed,
		"dead":    dead,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
