package nfse

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"nfseBack/internal/nfse/queue"
	"nfseBack/internal/nfse/signer"
	"nfseBack/internal/nfse/timeutil"
)

const (
	defaultAuthorityTimeout = 10 * time.Second
	defaultConcurrency      = 4
	defaultJobAttempts      = 3
	defaultJobBackoff       = 5 * time.Second
	defaultLockDuration     = 30 * time.Second
	defaultStalledInterval  = 30 * time.Second
	defaultMaxStalledCount  = 2
)

// Config holds runtime configuration for the NFSe module.
type Config struct {
	AppKey             string
	AuthorityURL       string
	AuthorityTimeout   time.Duration
	WebhookURL         string
	WebhookSecret      string
	SignatureAlgorithm string
	KeystoreDir        string
	KeystoreS3         S3Config
	Timezone           string

	QueueName         string
	WorkerConcurrency int
	JobAttempts       int
	JobBackoff        time.Duration
	LockDuration      time.Duration
	StalledInterval   time.Duration
	MaxStalledCount   int
}

// S3Config points at the object store holding s3:// keystores.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether s3:// keystore paths can be resolved.
func (c S3Config) Enabled() bool { return c.Region != "" || c.Endpoint != "" }

// LoadConfig reads configuration from environment variables and applies defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		AuthorityTimeout:   defaultAuthorityTimeout,
		SignatureAlgorithm: signer.RSASHA1,
		Timezone:           timeutil.DefaultZone,
		WorkerConcurrency:  defaultConcurrency,
		JobAttempts:        defaultJobAttempts,
		JobBackoff:         defaultJobBackoff,
		LockDuration:       defaultLockDuration,
		StalledInterval:    defaultStalledInterval,
		MaxStalledCount:    defaultMaxStalledCount,
	}

	cfg.AppKey = strings.TrimSpace(os.Getenv("APP_KEY"))
	if cfg.AppKey == "" {
		return Config{}, fmt.Errorf("APP_KEY is required")
	}
	if key, err := hex.DecodeString(cfg.AppKey); err != nil || len(key) != 32 {
		return Config{}, fmt.Errorf("APP_KEY must be 64 hex characters")
	}

	cfg.AuthorityURL = os.Getenv("AUTHORITY_URL")
	if cfg.AuthorityURL == "" {
		host, port := os.Getenv("MOCK_HOST"), os.Getenv("MOCK_PORT")
		if host == "" || port == "" {
			return Config{}, fmt.Errorf("AUTHORITY_URL or MOCK_HOST and MOCK_PORT are required")
		}
		cfg.AuthorityURL = "http://" + net.JoinHostPort(host, port) + "/nfse"
	}

	if v, err := readIntEnv("AUTHORITY_TIMEOUT_SECONDS"); err != nil {
		return Config{}, fmt.Errorf("parse AUTHORITY_TIMEOUT_SECONDS: %w", err)
	} else if v != nil {
		cfg.AuthorityTimeout = time.Duration(*v) * time.Second
	}

	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")
	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")

	if v := os.Getenv("SIGNATURE_ALGORITHM"); v != "" {
		if _, err := signer.New(v); err != nil {
			return Config{}, fmt.Errorf("parse SIGNATURE_ALGORITHM: %w", err)
		}
		cfg.SignatureAlgorithm = v
	}

	cfg.KeystoreDir = os.Getenv("KEYSTORE_DIR")
	cfg.KeystoreS3 = S3Config{
		Endpoint:  os.Getenv("KEYSTORE_S3_ENDPOINT"),
		Region:    os.Getenv("KEYSTORE_S3_REGION"),
		AccessKey: os.Getenv("KEYSTORE_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("KEYSTORE_S3_SECRET_KEY"),
	}
	if cfg.KeystoreS3.Endpoint != "" && cfg.KeystoreS3.Region == "" {
		cfg.KeystoreS3.Region = "us-east-1"
	}

	if v := os.Getenv("TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	cfg.QueueName = os.Getenv("QUEUE_NAME")

	if v, err := readIntEnv("WORKER_CONCURRENCY"); err != nil {
		return Config{}, fmt.Errorf("parse WORKER_CONCURRENCY: %w", err)
	} else if v != nil {
		cfg.WorkerConcurrency = *v
	}

	if err := readJobPolicy(&cfg); err != nil {
		return Config{}, err
	}

	if v, err := readIntEnv("LOCK_DURATION_SECONDS"); err != nil {
		return Config{}, fmt.Errorf("parse LOCK_DURATION_SECONDS: %w", err)
	} else if v != nil {
		cfg.LockDuration = time.Duration(*v) * time.Second
	}

	if v, err := readIntEnv("STALLED_INTERVAL_SECONDS"); err != nil {
		return Config{}, fmt.Errorf("parse STALLED_INTERVAL_SECONDS: %w", err)
	} else if v != nil {
		cfg.StalledInterval = time.Duration(*v) * time.Second
	}

	if v, err := readIntEnv("MAX_STALLED_COUNT"); err != nil {
		return Config{}, fmt.Errorf("parse MAX_STALLED_COUNT: %w", err)
	} else if v != nil {
		cfg.MaxStalledCount = *v
	}

	if cfg.AuthorityTimeout <= 0 || cfg.LockDuration <= 0 || cfg.StalledInterval <= 0 {
		return Config{}, fmt.Errorf("timeouts and intervals must be positive")
	}
	if cfg.WorkerConcurrency <= 0 || cfg.JobAttempts <= 0 {
		return Config{}, fmt.Errorf("WORKER_CONCURRENCY and JOB_ATTEMPTS must be positive")
	}
	if cfg.JobBackoff < 0 {
		return Config{}, fmt.Errorf("JOB_BACKOFF_MS must not be negative")
	}
	if cfg.MaxStalledCount <= 0 {
		return Config{}, fmt.Errorf("MAX_STALLED_COUNT must be positive")
	}

	return cfg, nil
}

// LoadJobOptions reads only the retry policy (JOB_ATTEMPTS, JOB_BACKOFF_MS), for tools that
// enqueue without running the pipeline.
func LoadJobOptions() (queue.JobOptions, error) {
	cfg := Config{JobAttempts: defaultJobAttempts, JobBackoff: defaultJobBackoff}
	if err := readJobPolicy(&cfg); err != nil {
		return queue.JobOptions{}, err
	}
	if cfg.JobAttempts <= 0 || cfg.JobBackoff < 0 {
		return queue.JobOptions{}, fmt.Errorf("JOB_ATTEMPTS must be positive and JOB_BACKOFF_MS not negative")
	}
	return JobOptions(cfg), nil
}

func readJobPolicy(cfg *Config) error {
	if v, err := readIntEnv("JOB_ATTEMPTS"); err != nil {
		return fmt.Errorf("parse JOB_ATTEMPTS: %w", err)
	} else if v != nil {
		cfg.JobAttempts = *v
	}

	if v, err := readIntEnv("JOB_BACKOFF_MS"); err != nil {
		return fmt.Errorf("parse JOB_BACKOFF_MS: %w", err)
	} else if v != nil {
		cfg.JobBackoff = time.Duration(*v) * time.Millisecond
	}
	return nil
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
