package nfse

import (
	"context"
	"fmt"
	"log/slog"

	"nfseBack/internal/nfse/authority"
	"nfseBack/internal/nfse/notify"
	"nfseBack/internal/nfse/processor"
	"nfseBack/internal/nfse/queue"
	"nfseBack/internal/nfse/signer"
	"nfseBack/internal/nfse/timeutil"
	"nfseBack/internal/nfse/vault"
	"nfseBack/internal/repositories"
)

type moduleState struct {
	salesRepo *repositories.SaleRepository
	processor *processor.Processor
	queue     *queue.Queue
}

func ensureModule(deps *Deps) (*moduleState, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if deps.module != nil {
		return deps.module, nil
	}
	cfg := deps.Config

	if err := timeutil.SetLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	cipher, err := vault.NewCipher(cfg.AppKey)
	if err != nil {
		return nil, err
	}
	sig, err := signer.New(cfg.SignatureAlgorithm)
	if err != nil {
		return nil, err
	}

	keystores := vault.MultiSource{Files: vault.FileSource{Dir: cfg.KeystoreDir}}
	if cfg.KeystoreS3.Enabled() {
		s3src, err := vault.NewS3Source(vault.S3Config{
			Endpoint:  cfg.KeystoreS3.Endpoint,
			Region:    cfg.KeystoreS3.Region,
			AccessKey: cfg.KeystoreS3.AccessKey,
			SecretKey: cfg.KeystoreS3.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		keystores.S3 = s3src
	}

	authClient, err := authority.NewClient(authority.Config{
		URL:     cfg.AuthorityURL,
		Timeout: cfg.AuthorityTimeout,
		Logger:  slog.Default().With("component", "authority"),
	})
	if err != nil {
		return nil, err
	}

	salesRepo := repositories.NewSaleRepository(deps.DB, deps.Dialect)
	usersRepo := repositories.NewUserRepository(deps.DB, deps.Dialect)
	certsRepo := repositories.NewCertificateRepository(deps.DB, deps.Dialect)

	proc, err := processor.New(processor.Deps{
		Sales:        salesRepo,
		Users:        usersRepo,
		Certificates: certsRepo,
		Keystores:    keystores,
		Extractor:    vault.PKCS12Extractor{},
		Cipher:       cipher,
		Signer:       sig,
		Authority:    authClient,
		Notifier:     notify.New(cfg.WebhookURL, cfg.WebhookSecret, deps.HTTPClient, deps.Logger),
		Clock:        timeutil.Now,
		Logger:       deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	deps.module = &moduleState{
		salesRepo: salesRepo,
		processor: proc,
		queue:     NewQueue(deps),
	}
	return deps.module, nil
}

// NewQueue opens the sale-processing queue without building the rest of the module.
func NewQueue(deps *Deps) *queue.Queue {
	return queue.New(deps.RDB, queue.DefaultPrefix, deps.Config.QueueName)
}

// JobOptions returns the retry policy applied to new jobs.
func JobOptions(cfg Config) queue.JobOptions {
	opts := queue.DefaultJobOptions()
	if cfg.JobAttempts > 0 {
		opts.Attempts = cfg.JobAttempts
	}
	if cfg.JobBackoff > 0 {
		opts.Backoff = cfg.JobBackoff
	}
	return opts
}

// StartWorkers consumes the queue until ctx is cancelled, letting running jobs finish.
func StartWorkers(ctx context.Context, deps *Deps) error {
	state, err := ensureModule(deps)
	if err != nil {
		return err
	}
	cfg := deps.Config
	handler := func(ctx context.Context, job queue.SaleJob) error {
		return state.processor.Process(ctx, job.SaleID)
	}
	w := queue.NewWorker(state.queue, handler, queue.WorkerOptions{
		Concurrency:     cfg.WorkerConcurrency,
		LockDuration:    cfg.LockDuration,
		StalledInterval: cfg.StalledInterval,
		MaxStalledCount: cfg.MaxStalledCount,
	}, deps.Logger)
	return w.Run(ctx)
}

// Processor exposes the pipeline, e.g. for running a single sale inline.
func Processor(deps *Deps) (*processor.Processor, error) {
	state, err := ensureModule(deps)
	if err != nil {
		return nil, err
	}
	return state.processor, nil
}

// Sales exposes the sale repository used by the pipeline.
func Sales(deps *Deps) (*repositories.SaleRepository, error) {
	state, err := ensureModule(deps)
	if err != nil {
		return nil, err
	}
	return state.salesRepo, nil
}
