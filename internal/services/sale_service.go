package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"nfseBack/internal/models"
	"nfseBack/internal/nfse/queue"
)

var ErrInvalidSaleUID = errors.New("invalid sale uid")

type SaleFinder interface {
	FindByUID(ctx context.Context, uid string) (models.Sale, error)
}

type SaleQueue interface {
	Add(ctx context.Context, job queue.SaleJob, opts queue.JobOptions) (bool, error)
	Counts(ctx context.Context) (queue.Counts, error)
	DeadJobs(ctx context.Context) ([]queue.JobInfo, error)
	RetryDead(ctx context.Context, id string) (bool, error)
}

// SaleService is the operator surface over sales and their processing queue.
type SaleService struct {
	Sales   SaleFinder
	Queue   SaleQueue
	Options queue.JobOptions
}

func (s *SaleService) GetSale(ctx context.Context, uid string) (models.Sale, error) {
	if _, err := uuid.Parse(uid); err != nil {
		return models.Sale{}, ErrInvalidSaleUID
	}
	return s.Sales.FindByUID(ctx, uid)
}

// Enqueue schedules processing of an existing sale. It reports false when the sale
// already has a job in the queue.
func (s *SaleService) Enqueue(ctx context.Context, uid string) (bool, error) {
	sale, err := s.GetSale(ctx, uid)
	if err != nil {
		return false, err
	}
	added, err := s.Queue.Add(ctx, queue.SaleJob{SaleID: sale.UID}, s.Options)
	if err != nil {
		return false, fmt.Errorf("enqueue sale %s: %w", uid, err)
	}
	return added, nil
}

func (s *SaleService) QueueCounts(ctx context.Context) (queue.Counts, error) {
	return s.Queue.Counts(ctx)
}

func (s *SaleService) DeadJobs(ctx context.Context) ([]queue.JobInfo, error) {
	return s.Queue.DeadJobs(ctx)
}

func (s *SaleService) RetryDead(ctx context.Context, uid string) (bool, error) {
	if _, err := uuid.Parse(uid); err != nil {
		return false, ErrInvalidSaleUID
	}
	return s.Queue.RetryDead(ctx, uid)
}
