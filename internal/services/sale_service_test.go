package services

import (
	"context"
	"errors"
	"testing"

	"nfseBack/internal/models"
	"nfseBack/internal/nfse/queue"
)

type stubFinder struct {
	sale models.Sale
	err  error
}

func (s stubFinder) FindByUID(context.Context, string) (models.Sale, error) {
	return s.sale, s.err
}

type stubQueue struct {
	added   []queue.SaleJob
	opts    queue.JobOptions
	addErr  error
	retried string
}

func (q *stubQueue) Add(_ context.Context, job queue.SaleJob, opts queue.JobOptions) (bool, error) {
	if q.addErr != nil {
		return false, q.addErr
	}
	for _, j := range q.added {
		if j == job {
			return false, nil
		}
	}
	q.added = append(q.added, job)
	q.opts = opts
	return true, nil
}

func (q *stubQueue) Counts(context.Context) (queue.Counts, error) {
	return queue.Counts{Waiting: int64(len(q.added))}, nil
}

func (q *stubQueue) DeadJobs(context.Context) ([]queue.JobInfo, error) { return nil, nil }

func (q *stubQueue) RetryDead(_ context.Context, id string) (bool, error) {
	q.retried = id
	return true, nil
}

const saleUID = "0b8e5c1e-2f4a-4d7b-9a51-6c3d2e1f0a9b"

func TestSaleServiceEnqueue(t *testing.T) {
	q := &stubQueue{}
	svc := &SaleService{
		Sales:   stubFinder{sale: models.Sale{UID: saleUID}},
		Queue:   q,
		Options: queue.DefaultJobOptions(),
	}

	added, err := svc.Enqueue(context.Background(), saleUID)
	if err != nil || !added {
		t.Fatalf("Enqueue = %v, %v", added, err)
	}
	if q.opts.Attempts != queue.DefaultAttempts {
		t.Fatalf("expected %d attempts, got %d", queue.DefaultAttempts, q.opts.Attempts)
	}
	added, err = svc.Enqueue(context.Background(), saleUID)
	if err != nil || added {
		t.Fatalf("duplicate Enqueue = %v, %v", added, err)
	}
}

func TestSaleServiceEnqueueErrors(t *testing.T) {
	t.Run("invalid uid", func(t *testing.T) {
		svc := &SaleService{Sales: stubFinder{}, Queue: &stubQueue{}}
		if _, err := svc.Enqueue(context.Background(), "123"); !errors.Is(err, ErrInvalidSaleUID) {
			t.Fatalf("expected ErrInvalidSaleUID, got %v", err)
		}
	})

	t.Run("missing sale", func(t *testing.T) {
		q := &stubQueue{}
		svc := &SaleService{Sales: stubFinder{err: models.ErrSaleNotFound}, Queue: q}
		if _, err := svc.Enqueue(context.Background(), saleUID); !errors.Is(err, models.ErrNoRecord) {
			t.Fatalf("expected ErrNoRecord, got %v", err)
		}
		if len(q.added) != 0 {
			t.Fatalf("expected nothing queued, got %v", q.added)
		}
	})

	t.Run("queue failure", func(t *testing.T) {
		boom := errors.New("redis down")
		svc := &SaleService{Sales: stubFinder{sale: models.Sale{UID: saleUID}}, Queue: &stubQueue{addErr: boom}}
		if _, err := svc.Enqueue(context.Background(), saleUID); !errors.Is(err, boom) {
			t.Fatalf("expected wrapped queue error, got %v", err)
		}
	})
}

func TestSaleServiceRetryDead(t *testing.T) {
	q := &stubQueue{}
	svc := &SaleService{Queue: q}
	if _, err := svc.RetryDead(context.Background(), "nope"); !errors.Is(err, ErrInvalidSaleUID) {
		t.Fatalf("expected ErrInvalidSaleUID, got %v", err)
	}
	ok, err := svc.RetryDead(context.Background(), saleUID)
	if err != nil || !ok || q.retried != saleUID {
		t.Fatalf("RetryDead = %v, %v (retried %q)", ok, err, q.retried)
	}
}
