// Package queue is a Redis-backed durable job queue for sale processing.
//
// A job id is the sale UID, so a sale is never queued twice while its job exists and two
// workers never hold the same sale. Failed jobs are retried with exponential backoff until
// their attempts run out and are then kept in the dead set for inspection.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultName      = "sale-processing"
	DefaultPrefix    = "nfse"
	DefaultAttempts  = 3
	DefaultBackoff   = 5 * time.Second
	StalledJobReason = "job stalled more than allowable limit"

	promoteBatch = 1000
)

// SaleJob is the job payload.
type SaleJob struct {
	SaleID string `json:"saleId"`
}

// JobOptions control retry and retention of one job.
type JobOptions struct {
	Attempts         int
	Backoff          time.Duration
	RemoveOnComplete bool
	RemoveOnFail     bool
}

// DefaultJobOptions: 3 attempts, 5s exponential backoff, completed jobs removed, failed kept.
func DefaultJobOptions() JobOptions {
	return JobOptions{
		Attempts:         DefaultAttempts,
		Backoff:          DefaultBackoff,
		RemoveOnComplete: true,
		RemoveOnFail:     false,
	}
}

// Job is a fetched job held under a lock.
type Job struct {
	ID           string
	Data         SaleJob
	Attempts     int
	AttemptsMade int
	StalledCount int
	token        string
}

// JobInfo describes a stored job.
type JobInfo struct {
	ID           string
	Data         SaleJob
	State        string
	Attempts     int
	AttemptsMade int
	StalledCount int
	FailedReason string
	CreatedAt    time.Time
	FinishedAt   time.Time
}

// Counts is the number of jobs per state.
type Counts struct {
	Waiting int64
	Active  int64
	Delayed int64
	Dead    int64
}

// Queue stores jobs under "<prefix>:<name>:".
type Queue struct {
	rdb    redis.UniversalClient
	name   string
	prefix string
	now    func() time.Time
}

func New(rdb redis.UniversalClient, prefix, name string) *Queue {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if name == "" {
		name = DefaultName
	}
	return &Queue{rdb: rdb, name: name, prefix: prefix + ":" + name + ":", now: time.Now}
}

func (q *Queue) Name() string { return q.name }

func (q *Queue) key(k string) string      { return q.prefix + k }
func (q *Queue) jobKey(id string) string  { return q.prefix + "job:" + id }
func (q *Queue) lockKey(id string) string { return q.prefix + "lock:" + id }
func (q *Queue) nowMillis() int64         { return q.now().UnixMilli() }

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Add enqueues a job for the sale. It returns false when a job for the sale already exists.
func (q *Queue) Add(ctx context.Context, job SaleJob, opts JobOptions) (bool, error) {
	if strings.TrimSpace(job.SaleID) == "" {
		return false, errors.New("queue: sale id is required")
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	data, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("queue: encode job: %w", err)
	}
	added, err := addScript.Run(ctx, q.rdb,
		[]string{q.jobKey(job.SaleID), q.key("wait")},
		job.SaleID, string(data), opts.Attempts, opts.Backoff.Milliseconds(),
		boolFlag(opts.RemoveOnComplete), boolFlag(opts.RemoveOnFail), q.nowMillis(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("queue: add job %s: %w", job.SaleID, err)
	}
	return added == 1, nil
}

// Fetch blocks up to timeout for the next waiting job, moves it to active and locks it.
// It returns nil, nil when nothing arrived in time. Timeouts below one second are rounded up.
func (q *Queue) Fetch(ctx context.Context, timeout, lockDuration time.Duration) (*Job, error) {
	if timeout < time.Second {
		timeout = time.Second
	}
	if lockDuration <= 0 {
		lockDuration = defaultLockDuration
	}
	id, err := q.rdb.BLMove(ctx, q.key("wait"), q.key("active"), "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// The job left wait; lock it even if ctx was cancelled meanwhile.
	ctx = context.WithoutCancel(ctx)
	token := uuid.NewString()
	locked, err := lockScript.Run(ctx, q.rdb,
		[]string{q.jobKey(id), q.lockKey(id), q.key("active"), q.key("stalled-check")},
		id, token, lockDuration.Milliseconds(), q.nowMillis(),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("queue: lock job %s: %w", id, err)
	}
	if locked == 0 {
		return nil, nil
	}

	info, err := q.job(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:           id,
		Data:         info.Data,
		Attempts:     info.Attempts,
		AttemptsMade: info.AttemptsMade,
		StalledCount: info.StalledCount,
		token:        token,
	}, nil
}

// ExtendLock renews the job lock. It reports false when the lock was lost.
func (q *Queue) ExtendLock(ctx context.Context, job *Job, lockDuration time.Duration) (bool, error) {
	n, err := extendLockScript.Run(ctx, q.rdb,
		[]string{q.lockKey(job.ID), q.key("stalled-check")},
		job.token, lockDuration.Milliseconds(), job.ID,
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ErrLockLost means another worker took over the job after its lock expired.
var ErrLockLost = errors.New("queue: job lock lost")

// Complete finishes a job successfully.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	n, err := completeScript.Run(ctx, q.rdb,
		[]string{q.jobKey(job.ID), q.lockKey(job.ID), q.key("active")},
		job.ID, job.token, q.nowMillis(),
	).Int()
	if err != nil {
		return fmt.Errorf("queue: complete job %s: %w", job.ID, err)
	}
	if n == -1 {
		return ErrLockLost
	}
	return nil
}

// FailResult tells what happened to a failed job.
type FailResult struct {
	Retry bool
	Delay time.Duration
}

// Fail records a failed attempt. The job is scheduled again after backoff*2^(attempt-1)
// while attempts remain, otherwise it moves to the dead set.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) (FailResult, error) {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	n, err := failScript.Run(ctx, q.rdb,
		[]string{q.jobKey(job.ID), q.lockKey(job.ID), q.key("active"), q.key("delayed"), q.key("dead")},
		job.ID, job.token, q.nowMillis(), reason,
	).Int64()
	if err != nil {
		return FailResult{}, fmt.Errorf("queue: fail job %s: %w", job.ID, err)
	}
	switch {
	case n == -1:
		return FailResult{}, ErrLockLost
	case n == -2:
		return FailResult{}, nil
	default:
		return FailResult{Retry: true, Delay: time.Duration(n) * time.Millisecond}, nil
	}
}

// Promote moves delayed jobs that are due to wait.
func (q *Queue) Promote(ctx context.Context) (int, error) {
	return promoteScript.Run(ctx, q.rdb,
		[]string{q.key("delayed"), q.key("wait")},
		q.nowMillis(), promoteBatch, q.prefix+"job:",
	).Int()
}

// StalledResult lists jobs touched by a stalled check.
type StalledResult struct {
	Requeued []string
	Dead     []string
}

// CheckStalled requeues jobs whose worker stopped renewing the lock. A job is only acted on
// when it was already unlocked on the previous check, so the interval between checks is the
// grace period.
func (q *Queue) CheckStalled(ctx context.Context, maxStalledCount int) (StalledResult, error) {
	out, err := stalledScript.Run(ctx, q.rdb,
		[]string{q.key("stalled-check"), q.key("active"), q.key("wait"), q.key("dead")},
		q.prefix, maxStalledCount, q.nowMillis(), StalledJobReason,
	).StringSlice()
	if err != nil {
		return StalledResult{}, fmt.Errorf("queue: stalled check: %w", err)
	}
	var res StalledResult
	for _, e := range out {
		switch {
		case strings.HasPrefix(e, "r:"):
			res.Requeued = append(res.Requeued, e[2:])
		case strings.HasPrefix(e, "d:"):
			res.Dead = append(res.Dead, e[2:])
		}
	}
	return res, nil
}

// RetryDead puts an exhausted job back on the wait list with a fresh attempt budget.
func (q *Queue) RetryDead(ctx context.Context, id string) (bool, error) {
	n, err := retryDeadScript.Run(ctx, q.rdb,
		[]string{q.jobKey(id), q.key("dead"), q.key("wait")}, id,
	).Int()
	if err != nil {
		return false, fmt.Errorf("queue: retry job %s: %w", id, err)
	}
	return n == 1, nil
}

// Counts returns the number of jobs per state.
func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	pipe := q.rdb.TxPipeline()
	wait := pipe.LLen(ctx, q.key("wait"))
	active := pipe.LLen(ctx, q.key("active"))
	delayed := pipe.ZCard(ctx, q.key("delayed"))
	dead := pipe.ZCard(ctx, q.key("dead"))
	if _, err := pipe.Exec(ctx); err != nil {
		return Counts{}, fmt.Errorf("queue: counts: %w", err)
	}
	return Counts{Waiting: wait.Val(), Active: active.Val(), Delayed: delayed.Val(), Dead: dead.Val()}, nil
}

// DeadJobs lists exhausted jobs, oldest first.
func (q *Queue) DeadJobs(ctx context.Context) ([]JobInfo, error) {
	ids, err := q.rdb.ZRange(ctx, q.key("dead"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: list dead jobs: %w", err)
	}
	jobs := make([]JobInfo, 0, len(ids))
	for _, id := range ids {
		info, err := q.job(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, info)
	}
	return jobs, nil
}

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("queue: job not found")

// Job returns the stored state of a job.
func (q *Queue) Job(ctx context.Context, id string) (JobInfo, error) {
	return q.job(ctx, id)
}

func (q *Queue) job(ctx context.Context, id string) (JobInfo, error) {
	h, err := q.rdb.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return JobInfo{}, fmt.Errorf("queue: load job %s: %w", id, err)
	}
	if len(h) == 0 {
		return JobInfo{}, ErrJobNotFound
	}
	info := JobInfo{
		ID:           id,
		State:        h["state"],
		Attempts:     atoi(h["attempts"]),
		AttemptsMade: atoi(h["attempts_made"]),
		StalledCount: atoi(h["stalled_count"]),
		FailedReason: h["failed_reason"],
		CreatedAt:    millis(h["created_at"]),
		FinishedAt:   millis(h["finished_on"]),
	}
	if err := json.Unmarshal([]byte(h["data"]), &info.Data); err != nil {
		return JobInfo{}, fmt.Errorf("queue: decode job %s: %w", id, err)
	}
	return info, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func millis(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}
	}
	return time.UnixMilli(n)
}
