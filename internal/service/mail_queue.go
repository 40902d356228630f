package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"zephyrm-backend/internal/logger"
)

// ErrMailQueueFull is returned by MailQueue.Send when the buffer is full.
var ErrMailQueueFull = errors.New("mail queue is full")

type mailJob struct {
	id      string
	to      string
	subject string
	body    string
	retries int
}

// MailQueue is a Mailer that hands messages to background workers, so a
// slow mail provider never holds up the workflow that triggered the mail.
// Failed sends are retried with quadratic backoff.
type MailQueue struct {
	sender     Mailer
	jobs       chan mailJob
	workers    int
	maxRetries int
	backoff    func(attempt int) time.Duration

	wg sync.WaitGroup
}

func NewMailQueue(sender Mailer, workers, queueSize, maxRetries int) *MailQueue {
	if workers <= 0 {
		workers = 1
	}
	return &MailQueue{
		sender:     sender,
		jobs:       make(chan mailJob, queueSize),
		workers:    workers,
		maxRetries: maxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

// Start launches the workers. They stop when ctx is done; Wait blocks until
// they have.
func (q *MailQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *MailQueue) Wait() {
	q.wg.Wait()
}

// Send enqueues the message without blocking.
func (q *MailQueue) Send(ctx context.Context, to, subject, body string) error {
	job := mailJob{id: uuid.NewString(), to: to, subject: subject, body: body}
	select {
	case q.jobs <- job:
		logger.Debug("Mail queued", "jobID", job.id, "to", to)
		return nil
	default:
		return ErrMailQueueFull
	}
}

func (q *MailQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	logger.Debug("Mail worker started", "worker", id)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Mail worker stopping", "worker", id)
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *MailQueue) process(ctx context.Context, job mailJob) {
	for {
		err := q.sender.Send(ctx, job.to, job.subject, job.body)
		if err == nil {
			logger.Info("Mail sent", "jobID", job.id, "to", job.to)
			return
		}
		if job.retries >= q.maxRetries {
			logger.Error("Mail failed after retries", "jobID", job.id, "to", job.to, "retries", job.retries, "error", err)
			return
		}
		job.retries++
		wait := q.backoff(job.retries)
		logger.Warn("Retrying mail", "jobID", job.id, "attempt", job.retries, "in", wait, "error", err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			logger.Warn("Mail abandoned on shutdown", "jobID", job.id, "to", job.to)
			return
		case <-t.C:
		}
	}
}
