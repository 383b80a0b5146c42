package mailer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const sendTimeout = 30 * time.Second

type Job struct {
	To      string
	Subject string
	Body    string
}

// Worker delivers jobs on a fixed number of goroutines fed by a bounded queue.
// Enqueue never blocks; a full queue drops the job.
type Worker struct {
	sender Sender
	log    *logrus.Entry
	jobs   chan Job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

func NewWorker(sender Sender, log *logrus.Entry, queueSize, workers int) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}

	w := &Worker{
		sender: sender,
		log:    log.WithField("component", "mailer"),
		jobs:   make(chan Job, queueSize),
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	return w
}

func (w *Worker) run() {
	defer w.wg.Done()
	for job := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := w.sender.Send(ctx, job.To, job.Subject, job.Body)
		cancel()

		if err != nil {
			w.failed.Add(1)
			w.log.WithFields(logrus.Fields{"to": job.To, "subject": job.Subject}).WithError(err).Error("mail delivery failed")
			continue
		}
		w.sent.Add(1)
	}
}

// Enqueue reports whether the job was accepted.
func (w *Worker) Enqueue(job Job) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.dropped.Add(1)
		return false
	}

	select {
	case w.jobs <- job:
		return true
	default:
		w.dropped.Add(1)
		w.log.WithField("to", job.To).Warn("mail queue full, message dropped")
		return false
	}
}

// Close stops accepting jobs and waits for queued ones until ctx is done.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) Depth() int { return len(w.jobs) }

func (w *Worker) Sent() uint64 { return w.sent.Load() }

func (w *Worker) Failed() uint64 { return w.failed.Load() }

func (w *Worker) Dropped() uint64 { return w.dropped.Load() }
