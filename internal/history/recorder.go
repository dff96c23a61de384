// Package history appends videos to a viewer's watch history off the request
// path, so detail fetches do not wait on the extra write.
package history

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Appender persists a watch-history entry for a viewer.
type Appender interface {
	AppendWatchHistory(ctx context.Context, userID, videoID string) error
}

// RecorderConfig controls the concurrency characteristics of the recorder.
type RecorderConfig struct {
	QueueSize int
	Workers   int
}

// Recorder records watch-history entries through a bounded worker pool. A
// full queue drops the entry rather than stalling the caller; history is a
// convenience list, not an audit log.
type Recorder struct {
	appender Appender
	logger   *slog.Logger

	jobs chan historyJob
	wg   sync.WaitGroup
	once sync.Once

	// mu orders Record against Shutdown so a late request cannot send
	// on the closed queue.
	mu     sync.Mutex
	closed bool
}

type historyJob struct {
	userID  string
	videoID string
}

// NewRecorder constructs a background recorder with the provided pool shape.
func NewRecorder(appender Appender, cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	rec := &Recorder{
		appender: appender,
		logger:   logger,
		jobs:     make(chan historyJob, cfg.QueueSize),
	}

	rec.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go rec.worker()
	}

	return rec
}

// Record schedules a history append for the viewer. It never blocks: when the
// queue is full the entry is dropped and logged.
func (r *Recorder) Record(userID, videoID string) {
	if userID == "" || videoID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	select {
	case r.jobs <- historyJob{userID: userID, videoID: videoID}:
	default:
		r.logger.Warn("history queue full, dropping entry", "userId", userID, "videoId", videoID)
	}
}

// Shutdown waits for the worker pool to drain outstanding jobs.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.jobs)
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for job := range r.jobs {
		r.handleJob(job)
	}
}

func (r *Recorder) handleJob(job historyJob) {
	if r.appender == nil {
		r.logger.Error("history recorder missing appender")
		return
	}

	// Detached from the request context so an in-flight append finishes even
	// when the viewer disconnects.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.appender.AppendWatchHistory(ctx, job.userID, job.videoID); err != nil {
		r.logger.Error("append watch history", "userId", job.userID, "videoId", job.videoID, "error", err)
	}
}
