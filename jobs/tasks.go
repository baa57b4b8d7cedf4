package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/semsearch/semsearch/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIndexingSweep fails indexing jobs that stopped reporting progress.
	TaskIndexingSweep = "indexing:sweep"
)

// IndexingSweepPayload configures a sweep run.
type IndexingSweepPayload struct {
	StaleAfterSeconds int64 `json:"stale_after_seconds"`
}

// NewIndexingSweepTask builds a sweep task.
func NewIndexingSweepTask(staleAfter time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IndexingSweepPayload{StaleAfterSeconds: int64(staleAfter / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIndexingSweep, body, asynq.Queue(QueueDefault)), nil
}

// StaleJobSweeper fails stale indexing jobs in its own unit of work.
type StaleJobSweeper interface {
	SweepStaleJobs(ctx context.Context, staleAfter time.Duration) (int64, error)
}

// IndexingSweepJob handles TaskIndexingSweep.
type IndexingSweepJob struct {
	Sweeper  StaleJobSweeper
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Fallback time.Duration
}

// NewIndexingSweepJob initialises the sweep handler. fallback applies when a
// task carries no threshold.
func NewIndexingSweepJob(sweeper StaleJobSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics, fallback time.Duration) *IndexingSweepJob {
	return &IndexingSweepJob{Sweeper: sweeper, Logger: logger, Metrics: metrics, Fallback: fallback}
}

// Handle executes one sweep.
func (j *IndexingSweepJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sweeper == nil {
		return errors.New("indexing sweep: handler not configured")
	}
	var payload IndexingSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	staleAfter := time.Duration(payload.StaleAfterSeconds) * time.Second
	if staleAfter <= 0 {
		staleAfter = j.Fallback
	}
	if staleAfter <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskIndexingSweep)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.Duration("stale_after", staleAfter))
	n, err := j.Sweeper.SweepStaleJobs(ctx, staleAfter)
	if err != nil {
		logger.Error("indexing sweep failed", slog.Any("error", err))
		return err
	}
	if n > 0 {
		logger.Warn("failed stale indexing jobs", slog.Int64("count", n))
	}
	return nil
}

func (j *IndexingSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
