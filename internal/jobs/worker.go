package jobs

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"ourdates/internal/logging"
)

// PhotoRemover deletes a stored photo by its public URL.
type PhotoRemover interface {
	Delete(ctx context.Context, photoURL string) error
}

type Worker struct {
	ID       string
	Repo     *Repo
	Photos   PhotoRemover
	Log      logging.Logger
	Interval time.Duration

	// Permanent reports failures that retrying cannot fix; such jobs are
	// marked failed at once. Nil means every failure is retried.
	Permanent func(error) bool
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.Repo.Claim(w.ID)
			if err != nil {
				w.Log.Error(ctx, "worker claim failed", "worker", w.ID, "err", err)
				continue
			}
			if job == nil {
				continue
			}
			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypePhotoDelete:
		w.handlePhotoDelete(ctx, job)
	default:
		_ = w.Repo.MarkFailed(job.ID, "unknown job type")
	}
}

func (w *Worker) handlePhotoDelete(ctx context.Context, job *Job) {
	var p photoPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.PhotoURL == "" {
		_ = w.Repo.MarkFailed(job.ID, "bad payload")
		return
	}

	if err := w.Photos.Delete(ctx, p.PhotoURL); err != nil {
		if w.Permanent != nil && w.Permanent(err) {
			w.Log.Warn(ctx, "photo delete dropped", "job_id", job.ID, "url", p.PhotoURL, "err", err)
			_ = w.Repo.MarkFailed(job.ID, err.Error())
			return
		}
		w.retry(ctx, job, err.Error())
		return
	}

	w.Log.Info(ctx, "photo deleted", "job_id", job.ID, "user_id", job.UserID, "url", p.PhotoURL)
	_ = w.Repo.MarkDone(job.ID)
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		w.Log.Error(ctx, "job failed", "job_id", job.ID, "attempts", attempts, "err", errMsg)
		_ = w.Repo.MarkFailed(job.ID, errMsg)
		return
	}

	_ = w.Repo.RetryLater(job.ID, attempts, time.Now().Add(Backoff(attempts)), errMsg)
}

// Backoff is 2^attempts seconds, capped at ten minutes.
func Backoff(attempts int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	return time.Duration(sec) * time.Second
}
