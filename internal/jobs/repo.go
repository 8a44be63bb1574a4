package jobs

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	DB *gorm.DB
}

// Claim one due job atomically. Postgres uses SKIP LOCKED; other
// dialects fall back to a guarded select-then-update.
func (r *Repo) Claim(workerID string) (*Job, error) {
	if r.DB.Dialector.Name() == "postgres" {
		return r.claimPostgres(workerID)
	}
	return r.claimPortable(workerID)
}

func (r *Repo) claimPostgres(workerID string) (*Job, error) {
	var job Job
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		// requeue stuck RUNNING jobs
		tx.Exec(`
update jobs
set status='PENDING', locked_by=null, locked_at=null, updated_at=now()
where status='RUNNING' and locked_at is not null and locked_at < now() - interval '5 minutes'
`)

		// FOR UPDATE SKIP LOCKED ensures no double-claim
		q := tx.Raw(`
with cte as (
  select id
  from jobs
  where status='PENDING' and run_at <= now()
  order by run_at asc
  for update skip locked
  limit 1
)
update jobs
set status='RUNNING', locked_by=?, locked_at=now(), updated_at=now()
where id in (select id from cte)
returning *;
`, workerID)

		return q.Scan(&job).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) claimPortable(workerID string) (*Job, error) {
	var job Job
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Where("status = ? AND run_at <= ?", StatusPending, now).
			Order("run_at asc").
			First(&job).Error; err != nil {
			return err
		}

		res := tx.Model(&Job{}).
			Where("id = ? AND status = ?", job.ID, StatusPending).
			Updates(map[string]any{
				"status":     StatusRunning,
				"locked_by":  workerID,
				"locked_at":  now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		job.Status = StatusRunning
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *Repo) MarkDone(id uint64) error {
	return r.setStatus(id, map[string]any{"status": StatusDone})
}

func (r *Repo) MarkFailed(id uint64, errMsg string) error {
	return r.setStatus(id, map[string]any{"status": StatusFailed, "last_error": errMsg})
}

func (r *Repo) RetryLater(id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.setStatus(id, map[string]any{
		"status":     StatusPending,
		"attempts":   attempts,
		"run_at":     runAt.UTC(),
		"locked_by":  nil,
		"locked_at":  nil,
		"last_error": errMsg,
	})
}

func (r *Repo) setStatus(id uint64, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	return r.DB.Model(&Job{}).Where("id = ?", id).Updates(fields).Error
}
