package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

const DefaultTTL = 7 * 24 * time.Hour

// progressScript only ever moves "done" forward; workers report out of order.
var progressScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local cur = tonumber(redis.call('HGET', KEYS[1], 'done') or '0')
if tonumber(ARGV[1]) > cur then
  redis.call('HSET', KEYS[1], 'done', ARGV[1], 'updated_at', ARGV[2])
end
return 1
`)

// JobRepository keeps one Redis hash per import job.
type JobRepository struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewJobRepository(client *redis.Client, ttl time.Duration) *JobRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JobRepository{
		redis:  client,
		prefix: "roster:import:jobs:v1",
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *JobRepository) key(id string) string {
	return fmt.Sprintf("%s:{%s}", r.prefix, id)
}

func (r *JobRepository) Create(ctx context.Context, job roster.ImportJob) (roster.ImportJob, error) {
	now := r.now()
	job.Status = roster.JobQueued
	job.CreatedAt = now
	job.UpdatedAt = now

	key := r.key(job.ID)
	_, err := r.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, map[string]any{
			"id":         job.ID,
			"status":     string(job.Status),
			"source":     job.Source,
			"apply":      strconv.FormatBool(job.Apply),
			"total":      job.Total,
			"done":       0,
			"created_at": now.Format(time.RFC3339Nano),
			"updated_at": now.Format(time.RFC3339Nano),
		})
		p.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return roster.ImportJob{}, errors.Wrap(err, "create import job")
	}
	return job, nil
}

func (r *JobRepository) Start(ctx context.Context, id string, total int) error {
	return r.update(ctx, id, map[string]any{
		"status": string(roster.JobRunning),
		"total":  total,
	})
}

// UpdateProgress records the processed row count.
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, done int) error {
	ok, err := progressScript.Run(ctx, r.redis, []string{r.key(id)}, done, r.now().Format(time.RFC3339Nano)).Int()
	if err != nil {
		return errors.Wrap(err, "update import job progress")
	}
	if ok == 0 {
		return fmt.Errorf("%w: import job %s", roster.ErrNotFound, id)
	}
	return nil
}

func (r *JobRepository) Finish(ctx context.Context, id string, summary roster.JobSummary) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, "marshal job summary")
	}
	return r.update(ctx, id, map[string]any{
		"status":  string(roster.JobFinished),
		"done":    summary.RowsTotal,
		"summary": string(b),
	})
}

func (r *JobRepository) Fail(ctx context.Context, id string, cause error) error {
	return r.update(ctx, id, map[string]any{
		"status": string(roster.JobFailed),
		"error":  cause.Error(),
	})
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (roster.ImportJob, error) {
	fields, err := r.redis.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return roster.ImportJob{}, fmt.Errorf("%w: import job %s", roster.ErrNotFound, id)
		}
		return roster.ImportJob{}, errors.Wrap(err, "get import job")
	}
	if len(fields) == 0 {
		return roster.ImportJob{}, fmt.Errorf("%w: import job %s", roster.ErrNotFound, id)
	}
	return toDomainJob(fields)
}

func (r *JobRepository) update(ctx context.Context, id string, values map[string]any) error {
	key := r.key(id)
	n, err := r.redis.Exists(ctx, key).Result()
	if err != nil {
		return errors.Wrap(err, "update import job")
	}
	if n == 0 {
		return fmt.Errorf("%w: import job %s", roster.ErrNotFound, id)
	}
	values["updated_at"] = r.now().Format(time.RFC3339Nano)
	if err := r.redis.HSet(ctx, key, values).Err(); err != nil {
		return errors.Wrap(err, "update import job")
	}
	return nil
}

func toDomainJob(fields map[string]string) (roster.ImportJob, error) {
	job := roster.ImportJob{
		ID:     fields["id"],
		Status: roster.JobStatus(fields["status"]),
		Source: fields["source"],
		Error:  fields["error"],
	}
	job.Apply, _ = strconv.ParseBool(fields["apply"])
	job.Total, _ = strconv.Atoi(fields["total"])
	job.Done, _ = strconv.Atoi(fields["done"])
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	if raw := fields["summary"]; raw != "" {
		var s roster.JobSummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return roster.ImportJob{}, errors.Wrap(err, "decode job summary")
		}
		job.Summary = &s
	}
	return job, nil
}
