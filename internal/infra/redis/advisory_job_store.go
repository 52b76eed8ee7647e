package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/repository"
)

var _ repository.AdvisoryJobRepository = (*AdvisoryJobStore)(nil)

const processingIndexKey = "advisory_jobs:processing"

func jobKey(id string) string { return "advisory_job:" + id }

// AdvisoryJobStore keeps each job in a hash whose key expires at the job's
// expiry, plus a sorted set of PROCESSING ids scored by creation time.
type AdvisoryJobStore struct {
	cli *redis.Client
}

func NewAdvisoryJobStore(c *Client) *AdvisoryJobStore {
	return &AdvisoryJobStore{cli: c.cli}
}

// KEYS: job hash, processing index. ARGV: expireAt ms, score, id, field/value pairs...
var luaCreate = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV, 4))
redis.call("PEXPIREAT", KEYS[1], ARGV[1])
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3])
return 1`)

// KEYS: job hash, processing index. ARGV: status, result, error, completedAt, id.
var luaFinalize = redis.NewScript(`
local s = redis.call("HGET", KEYS[1], "status")
if not s then
	return -1
end
if s ~= "PROCESSING" then
	return 0
end
redis.call("HSET", KEYS[1], "status", ARGV[1], "result", ARGV[2], "error", ARGV[3], "completedAt", ARGV[4])
redis.call("ZREM", KEYS[2], ARGV[5])
return 1`)

func (s *AdvisoryJobStore) Create(ctx context.Context, job *model.AdvisoryJob) error {
	prompts, err := json.Marshal(nonNil(job.Input.Prompts))
	if err != nil {
		return err
	}
	responses, err := json.Marshal(nonNil(job.Input.Responses))
	if err != nil {
		return err
	}

	args := []interface{}{
		job.ExpiresAt.UnixMilli(),
		job.CreatedAt.UnixMilli(),
		job.ID,
		"id", job.ID,
		"status", string(job.Status),
		"userId", job.Input.UserID,
		"prompt", job.Input.Prompt,
		"prompts", string(prompts),
		"responses", string(responses),
		"createdAt", job.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expiresAt", job.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	n, err := luaCreate.Run(ctx, s.cli, []string{jobKey(job.ID), processingIndexKey}, args...).Int()
	if err != nil {
		return fmt.Errorf("create advisory job: %w", err)
	}
	if n == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (s *AdvisoryJobStore) Get(ctx context.Context, id string) (*model.AdvisoryJob, error) {
	fields, err := s.cli.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get advisory job: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return decodeJob(fields)
}

func (s *AdvisoryJobStore) Finalize(ctx context.Context, id string, out model.JobOutcome) error {
	if err := out.Validate(); err != nil {
		return err
	}
	n, err := luaFinalize.Run(ctx, s.cli, []string{jobKey(id), processingIndexKey},
		string(out.Status), out.Result, out.Error, out.CompletedAt.UTC().Format(time.RFC3339Nano), id,
	).Int()
	if err != nil {
		return fmt.Errorf("finalize advisory job: %w", err)
	}
	switch n {
	case -1:
		return domain.ErrNotFound
	case 0:
		return domain.ErrJobAlreadyFinal
	}
	return nil
}

// ListStaleProcessing walks the processing index. Entries whose hash has
// expired or is no longer PROCESSING are pruned on the way.
func (s *AdvisoryJobStore) ListStaleProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]*model.AdvisoryJob, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.cli.ZRangeByScore(ctx, processingIndexKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(createdBefore.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}

	out := make([]*model.AdvisoryJob, 0, len(ids))
	for _, id := range ids {
		j, err := s.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) || (err == nil && j.IsTerminal()) {
			s.cli.ZRem(ctx, processingIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

// DeleteExpired only prunes index entries: the hashes themselves are
// reclaimed by key expiry. Returns the number of pruned entries.
func (s *AdvisoryJobStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ids, err := s.cli.ZRangeByScore(ctx, processingIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan processing index: %w", err)
	}
	var pruned int64
	for _, id := range ids {
		exists, err := s.cli.Exists(ctx, jobKey(id)).Result()
		if err != nil {
			return pruned, err
		}
		if exists == 0 {
			if err := s.cli.ZRem(ctx, processingIndexKey, id).Err(); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}

func decodeJob(f map[string]string) (*model.AdvisoryJob, error) {
	j := &model.AdvisoryJob{
		ID:     f["id"],
		Status: model.AdvisoryJobStatus(f["status"]),
		Input: model.AdvisoryInput{
			UserID: f["userId"],
			Prompt: f["prompt"],
		},
		Result: f["result"],
		Error:  f["error"],
	}
	if err := json.Unmarshal([]byte(f["prompts"]), &j.Input.Prompts); err != nil {
		return nil, fmt.Errorf("%w: prompts: %v", domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal([]byte(f["responses"]), &j.Input.Responses); err != nil {
		return nil, fmt.Errorf("%w: responses: %v", domain.ErrReadDatabaseRow, err)
	}
	var err error
	if j.CreatedAt, err = time.Parse(time.RFC3339Nano, f["createdAt"]); err != nil {
		return nil, fmt.Errorf("%w: createdAt: %v", domain.ErrReadDatabaseRow, err)
	}
	if j.ExpiresAt, err = time.Parse(time.RFC3339Nano, f["expiresAt"]); err != nil {
		return nil, fmt.Errorf("%w: expiresAt: %v", domain.ErrReadDatabaseRow, err)
	}
	if v := f["completedAt"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("%w: completedAt: %v", domain.ErrReadDatabaseRow, err)
		}
		j.CompletedAt = &t
	}
	return j, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
