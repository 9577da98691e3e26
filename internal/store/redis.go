package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gyeh/logstats/internal/model"
)

// RedisConfig configures the Redis job store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key, e.g. "logstats:".
	Prefix string
	// TTL expires finished jobs; 0 keeps them forever.
	TTL time.Duration
	// Timeout bounds each Redis operation.
	Timeout time.Duration
}

// raiseProgress sets entries_processed to ARGV[1] when the job is processing
// and the value is higher than the stored one. Returns the stored value, or
// -1 when the job does not exist.
var raiseProgress = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
local cur = tonumber(redis.call('HGET', KEYS[1], 'entries_processed') or '0')
local n = tonumber(ARGV[1])
if status == 'processing' and n > cur then
  redis.call('HSET', KEYS[1], 'entries_processed', ARGV[1])
  cur = n
end
return cur
`)

// saveJob overwrites the job hash from ARGV field/value pairs, keeping the
// larger of the stored and given entries_processed (ARGV[1]). Returns 0
// when the job does not exist.
var saveJob = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local cur = tonumber(redis.call('HGET', KEYS[1], 'entries_processed') or '0')
local n = tonumber(ARGV[1])
if cur > n then
  n = cur
end
redis.call('HSET', KEYS[1], 'entries_processed', tostring(n))
for i = 2, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`)

// RedisJobStore keeps each job in a hash and indexes jobs by creation time
// in a sorted set.
type RedisJobStore struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisJobStore connects to Redis and checks the connection.
func NewRedisJobStore(ctx context.Context, cfg RedisConfig) (*RedisJobStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return &RedisJobStore{cfg: cfg, client: client}, nil
}

// Close closes the client.
func (s *RedisJobStore) Close() error {
	return s.client.Close()
}

func (s *RedisJobStore) key(id uuid.UUID) string {
	return s.cfg.Prefix + "job:" + id.String()
}

func (s *RedisJobStore) indexKey() string {
	return s.cfg.Prefix + "jobs"
}

func (s *RedisJobStore) CreateJob(ctx context.Context, j *model.Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ok, err := s.client.HSetNX(ctx, s.key(j.ID), "id", j.ID.String()).Result()
	if err != nil {
		return fmt.Errorf("create job %s: %w", j.ID, err)
	}
	if !ok {
		return fmt.Errorf("job %s: %w", j.ID, ErrExists)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(j.ID), jobFields(j, true)...)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(j.CreatedAt.UnixMilli()), Member: j.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create job %s: %w", j.ID, err)
	}
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	vals, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return parseJob(vals)
}

func (s *RedisJobStore) SaveJob(ctx context.Context, j *model.Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	fields := jobFields(j, false)
	args := make([]any, 0, len(fields)+1)
	args = append(args, j.EntriesProcessed)
	args = append(args, fields...)

	res, err := saveJob.Run(ctx, s.client, []string{s.key(j.ID)}, args...).Int64()
	if err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	if res == 0 {
		return fmt.Errorf("job %s: %w", j.ID, ErrNotFound)
	}
	if s.cfg.TTL > 0 && j.Status.Terminal() {
		if err := s.client.Expire(ctx, s.key(j.ID), s.cfg.TTL).Err(); err != nil {
			return fmt.Errorf("expire job %s: %w", j.ID, err)
		}
	}
	return nil
}

func (s *RedisJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, processed int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	n, err := raiseProgress.Run(ctx, s.client, []string{s.key(id)}, processed).Int64()
	if err != nil {
		return 0, fmt.Errorf("update progress of job %s: %w", id, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return n, nil
}

// ListJobs returns the newest jobs. Index entries whose hash has expired
// are pruned on the way.
func (s *RedisJobStore) ListJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.cfg.Prefix+"job:"+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	out := make([]*model.Job, 0, len(ids))
	var stale []any
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			stale = append(stale, ids[i])
			continue
		}
		j, err := parseJob(vals)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	if len(stale) > 0 {
		s.client.ZRem(ctx, s.indexKey(), stale...)
	}
	sortJobs(out)
	return out, nil
}

func jobFields(j *model.Job, withCreated bool) []any {
	f := []any{
		"name", j.Name,
		"source", j.Source,
		"input_sha256", j.InputSHA256,
		"status", string(j.Status),
		"total_entries", j.TotalEntries,
		"skipped_rows", j.SkippedRows,
		"skipped_entries", j.SkippedEntries,
		"error_message", j.ErrorMessage,
		"started_at", formatTime(j.StartedAt),
		"processed_at", formatTime(j.ProcessedAt),
	}
	if withCreated {
		f = append(f,
			"entries_processed", j.EntriesProcessed,
			"created_at", j.CreatedAt.Format(time.RFC3339Nano))
	}
	return f
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseJob(v map[string]string) (*model.Job, error) {
	id, err := uuid.Parse(v["id"])
	if err != nil {
		return nil, fmt.Errorf("job hash: bad id %q: %w", v["id"], err)
	}
	j := &model.Job{
		ID:           id,
		Name:         v["name"],
		Source:       v["source"],
		InputSHA256:  v["input_sha256"],
		Status:       model.JobStatus(v["status"]),
		ErrorMessage: v["error_message"],
	}

	ints := []struct {
		field string
		dst   *int64
	}{
		{"total_entries", &j.TotalEntries},
		{"entries_processed", &j.EntriesProcessed},
		{"skipped_rows", &j.SkippedRows},
		{"skipped_entries", &j.SkippedEntries},
	}
	for _, f := range ints {
		if v[f.field] == "" {
			continue
		}
		n, err := strconv.ParseInt(v[f.field], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("job %s: bad %s: %w", id, f.field, err)
		}
		*f.dst = n
	}

	created, err := parseTime(v["created_at"])
	if err != nil {
		return nil, fmt.Errorf("job %s: bad created_at: %w", id, err)
	}
	if created != nil {
		j.CreatedAt = *created
	}
	if j.StartedAt, err = parseTime(v["started_at"]); err != nil {
		return nil, fmt.Errorf("job %s: bad started_at: %w", id, err)
	}
	if j.ProcessedAt, err = parseTime(v["processed_at"]); err != nil {
		return nil, fmt.Errorf("job %s: bad processed_at: %w", id, err)
	}
	return j, nil
}
