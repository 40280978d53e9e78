package usage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	RedisProviderName     = "redis"
	defaultRedisKeyPrefix = "screenusage"
)

// RedisOptions describes the Redis instance holding the activity report.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	PoolSize     int
	MinIdleConns int
}

// RedisReport reads a report kept as a set of known applications
// (<prefix>:applications) and a hash of totals (<prefix>:usage).
// Applications present in the set but absent from the hash have no data.
type RedisReport struct {
	client *redis.Client
	prefix string
	reportSnapshot
}

// NewRedisProvider does not dial; connection failures surface as load errors
// on the first request.
func NewRedisProvider(opts RedisOptions) *ReportProvider {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
	})
	prefix := strings.TrimSpace(opts.KeyPrefix)
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return NewReportProvider(RedisProviderName, func() ActivityReport {
		return &RedisReport{client: client, prefix: prefix}
	}, client.Close)
}

func (r *RedisReport) applicationsKey() string {
	return r.prefix + ":applications"
}

func (r *RedisReport) usageKey() string {
	return r.prefix + ":usage"
}

func (r *RedisReport) Load(ctx context.Context) error {
	pipe := r.client.Pipeline()
	appsCmd := pipe.SMembers(ctx, r.applicationsKey())
	usageCmd := pipe.HGetAll(ctx, r.usageKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("read activity report from redis: %w", err)
	}

	totals := usageCmd.Val()
	entries := make([]reportEntryRaw, 0, len(appsCmd.Val()))
	for _, app := range appsCmd.Val() {
		entry := reportEntryRaw{ID: app}
		if raw, ok := totals[app]; ok {
			if ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
				entry.TotalUsageMs = &ms
			}
		}
		entries = append(entries, entry)
	}
	r.reportSnapshot = normalizeReportEntries(entries)
	return nil
}
