package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
)

// SummaryCache stores EventSummary values as JSON with a TTL. Redis failures are logged
// and treated as misses.
//
// Next to each summary sits a version floor written by Invalidate. Set only stores a
// summary built from at least that version, so a reader that raced a commit cannot put
// its older snapshot back.
type SummaryCache struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

// floorTTLFactor keeps the floor around well past any in-flight read.
const floorTTLFactor = 10

// KEYS[1] summary, KEYS[2] floor; ARGV[1] payload, ARGV[2] version, ARGV[3] ttl ms
var setIfCurrent = redis.NewScript(`
local floor = redis.call('GET', KEYS[2])
if floor and tonumber(floor) > tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// KEYS[1] summary, KEYS[2] floor; ARGV[1] version, ARGV[2] floor ttl ms
var raiseFloor = redis.NewScript(`
local floor = redis.call('GET', KEYS[2])
if (not floor) or tonumber(floor) < tonumber(ARGV[1]) then
	redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
end
redis.call('DEL', KEYS[1])
return 1
`)

func NewSummaryCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *SummaryCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SummaryCache{Client: client, TTL: ttl, Logger: log}
}

func summaryKey(eventID string) string {
	return "event_summary:" + eventID
}

func floorKey(eventID string) string {
	return "event_summary_floor:" + eventID
}

func (c *SummaryCache) Get(ctx context.Context, eventID string) (*models.EventSummary, bool) {
	raw, err := c.Client.Get(ctx, summaryKey(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("summary get %s: %v", eventID, err))
		return nil, false
	}

	var summary models.EventSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("summary decode %s: %v", eventID, err))
		return nil, false
	}
	return &summary, true
}

// Set stores summary unless a newer version has been committed since it was read.
func (c *SummaryCache) Set(ctx context.Context, summary *models.EventSummary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("summary encode %s: %v", summary.EventID, err))
		return
	}
	keys := []string{summaryKey(summary.EventID), floorKey(summary.EventID)}
	stored, err := setIfCurrent.Run(ctx, c.Client, keys, raw, summary.Version, c.TTL.Milliseconds()).Int()
	if err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("summary set %s: %v", summary.EventID, err))
		return
	}
	if stored == 0 {
		c.Logger.Debug("REDIS", fmt.Sprintf("summary of %s at version %d is stale, not cached", summary.EventID, summary.Version))
	}
}

// Invalidate drops the cached summary and refuses later writes older than version.
func (c *SummaryCache) Invalidate(ctx context.Context, eventID string, version int64) {
	keys := []string{summaryKey(eventID), floorKey(eventID)}
	floorTTL := c.TTL * floorTTLFactor
	if err := raiseFloor.Run(ctx, c.Client, keys, version, floorTTL.Milliseconds()).Err(); err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("summary invalidate %s: %v", eventID, err))
	}
}
