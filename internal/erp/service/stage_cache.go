package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stageCacheKeyPrefix = "erp:stages:project:"

// StageCache 项目阶段列表缓存，rdb 为 nil 时所有操作都是空操作
type StageCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStageCache 创建阶段缓存
func NewStageCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *StageCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageCache{rdb: rdb, ttl: ttl, logger: logger}
}

func stageCacheKey(projectID string) string {
	return stageCacheKeyPrefix + projectID
}

// Get 命中返回 true
func (c *StageCache) Get(ctx context.Context, projectID string) ([]entity.Stage, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, stageCacheKey(projectID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("stage cache get failed", zap.String("project_id", projectID), zap.Error(err))
		}
		return nil, false
	}
	var stages []entity.Stage
	if err := json.Unmarshal(raw, &stages); err != nil {
		c.logger.Warn("stage cache decode failed", zap.String("project_id", projectID), zap.Error(err))
		return nil, false
	}
	return stages, true
}

// Set 写入缓存
func (c *StageCache) Set(ctx context.Context, projectID string, stages []entity.Stage) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(stages)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, stageCacheKey(projectID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("stage cache set failed", zap.String("project_id", projectID), zap.Error(err))
	}
}

// Invalidate 阶段有写入后删除缓存
func (c *StageCache) Invalidate(ctx context.Context, projectID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, stageCacheKey(projectID)).Err(); err != nil {
		c.logger.Warn("stage cache invalidate failed", zap.String("project_id", projectID), zap.Error(err))
	}
}
