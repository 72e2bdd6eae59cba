package service

import (
	"time"

	"github.com/bitfantasy/nimo-erp/internal/erp/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	Project  *ProjectService
	Stage    *StageService
	Drawing  *DrawingService
	StageLog *StageLogService
	Export   *ExportService
	Cascade  *CascadeController
}

// Options 服务依赖，Redis 和 Locator 可为空
type Options struct {
	Redis         *redis.Client
	StageCacheTTL time.Duration
	Locator       FileLocator
	Logger        *zap.Logger
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, opts Options) *Services {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := NewStageCache(opts.Redis, opts.StageCacheTTL, logger)
	cascade := NewCascadeController(logger)
	stages := NewStageService(repos, cache)

	return &Services{
		Project:  NewProjectService(repos, stages),
		Stage:    stages,
		Drawing:  NewDrawingService(repos, opts.Locator, logger),
		StageLog: NewStageLogService(repos, cascade, cache, logger),
		Export:   NewExportService(repos),
		Cascade:  cascade,
	}
}
