package service

import (
	"context"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"github.com/bitfantasy/nimo-erp/internal/erp/repository"
	"go.uber.org/zap"
)

// 级联效果
const (
	EffectNone           = ""
	EffectStageCompleted = "stage_completed"
	EffectRevisionBumped = "revision_bumped"
)

// CascadeResult 一次日志完成引起的级联结果
type CascadeResult struct {
	Effect           string   `json:"effect"`
	ProjectID        string   `json:"project_id"`
	StageID          string   `json:"stage_id"`
	StageName        string   `json:"stage_name"`
	NextStage        string   `json:"next_stage,omitempty"`
	Progress         int      `json:"progress,omitempty"`
	ProjectCompleted bool     `json:"project_completed,omitempty"`
	Revision         string   `json:"revision,omitempty"`
	FinalFiles       []string `json:"final_files,omitempty"`
}

type cascadeRule func(ctx context.Context, r *repository.Repositories, log *entity.StageLog) (*CascadeResult, error)

// CascadeController 按 (环节, 审核结论) 执行级联，必须在日志更新的同一事务中调用
type CascadeController struct {
	rules  map[transitionKey]cascadeRule
	logger *zap.Logger
}

// NewCascadeController 创建级联控制器
func NewCascadeController(logger *zap.Logger) *CascadeController {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CascadeController{logger: logger}
	c.rules = map[transitionKey]cascadeRule{
		{entity.StepDocumentation, entity.ActionApproved}: c.completeStage,
		{entity.StepDocumentation, entity.ActionRejected}: c.bumpRevision,
	}
	return c
}

// HasEffect 该组合是否有级联
func (c *CascadeController) HasEffect(step, action string) bool {
	_, ok := c.rules[transitionKey{step: step, action: action}]
	return ok
}

// Apply 对已完成的日志执行级联；无对应规则时返回 nil
func (c *CascadeController) Apply(ctx context.Context, r *repository.Repositories, log *entity.StageLog) (*CascadeResult, error) {
	if !log.IsCompleted() {
		return nil, nil
	}
	rule, ok := c.rules[transitionKey{step: log.StepName, action: log.Action()}]
	if !ok {
		return nil, nil
	}
	return rule(ctx, r, log)
}

// completeStage 文档环节审批通过：阶段完成、激活下一阶段、累加进度、交付文件
// 加锁顺序：阶段 → 下一阶段 → 项目
func (c *CascadeController) completeStage(ctx context.Context, r *repository.Repositories, log *entity.StageLog) (*CascadeResult, error) {
	stage, err := r.Stage.FindByIDForUpdate(ctx, log.StageID)
	if err != nil {
		return nil, storeErr(err, "stage", log.StageID)
	}
	if stage.Status == entity.StageStatusCompleted {
		return nil, conflict("阶段 %s 已完成，不能重复计入进度", stage.Name)
	}

	completed := entity.StageStatusCompleted
	if _, err := updateStage(ctx, r, stage, repository.StageUpdate{Status: &completed}); err != nil {
		return nil, err
	}
	result := &CascadeResult{
		Effect:    EffectStageCompleted,
		ProjectID: stage.ProjectID,
		StageID:   stage.ID,
		StageName: stage.Name,
	}

	if nextName := entity.NextStageName(stage.Name); nextName != "" {
		next, err := r.Stage.FindByProjectAndNameForUpdate(ctx, stage.ProjectID, nextName)
		switch {
		case repository.IsNotFound(err):
			// 项目未配置下一阶段
		case err != nil:
			return nil, storeErr(err, "stage", stage.ProjectID+"/"+nextName)
		case next.Status != entity.StageStatusCompleted:
			pending := entity.StageStatusPending
			if _, err := updateStage(ctx, r, next, repository.StageUpdate{Status: &pending}); err != nil {
				return nil, err
			}
			result.NextStage = next.Name
		}
	}

	project, err := r.Project.FindByIDForUpdate(ctx, stage.ProjectID)
	if err != nil {
		return nil, storeErr(err, "project", stage.ProjectID)
	}
	progress := min(entity.MaxProgress, project.Progress+stage.Weight)
	upd := repository.ProjectUpdate{Progress: &progress}
	if entity.IsTerminalStage(stage.Name) {
		status := entity.ProjectStatusCompleted
		upd.Status = &status
		result.ProjectCompleted = true
	}
	if err := r.Project.Update(ctx, project.ID, upd); err != nil {
		return nil, storeErr(err, "project", project.ID)
	}
	result.Progress = progress

	added, err := addFinalFiles(ctx, r, log.DrawingID, log.ID, log.IncomingFiles)
	if err != nil {
		return nil, persistErr("写入交付文件", err)
	}
	result.FinalFiles = added

	c.logger.Info("stage completed",
		zap.String("project_id", stage.ProjectID),
		zap.String("stage_id", stage.ID),
		zap.String("stage", stage.Name),
		zap.String("drawing_id", log.DrawingID),
		zap.String("log_id", log.ID),
		zap.Int("progress", progress),
		zap.Bool("project_completed", result.ProjectCompleted),
	)
	return result, nil
}

// bumpRevision 文档环节驳回：阶段版本号递增，进度和状态不变
func (c *CascadeController) bumpRevision(ctx context.Context, r *repository.Repositories, log *entity.StageLog) (*CascadeResult, error) {
	stage, err := r.Stage.FindByIDForUpdate(ctx, log.StageID)
	if err != nil {
		return nil, storeErr(err, "stage", log.StageID)
	}
	revision := NextRevision(stage.Revision)
	if _, err := updateStage(ctx, r, stage, repository.StageUpdate{Revision: &revision}); err != nil {
		return nil, err
	}

	c.logger.Info("revision bumped",
		zap.String("project_id", stage.ProjectID),
		zap.String("stage_id", stage.ID),
		zap.String("drawing_id", log.DrawingID),
		zap.String("log_id", log.ID),
		zap.String("from", stage.Revision),
		zap.String("to", revision),
	)
	return &CascadeResult{
		Effect:    EffectRevisionBumped,
		ProjectID: stage.ProjectID,
		StageID:   stage.ID,
		StageName: stage.Name,
		Revision:  revision,
	}, nil
}
