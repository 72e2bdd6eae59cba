package service

import (
	"context"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"github.com/bitfantasy/nimo-erp/internal/erp/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StageLogService 图纸流转日志（状态机）及审核路由
type StageLogService struct {
	repos   *repository.Repositories
	cascade *CascadeController
	cache   *StageCache
	logger  *zap.Logger
}

// NewStageLogService 创建日志服务
func NewStageLogService(repos *repository.Repositories, cascade *CascadeController, cache *StageCache, logger *zap.Logger) *StageLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageLogService{repos: repos, cascade: cascade, cache: cache, logger: logger}
}

// AddLogInput 追加日志参数
type AddLogInput struct {
	StepName    string   `json:"step_name" binding:"required"`
	Status      string   `json:"status"`
	Notes       string   `json:"notes"`
	Files       []string `json:"files"`
	ForwardedTo string   `json:"forwarded_to"`
}

// UpdateLogInput 更新日志参数，nil 表示不修改
type UpdateLogInput struct {
	Status          string   `json:"status"`
	ActionTaken     *string  `json:"action_taken"`
	Reason          *string  `json:"reason"`
	IsSent          *bool    `json:"is_sent"`
	UploadedFileIDs []string `json:"uploaded_files_ids"`
}

// AdvanceInput 完成当前环节并转交下一环节
type AdvanceInput struct {
	ActionTaken   string   `json:"action_taken"`
	Reason        string   `json:"reason"`
	Notes         string   `json:"notes"`
	OutgoingFiles []string `json:"outgoing_files"`
	ForwardedTo   string   `json:"forwarded_to"`
}

// AdvanceResult 路由结果
type AdvanceResult struct {
	Completed *entity.StageLog `json:"completed"`
	Next      *entity.StageLog `json:"next,omitempty"`
	Cascade   *CascadeResult   `json:"cascade,omitempty"`
}

// AddDrawingStageLog 追加日志，阶段取图纸当前所在阶段
func (s *StageLogService) AddDrawingStageLog(ctx context.Context, drawingID string, input AddLogInput, userID string) (*entity.StageLog, error) {
	status := input.Status
	if status == "" {
		status = entity.LogStatusNotStarted
	}
	var v validator
	v.check(entity.IsValidStep(input.StepName), "step_name", "环节必须为 drafting/checking/approval/documentation 之一")
	v.check(status == entity.LogStatusNotStarted || status == entity.LogStatusInProgress, "status", "新日志状态只能是 not_started 或 in_progress")
	v.check(userID != "", "user_id", "不能为空")
	if err := v.err(); err != nil {
		return nil, err
	}

	drawing, err := s.repos.Drawing.FindByID(ctx, drawingID)
	if err != nil {
		return nil, storeErr(err, "drawing", drawingID)
	}

	log := &entity.StageLog{
		DrawingID:     drawing.ID,
		StageID:       drawing.StageID,
		StepName:      input.StepName,
		Status:        status,
		Notes:         input.Notes,
		ForwardedTo:   optionalString(input.ForwardedTo),
		IncomingFiles: entity.FileIDs(input.Files).Dedup(),
		OutgoingFiles: entity.FileIDs{},
		CreatedBy:     userID,
	}
	if err := s.repos.StageLog.Create(ctx, log); err != nil {
		return nil, persistErr("创建日志", err)
	}
	return log, nil
}

// UpdateDrawingLog 更新日志并在同一事务中执行级联；已完成的日志不可再修改
func (s *StageLogService) UpdateDrawingLog(ctx context.Context, logID string, input UpdateLogInput) (*entity.StageLog, error) {
	var (
		updated *entity.StageLog
		cascade *CascadeResult
	)
	err := s.repos.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := s.repos.WithTx(tx)
		log, err := r.StageLog.FindByIDForUpdate(ctx, logID)
		if err != nil {
			return storeErr(err, "stage log", logID)
		}
		updated, cascade, err = s.applyLogUpdate(ctx, r, log, input)
		return err
	})
	if err != nil {
		return nil, passthrough("更新日志", err)
	}
	s.afterCommit(ctx, cascade)
	return updated, nil
}

// AdvanceDrawing 完成进行中的日志，执行级联，并按路由表追加下一环节日志
func (s *StageLogService) AdvanceDrawing(ctx context.Context, logID string, input AdvanceInput, userID string) (*AdvanceResult, error) {
	if userID == "" {
		return nil, invalid("user_id", "不能为空")
	}

	result := &AdvanceResult{}
	err := s.repos.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := s.repos.WithTx(tx)
		log, err := r.StageLog.FindByIDForUpdate(ctx, logID)
		if err != nil {
			return storeErr(err, "stage log", logID)
		}
		if log.IsCompleted() {
			return conflict("日志 %s 已完成", log.ID)
		}
		if log.Status != entity.LogStatusInProgress {
			return conflict("日志 %s 尚未开始处理", log.ID)
		}

		var action *string
		if entity.IsReviewStep(log.StepName) {
			action = &input.ActionTaken
		} else if input.ActionTaken != "" {
			return invalid("action_taken", "绘图环节没有审核结论")
		}
		nextStep, ok := NextStep(log.StepName, input.ActionTaken)
		if !ok {
			return invalid("action_taken", "审核结论必须为 approved 或 rejected")
		}
		if nextStep != "" && strings.TrimSpace(input.ForwardedTo) == "" {
			return invalid("forwarded_to", "转交下一环节时必须指定处理人")
		}

		upd := UpdateLogInput{
			Status:          entity.LogStatusCompleted,
			ActionTaken:     action,
			UploadedFileIDs: input.OutgoingFiles,
		}
		if input.Reason != "" {
			upd.Reason = &input.Reason
		}
		if nextStep != "" {
			sent := true
			upd.IsSent = &sent
		}
		completed, cascade, err := s.applyLogUpdate(ctx, r, log, upd)
		if err != nil {
			return err
		}
		result.Completed = completed
		result.Cascade = cascade
		if nextStep == "" {
			return nil
		}

		drawing, err := r.Drawing.FindByID(ctx, log.DrawingID)
		if err != nil {
			return storeErr(err, "drawing", log.DrawingID)
		}
		next := &entity.StageLog{
			DrawingID:     drawing.ID,
			StageID:       drawing.StageID,
			StepName:      nextStep,
			Status:        entity.LogStatusNotStarted,
			Notes:         input.Notes,
			ForwardedTo:   optionalString(input.ForwardedTo),
			IncomingFiles: completed.OutgoingFiles.Clone(),
			OutgoingFiles: entity.FileIDs{},
			CreatedBy:     userID,
		}
		if err := r.StageLog.Create(ctx, next); err != nil {
			return persistErr("创建日志", err)
		}
		result.Next = next
		return nil
	})
	if err != nil {
		return nil, passthrough("流转图纸", err)
	}
	s.afterCommit(ctx, result.Cascade)
	return result, nil
}

// applyLogUpdate 在已加锁的日志上校验并写入更新，完成时执行级联
func (s *StageLogService) applyLogUpdate(ctx context.Context, r *repository.Repositories, log *entity.StageLog, input UpdateLogInput) (*entity.StageLog, *CascadeResult, error) {
	if log.IsCompleted() {
		return nil, nil, conflict("日志 %s 已完成，不能修改", log.ID)
	}
	upd, err := buildLogUpdate(log, input, time.Now())
	if err != nil {
		return nil, nil, err
	}
	if err := r.StageLog.Update(ctx, log.ID, upd); err != nil {
		return nil, nil, storeErr(err, "stage log", log.ID)
	}
	updated, err := r.StageLog.FindByID(ctx, log.ID)
	if err != nil {
		return nil, nil, storeErr(err, "stage log", log.ID)
	}
	cascade, err := s.cascade.Apply(ctx, r, updated)
	if err != nil {
		return nil, nil, err
	}
	return updated, cascade, nil
}

// buildLogUpdate 校验状态迁移和审核结论，生成白名单更新
func buildLogUpdate(log *entity.StageLog, input UpdateLogInput, now time.Time) (repository.StageLogUpdate, error) {
	var upd repository.StageLogUpdate

	status := input.Status
	if status == "" {
		status = log.Status
	}
	cur, next := entity.LogStatusRank(log.Status), entity.LogStatusRank(status)
	if next < 0 {
		return upd, invalid("status", "状态必须为 not_started/in_progress/completed 之一")
	}
	if next != cur && next != cur+1 {
		return upd, invalid("status", "状态只能按 not_started → in_progress → completed 顺序推进")
	}
	completing := status == entity.LogStatusCompleted

	action := ""
	if input.ActionTaken != nil {
		action = strings.TrimSpace(*input.ActionTaken)
	}
	var v validator
	switch {
	case completing && entity.IsReviewStep(log.StepName):
		v.check(action != "", "action_taken", "审核环节完成时必须填写审核结论")
		v.check(action == "" || entity.IsValidAction(action), "action_taken", "审核结论必须为 approved 或 rejected")
	case action != "":
		v.check(false, "action_taken", "只有审核环节完成时才能填写审核结论")
	}
	reason := ""
	if input.Reason != nil {
		reason = strings.TrimSpace(*input.Reason)
	}
	if action == entity.ActionRejected {
		v.check(reason != "", "reason", "驳回时必须填写原因")
	}
	if err := v.err(); err != nil {
		return upd, err
	}

	if status != log.Status {
		upd.Status = &status
	}
	if completing {
		upd.CompletedAt = &now
		if action != "" {
			upd.ActionTaken = &action
		}
	}
	if input.Reason != nil {
		upd.Reason = &reason
	}
	if input.IsSent != nil {
		upd.IsSent = input.IsSent
	}
	if input.UploadedFileIDs != nil {
		upd.OutgoingFiles = entity.FileIDs(input.UploadedFileIDs).Dedup()
	}
	return upd, nil
}

// afterCommit 事务提交后清理阶段缓存
func (s *StageLogService) afterCommit(ctx context.Context, cascade *CascadeResult) {
	if cascade == nil || cascade.Effect == EffectNone {
		return
	}
	s.cache.Invalidate(ctx, cascade.ProjectID)
}

// GetUserAssignedTaskByLogID 日志的待办视图
func (s *StageLogService) GetUserAssignedTaskByLogID(ctx context.Context, logID string) (*repository.TaskRow, error) {
	task, err := s.repos.StageLog.FindTask(ctx, logID)
	if err != nil {
		return nil, storeErr(err, "stage log", logID)
	}
	return task, nil
}

// ListAssignedTasks 转交给用户且未完成的日志
func (s *StageLogService) ListAssignedTasks(ctx context.Context, userID string) ([]repository.TaskRow, error) {
	if userID == "" {
		return nil, invalid("user_id", "不能为空")
	}
	tasks, err := s.repos.StageLog.ListOpenTasksByAssignee(ctx, userID)
	if err != nil {
		return nil, persistErr("查询待办", err)
	}
	if tasks == nil {
		tasks = []repository.TaskRow{}
	}
	return tasks, nil
}

// GetDrawingLogs 图纸全部日志，按时间正序
func (s *StageLogService) GetDrawingLogs(ctx context.Context, drawingID string) ([]entity.StageLog, error) {
	if _, err := s.repos.Drawing.FindByID(ctx, drawingID); err != nil {
		return nil, storeErr(err, "drawing", drawingID)
	}
	logs, err := s.repos.StageLog.ListByDrawing(ctx, drawingID)
	if err != nil {
		return nil, persistErr("查询日志", err)
	}
	if logs == nil {
		logs = []entity.StageLog{}
	}
	return logs, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
