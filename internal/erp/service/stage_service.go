package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"github.com/bitfantasy/nimo-erp/internal/erp/repository"
	"gorm.io/gorm"
)

// StageService 阶段登记
type StageService struct {
	repos *repository.Repositories
	cache *StageCache
}

// NewStageService 创建阶段服务
func NewStageService(repos *repository.Repositories, cache *StageCache) *StageService {
	return &StageService{repos: repos, cache: cache}
}

// CreateStageInput 创建阶段参数
type CreateStageInput struct {
	Name           string  `json:"name" binding:"required"`
	Weight         int     `json:"weight"`
	AllocatedHours float64 `json:"allocated_hours"`
	Revision       string  `json:"revision"`
}

// StageFileInput 阶段附件
type StageFileInput struct {
	FileID   string `json:"file_id" binding:"required"`
	FileName string `json:"file_name"`
}

// CreateStage 创建阶段，同一项目下阶段名唯一
func (s *StageService) CreateStage(ctx context.Context, projectID string, input CreateStageInput) (*entity.Stage, error) {
	name := strings.TrimSpace(input.Name)
	var v validator
	v.check(entity.IsValidStageName(name), "name", "阶段必须为 IDC/IFR/IFA/AFC 之一")
	v.check(input.Weight >= 0 && input.Weight <= entity.MaxProgress, "weight", "必须在0-100之间")
	v.check(input.AllocatedHours >= 0, "allocated_hours", "不能为负数")
	if err := v.err(); err != nil {
		return nil, err
	}

	if _, err := s.repos.Project.FindByID(ctx, projectID); err != nil {
		return nil, storeErr(err, "project", projectID)
	}
	exists, err := s.repos.Stage.ExistsByProjectAndName(ctx, projectID, name)
	if err != nil {
		return nil, persistErr("查询阶段", err)
	}
	if exists {
		return nil, invalid("name", "该项目已存在阶段 "+name)
	}

	stage := &entity.Stage{
		ProjectID:      projectID,
		Name:           name,
		Weight:         input.Weight,
		AllocatedHours: input.AllocatedHours,
		Status:         entity.StageStatusPending,
		Revision:       input.Revision,
	}
	if err := s.repos.Stage.Create(ctx, stage); err != nil {
		// 并发创建时由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid("name", "该项目已存在阶段 "+name)
		}
		return nil, persistErr("创建阶段", err)
	}
	s.cache.Invalidate(ctx, projectID)
	return stage, nil
}

// GetStageIDByProjectAndName 按项目和阶段名查阶段ID
func (s *StageService) GetStageIDByProjectAndName(ctx context.Context, projectID, name string) (string, error) {
	stage, err := s.repos.Stage.FindByProjectAndName(ctx, projectID, name)
	if err != nil {
		return "", storeErr(err, "stage", projectID+"/"+name)
	}
	return stage.ID, nil
}

// GetNextStage 固定顺序的下一阶段，AFC之后返回 ""
func (s *StageService) GetNextStage(currentName string) string {
	return entity.NextStageName(currentName)
}

// GetStagesByProjectID 项目阶段列表（IDC→AFC），优先读缓存
func (s *StageService) GetStagesByProjectID(ctx context.Context, projectID string) ([]entity.Stage, error) {
	if stages, ok := s.cache.Get(ctx, projectID); ok {
		return stages, nil
	}
	stages, err := s.repos.Stage.ListByProject(ctx, projectID)
	if err != nil {
		return nil, persistErr("查询阶段列表", err)
	}
	s.cache.Set(ctx, projectID, stages)
	return stages, nil
}

// PartialUpdateStage 部分更新阶段，只允许 status/revision；已完成的阶段不能重新打开
func (s *StageService) PartialUpdateStage(ctx context.Context, stageID string, upd repository.StageUpdate) (*entity.Stage, error) {
	if upd.IsEmpty() {
		return nil, invalid("stage", "没有需要更新的字段")
	}
	if upd.Status != nil && !entity.IsValidStageStatus(*upd.Status) {
		return nil, invalid("status", "阶段状态必须为 pending 或 completed")
	}

	var updated *entity.Stage
	err := s.repos.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := s.repos.WithTx(tx)
		stage, err := r.Stage.FindByIDForUpdate(ctx, stageID)
		if err != nil {
			return storeErr(err, "stage", stageID)
		}
		updated, err = updateStage(ctx, r, stage, upd)
		return err
	})
	if err != nil {
		return nil, passthrough("更新阶段", err)
	}
	s.cache.Invalidate(ctx, updated.ProjectID)
	return updated, nil
}

// updateStage 在已加锁的阶段上执行部分更新，级联和直接修改共用
func updateStage(ctx context.Context, r *repository.Repositories, stage *entity.Stage, upd repository.StageUpdate) (*entity.Stage, error) {
	if upd.Status != nil && stage.Status == entity.StageStatusCompleted && *upd.Status != entity.StageStatusCompleted {
		return nil, conflict("阶段 %s 已完成，不能重新打开", stage.Name)
	}
	if err := r.Stage.Update(ctx, stage.ID, upd); err != nil {
		return nil, storeErr(err, "stage", stage.ID)
	}
	out := *stage
	if upd.Status != nil {
		out.Status = *upd.Status
	}
	if upd.Revision != nil {
		out.Revision = *upd.Revision
	}
	return &out, nil
}

// UploadStageFiles 挂载阶段附件，返回写入数量
func (s *StageService) UploadStageFiles(ctx context.Context, stageID string, files []StageFileInput, uploadedBy string) (int, error) {
	if len(files) == 0 {
		return 0, invalid("files", "至少需要一个文件")
	}
	for _, f := range files {
		if strings.TrimSpace(f.FileID) == "" {
			return 0, invalid("file_id", "不能为空")
		}
	}
	if _, err := s.repos.Stage.FindByID(ctx, stageID); err != nil {
		return 0, storeErr(err, "stage", stageID)
	}

	rows := make([]entity.StageFile, 0, len(files))
	for _, f := range files {
		rows = append(rows, entity.StageFile{
			StageID:    stageID,
			FileID:     strings.TrimSpace(f.FileID),
			FileName:   f.FileName,
			UploadedBy: uploadedBy,
		})
	}
	if err := s.repos.Stage.CreateFiles(ctx, rows); err != nil {
		return 0, persistErr("保存阶段附件", err)
	}
	return len(rows), nil
}

// ListStageFiles 阶段附件列表
func (s *StageService) ListStageFiles(ctx context.Context, stageID string) ([]entity.StageFile, error) {
	if _, err := s.repos.Stage.FindByID(ctx, stageID); err != nil {
		return nil, storeErr(err, "stage", stageID)
	}
	files, err := s.repos.Stage.ListFiles(ctx, stageID)
	if err != nil {
		return nil, persistErr("查询阶段附件", err)
	}
	return files, nil
}
