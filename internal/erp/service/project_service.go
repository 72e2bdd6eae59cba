package service

import (
	"context"
	"strings"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"github.com/bitfantasy/nimo-erp/internal/erp/repository"
	"gorm.io/gorm"
)

// ProjectService 项目服务（只覆盖评审流程需要的部分）
type ProjectService struct {
	repos  *repository.Repositories
	stages *StageService
}

// NewProjectService 创建项目服务
func NewProjectService(repos *repository.Repositories, stages *StageService) *ProjectService {
	return &ProjectService{repos: repos, stages: stages}
}

// CreateProjectInput 创建项目参数
type CreateProjectInput struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// UpdateProjectInput 直接修改项目参数
type UpdateProjectInput struct {
	Status           *string `json:"status"`
	Progress         *int    `json:"progress"`
	EstimationStatus *string `json:"estimation_status"`
}

// CreateProject 创建项目，初始为草稿、进度0
func (s *ProjectService) CreateProject(ctx context.Context, input CreateProjectInput, createdBy string) (*entity.Project, error) {
	var v validator
	v.check(strings.TrimSpace(input.Code) != "", "code", "不能为空")
	v.check(strings.TrimSpace(input.Name) != "", "name", "不能为空")
	v.check(createdBy != "", "created_by", "不能为空")
	if err := v.err(); err != nil {
		return nil, err
	}

	project := &entity.Project{
		Code:      strings.TrimSpace(input.Code),
		Name:      strings.TrimSpace(input.Name),
		Status:    entity.ProjectStatusDraft,
		Progress:  0,
		CreatedBy: createdBy,
	}
	if err := s.repos.Project.Create(ctx, project); err != nil {
		return nil, persistErr("创建项目", err)
	}
	return project, nil
}

// GetProject 获取项目及按顺序排列的阶段
func (s *ProjectService) GetProject(ctx context.Context, id string) (*entity.Project, error) {
	project, err := s.repos.Project.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "project", id)
	}
	stages, err := s.stages.GetStagesByProjectID(ctx, id)
	if err != nil {
		return nil, err
	}
	project.Stages = stages
	return project, nil
}

// UpdateProject 直接修改项目；与级联共用项目行锁，进度只增不减
func (s *ProjectService) UpdateProject(ctx context.Context, id string, input UpdateProjectInput) (*entity.Project, error) {
	var v validator
	if input.Status != nil {
		v.check(entity.IsValidProjectStatus(*input.Status), "status", "不支持的项目状态")
	}
	if input.Progress != nil {
		v.check(*input.Progress >= 0 && *input.Progress <= entity.MaxProgress, "progress", "必须在0-100之间")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	var updated *entity.Project
	err := s.repos.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := s.repos.WithTx(tx)
		project, err := r.Project.FindByIDForUpdate(ctx, id)
		if err != nil {
			return storeErr(err, "project", id)
		}
		if input.Progress != nil && *input.Progress < project.Progress {
			return invalid("progress", "项目进度不能回退")
		}

		upd := repository.ProjectUpdate{
			Status:           input.Status,
			Progress:         input.Progress,
			EstimationStatus: input.EstimationStatus,
		}
		if err := r.Project.Update(ctx, id, upd); err != nil {
			return storeErr(err, "project", id)
		}
		updated, err = r.Project.FindByID(ctx, id)
		return storeErr(err, "project", id)
	})
	if err != nil {
		return nil, passthrough("更新项目", err)
	}
	return updated, nil
}
