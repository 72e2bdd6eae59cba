package repository

import (
	"context"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"gorm.io/gorm"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ProjectUpdate 项目可更新字段（白名单）
type ProjectUpdate struct {
	Status           *string
	Progress         *int
	EstimationStatus *string
}

// columns 只输出白名单内且非空的字段
func (u ProjectUpdate) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.Progress != nil {
		cols["progress"] = *u.Progress
	}
	if u.EstimationStatus != nil {
		cols["estimation_status"] = *u.EstimationStatus
	}
	return cols
}

// IsEmpty 没有任何字段需要更新
func (u ProjectUpdate) IsEmpty() bool {
	return len(u.columns()) == 0
}

// Create 创建项目
func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	if project.ID == "" {
		project.ID = newID()
	}
	return r.db.WithContext(ctx).Create(project).Error
}

// FindByID 根据ID查找
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*entity.Project, error) {
	var project entity.Project
	if err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// FindByIDForUpdate 加行锁查找，需在事务中调用
func (r *ProjectRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Project, error) {
	var project entity.Project
	if err := forUpdate(r.db.WithContext(ctx)).First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// Update 按白名单字段部分更新
func (r *ProjectRepository) Update(ctx context.Context, id string, upd ProjectUpdate) error {
	cols := upd.columns()
	if len(cols) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&entity.Project{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
