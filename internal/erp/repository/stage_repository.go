package repository

import (
	"context"
	"sort"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"gorm.io/gorm"
)

type StageRepository struct {
	db *gorm.DB
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db: db}
}

// StageUpdate 阶段创建后只允许修改 status 和 revision
type StageUpdate struct {
	Status   *string
	Revision *string
}

func (u StageUpdate) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.Revision != nil {
		cols["revision"] = *u.Revision
	}
	return cols
}

// IsEmpty 没有任何字段需要更新
func (u StageUpdate) IsEmpty() bool {
	return len(u.columns()) == 0
}

// Create 创建阶段
func (r *StageRepository) Create(ctx context.Context, stage *entity.Stage) error {
	if stage.ID == "" {
		stage.ID = newID()
	}
	return r.db.WithContext(ctx).Create(stage).Error
}

// FindByID 根据ID查找
func (r *StageRepository) FindByID(ctx context.Context, id string) (*entity.Stage, error) {
	var stage entity.Stage
	if err := r.db.WithContext(ctx).First(&stage, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &stage, nil
}

// FindByIDForUpdate 加行锁查找，需在事务中调用
func (r *StageRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Stage, error) {
	var stage entity.Stage
	if err := forUpdate(r.db.WithContext(ctx)).First(&stage, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &stage, nil
}

// FindByProjectAndName 按项目+阶段名查找
func (r *StageRepository) FindByProjectAndName(ctx context.Context, projectID, name string) (*entity.Stage, error) {
	var stage entity.Stage
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND name = ?", projectID, name).
		First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// FindByProjectAndNameForUpdate 加行锁按项目+阶段名查找
func (r *StageRepository) FindByProjectAndNameForUpdate(ctx context.Context, projectID, name string) (*entity.Stage, error) {
	var stage entity.Stage
	err := forUpdate(r.db.WithContext(ctx)).
		Where("project_id = ? AND name = ?", projectID, name).
		First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// ExistsByProjectAndName 项目下是否已有同名阶段
func (r *StageRepository) ExistsByProjectAndName(ctx context.Context, projectID, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Stage{}).
		Where("project_id = ? AND name = ?", projectID, name).
		Count(&count).Error
	return count > 0, err
}

// ListByProject 按固定阶段顺序返回项目所有阶段
func (r *StageRepository) ListByProject(ctx context.Context, projectID string) ([]entity.Stage, error) {
	var stages []entity.Stage
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Find(&stages).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(stages, func(i, j int) bool {
		return entity.StageIndex(stages[i].Name) < entity.StageIndex(stages[j].Name)
	})
	return stages, nil
}

// Update 按白名单字段部分更新
func (r *StageRepository) Update(ctx context.Context, id string, upd StageUpdate) error {
	cols := upd.columns()
	if len(cols) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&entity.Stage{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateFiles 批量写入阶段附件
func (r *StageRepository) CreateFiles(ctx context.Context, files []entity.StageFile) error {
	if len(files) == 0 {
		return nil
	}
	for i := range files {
		if files[i].ID == "" {
			files[i].ID = newID()
		}
	}
	return r.db.WithContext(ctx).Create(&files).Error
}

// ListFiles 阶段附件列表
func (r *StageRepository) ListFiles(ctx context.Context, stageID string) ([]entity.StageFile, error) {
	var files []entity.StageFile
	err := r.db.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Order("created_at ASC").
		Find(&files).Error
	return files, err
}
