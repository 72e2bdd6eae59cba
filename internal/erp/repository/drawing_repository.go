package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"gorm.io/gorm"
)

type DrawingRepository struct {
	db *gorm.DB
}

func NewDrawingRepository(db *gorm.DB) *DrawingRepository {
	return &DrawingRepository{db: db}
}

// FinalFileRow 项目交付文件查询结果
type FinalFileRow struct {
	DrawingID    string    `json:"drawing_id"`
	DrawingTitle string    `json:"drawing_title"`
	StageID      string    `json:"stage_id"`
	StageName    string    `json:"stage_name"`
	FileID       string    `json:"file_id"`
	LogID        string    `json:"log_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Create 创建图纸
func (r *DrawingRepository) Create(ctx context.Context, drawing *entity.Drawing) error {
	if drawing.ID == "" {
		drawing.ID = newID()
	}
	return r.db.WithContext(ctx).Create(drawing).Error
}

// FindByID 根据ID查找
func (r *DrawingRepository) FindByID(ctx context.Context, id string) (*entity.Drawing, error) {
	var drawing entity.Drawing
	if err := r.db.WithContext(ctx).First(&drawing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &drawing, nil
}

// ListWithLogs 项目下图纸及其流转日志（日志按时间正序），stageID 为空时不过滤
func (r *DrawingRepository) ListWithLogs(ctx context.Context, projectID, stageID string) ([]entity.Drawing, error) {
	var drawings []entity.Drawing
	query := r.db.WithContext(ctx).
		Preload("Logs", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("project_id = ?", projectID)
	if stageID != "" {
		query = query.Where("stage_id = ?", stageID)
	}
	err := query.Order("created_at ASC").Find(&drawings).Error
	return drawings, err
}

// AddFinalFiles 追加交付文件
func (r *DrawingRepository) AddFinalFiles(ctx context.Context, drawingID, logID string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	rows := make([]entity.DrawingFinalFile, 0, len(fileIDs))
	for _, fid := range fileIDs {
		rows = append(rows, entity.DrawingFinalFile{
			ID:        newID(),
			DrawingID: drawingID,
			FileID:    fid,
			LogID:     logID,
		})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// ListFinalFiles 单张图纸的交付文件
func (r *DrawingRepository) ListFinalFiles(ctx context.Context, drawingID string) ([]entity.DrawingFinalFile, error) {
	var files []entity.DrawingFinalFile
	err := r.db.WithContext(ctx).
		Where("drawing_id = ?", drawingID).
		Order("created_at ASC").
		Find(&files).Error
	return files, err
}

// ListFinalFilesByProject 项目下全部交付文件
func (r *DrawingRepository) ListFinalFilesByProject(ctx context.Context, projectID string) ([]FinalFileRow, error) {
	var rows []FinalFileRow
	err := r.db.WithContext(ctx).
		Table("erp_drawing_final_files AS f").
		Select("f.drawing_id, d.title AS drawing_title, s.id AS stage_id, s.name AS stage_name, f.file_id, f.log_id, f.created_at").
		Joins("JOIN erp_drawings d ON d.id = f.drawing_id").
		Joins("JOIN erp_stages s ON s.id = d.stage_id").
		Where("d.project_id = ?", projectID).
		Order("f.created_at ASC, f.id ASC").
		Scan(&rows).Error
	return rows, err
}
