package service

import (
	"context"
	"strings"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"github.com/bitfantasy/nimo-erp/internal/erp/repository"
	"go.uber.org/zap"
)

// FileLocator 把文件ID解析为可下载地址，由文件服务实现
type FileLocator interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

// DrawingService 图纸登记
type DrawingService struct {
	repos   *repository.Repositories
	locator FileLocator
	logger  *zap.Logger
}

// NewDrawingService 创建图纸服务
func NewDrawingService(repos *repository.Repositories, locator FileLocator, logger *zap.Logger) *DrawingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DrawingService{repos: repos, locator: locator, logger: logger}
}

// CreateDrawingInput 创建图纸参数
type CreateDrawingInput struct {
	StageID        string  `json:"stage_id" binding:"required"`
	Title          string  `json:"title" binding:"required"`
	DrawingType    string  `json:"drawing_type"`
	Revision       string  `json:"revision"`
	Weightage      float64 `json:"weightage"`
	AllocatedHours float64 `json:"allocated_hours"`
}

// FinalFile 项目交付文件
type FinalFile struct {
	repository.FinalFileRow
	URL string `json:"url"`
}

// CreateDrawing 创建图纸，阶段必须属于该项目；未指定版本时沿用阶段版本
func (s *DrawingService) CreateDrawing(ctx context.Context, projectID string, input CreateDrawingInput, uploadedBy string) (*entity.Drawing, error) {
	var v validator
	v.check(strings.TrimSpace(input.StageID) != "", "stage_id", "不能为空")
	v.check(strings.TrimSpace(input.Title) != "", "title", "不能为空")
	v.check(uploadedBy != "", "uploaded_by", "不能为空")
	v.check(input.Weightage >= 0, "weightage", "不能为负数")
	v.check(input.AllocatedHours >= 0, "allocated_hours", "不能为负数")
	if err := v.err(); err != nil {
		return nil, err
	}

	if _, err := s.repos.Project.FindByID(ctx, projectID); err != nil {
		return nil, storeErr(err, "project", projectID)
	}
	stage, err := s.repos.Stage.FindByID(ctx, input.StageID)
	if err != nil {
		return nil, storeErr(err, "stage", input.StageID)
	}
	if stage.ProjectID != projectID {
		return nil, invalid("stage_id", "阶段不属于该项目")
	}

	revision := strings.TrimSpace(input.Revision)
	if revision == "" {
		revision = stage.Revision
	}
	drawing := &entity.Drawing{
		ProjectID:      projectID,
		StageID:        stage.ID,
		Title:          strings.TrimSpace(input.Title),
		DrawingType:    input.DrawingType,
		Revision:       revision,
		Weightage:      input.Weightage,
		AllocatedHours: input.AllocatedHours,
		UploadedBy:     uploadedBy,
	}
	if err := s.repos.Drawing.Create(ctx, drawing); err != nil {
		return nil, persistErr("创建图纸", err)
	}
	return drawing, nil
}

// GetDrawingsWithLogs 项目图纸及流转日志，stageID 可为空
func (s *DrawingService) GetDrawingsWithLogs(ctx context.Context, projectID, stageID string) ([]entity.Drawing, error) {
	if _, err := s.repos.Project.FindByID(ctx, projectID); err != nil {
		return nil, storeErr(err, "project", projectID)
	}
	drawings, err := s.repos.Drawing.ListWithLogs(ctx, projectID, stageID)
	if err != nil {
		return nil, persistErr("查询图纸", err)
	}
	if drawings == nil {
		drawings = []entity.Drawing{}
	}
	return drawings, nil
}

// GetFinalFilesByProjectID 项目交付文件，附带下载地址
func (s *DrawingService) GetFinalFilesByProjectID(ctx context.Context, projectID string) ([]FinalFile, error) {
	if _, err := s.repos.Project.FindByID(ctx, projectID); err != nil {
		return nil, storeErr(err, "project", projectID)
	}
	rows, err := s.repos.Drawing.ListFinalFilesByProject(ctx, projectID)
	if err != nil {
		return nil, persistErr("查询交付文件", err)
	}

	files := make([]FinalFile, 0, len(rows))
	for _, row := range rows {
		f := FinalFile{FinalFileRow: row}
		if s.locator != nil {
			url, err := s.locator.FileURL(ctx, row.FileID)
			if err != nil {
				s.logger.Warn("resolve final file url failed", zap.String("file_id", row.FileID), zap.Error(err))
			} else {
				f.URL = url
			}
		}
		files = append(files, f)
	}
	return files, nil
}

// addFinalFiles 追加交付文件，已存在的文件ID跳过；只由级联调用
func addFinalFiles(ctx context.Context, r *repository.Repositories, drawingID, logID string, fileIDs entity.FileIDs) ([]string, error) {
	candidates := fileIDs.Dedup()
	if len(candidates) == 0 {
		return nil, nil
	}
	existing, err := r.Drawing.ListFinalFiles(ctx, drawingID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, f := range existing {
		seen[f.FileID] = struct{}{}
	}
	added := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if _, ok := seen[id]; ok {
			continue
		}
		added = append(added, id)
	}
	if err := r.Drawing.AddFinalFiles(ctx, drawingID, logID, added); err != nil {
		return nil, err
	}
	return added, nil
}
