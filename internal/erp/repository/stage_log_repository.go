package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"gorm.io/gorm"
)

type StageLogRepository struct {
	db *gorm.DB
}

func NewStageLogRepository(db *gorm.DB) *StageLogRepository {
	return &StageLogRepository{db: db}
}

// StageLogUpdate 日志可更新字段（白名单）
type StageLogUpdate struct {
	Status        *string
	ActionTaken   *string
	Reason        *string
	IsSent        *bool
	OutgoingFiles entity.FileIDs
	CompletedAt   *time.Time
}

func (u StageLogUpdate) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.ActionTaken != nil {
		cols["action_taken"] = *u.ActionTaken
	}
	if u.Reason != nil {
		cols["reason"] = *u.Reason
	}
	if u.IsSent != nil {
		cols["is_sent"] = *u.IsSent
	}
	if u.OutgoingFiles != nil {
		cols["outgoing_files"] = u.OutgoingFiles
	}
	if u.CompletedAt != nil {
		cols["completed_at"] = *u.CompletedAt
	}
	return cols
}

// Create 追加日志
func (r *StageLogRepository) Create(ctx context.Context, log *entity.StageLog) error {
	if log.ID == "" {
		log.ID = newID()
	}
	if log.IncomingFiles == nil {
		log.IncomingFiles = entity.FileIDs{}
	}
	if log.OutgoingFiles == nil {
		log.OutgoingFiles = entity.FileIDs{}
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByID 根据ID查找
func (r *StageLogRepository) FindByID(ctx context.Context, id string) (*entity.StageLog, error) {
	var log entity.StageLog
	if err := r.db.WithContext(ctx).First(&log, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// FindByIDForUpdate 加行锁查找，需在事务中调用
func (r *StageLogRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.StageLog, error) {
	var log entity.StageLog
	if err := forUpdate(r.db.WithContext(ctx)).First(&log, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// ListByDrawing 图纸的全部日志，按创建时间正序
func (r *StageLogRepository) ListByDrawing(ctx context.Context, drawingID string) ([]entity.StageLog, error) {
	var logs []entity.StageLog
	err := r.db.WithContext(ctx).
		Where("drawing_id = ?", drawingID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	return logs, err
}

// Update 按白名单字段部分更新
func (r *StageLogRepository) Update(ctx context.Context, id string, upd StageLogUpdate) error {
	cols := upd.columns()
	if len(cols) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&entity.StageLog{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TaskRow 待办视图：日志 + 图纸 + 阶段 + 项目
type TaskRow struct {
	LogID           string         `json:"log_id"`
	StepName        string         `json:"step_name"`
	Status          string         `json:"status"`
	ActionTaken     *string        `json:"action_taken"`
	Notes           string         `json:"notes"`
	Reason          string         `json:"reason"`
	ForwardedTo     *string        `json:"forwarded_to"`
	IncomingFiles   entity.FileIDs `json:"incoming_files"`
	OutgoingFiles   entity.FileIDs `json:"outgoing_files"`
	IsSent          bool           `json:"is_sent"`
	CreatedBy       string         `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
	DrawingID       string         `json:"drawing_id"`
	DrawingTitle    string         `json:"drawing_title"`
	DrawingType     string         `json:"drawing_type"`
	DrawingRevision string         `json:"drawing_revision"`
	StageID         string         `json:"stage_id"`
	StageName       string         `json:"stage_name"`
	StageRevision   string         `json:"stage_revision"`
	StageStatus     string         `json:"stage_status"`
	ProjectID       string         `json:"project_id"`
	ProjectCode     string         `json:"project_code"`
	ProjectName     string         `json:"project_name"`
	ProjectStatus   string         `json:"project_status"`
}

func (r *StageLogRepository) taskQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("erp_stage_logs AS l").
		Select(`l.id AS log_id, l.step_name, l.status, l.action_taken, l.notes, l.reason, l.forwarded_to,
			l.incoming_files, l.outgoing_files, l.is_sent, l.created_by, l.created_at,
			d.id AS drawing_id, d.title AS drawing_title, d.drawing_type, d.revision AS drawing_revision,
			s.id AS stage_id, s.name AS stage_name, s.revision AS stage_revision, s.status AS stage_status,
			p.id AS project_id, p.code AS project_code, p.name AS project_name, p.status AS project_status`).
		Joins("JOIN erp_drawings d ON d.id = l.drawing_id").
		Joins("JOIN erp_stages s ON s.id = l.stage_id").
		Joins("JOIN erp_projects p ON p.id = d.project_id")
}

// FindTask 单条日志的待办视图
func (r *StageLogRepository) FindTask(ctx context.Context, logID string) (*TaskRow, error) {
	var rows []TaskRow
	if err := r.taskQuery(ctx).Where("l.id = ?", logID).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ListOpenTasksByAssignee 转交给某用户且未完成的日志
func (r *StageLogRepository) ListOpenTasksByAssignee(ctx context.Context, userID string) ([]TaskRow, error) {
	var rows []TaskRow
	err := r.taskQuery(ctx).
		Where("l.forwarded_to = ? AND l.status <> ?", userID, entity.LogStatusCompleted).
		Order("l.created_at ASC, l.id ASC").
		Scan(&rows).Error
	return rows, err
}
