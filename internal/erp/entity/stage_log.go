package entity

import "time"

// 流程环节（固定顺序）
const (
	StepDrafting      = "drafting"
	StepChecking      = "checking"
	StepApproval      = "approval"
	StepDocumentation = "documentation"
)

// StepOrder 环节顺序
var StepOrder = []string{StepDrafting, StepChecking, StepApproval, StepDocumentation}

// 日志状态 not_started → in_progress → completed
const (
	LogStatusNotStarted = "not_started"
	LogStatusInProgress = "in_progress"
	LogStatusCompleted  = "completed"
)

// 审核结论
const (
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

// IsValidStep 校验环节名称
func IsValidStep(step string) bool {
	for _, s := range StepOrder {
		if s == step {
			return true
		}
	}
	return false
}

// IsReviewStep 只有审核环节有 action_taken
func IsReviewStep(step string) bool {
	return step == StepChecking || step == StepApproval || step == StepDocumentation
}

// IsValidAction 校验审核结论
func IsValidAction(action string) bool {
	return action == ActionApproved || action == ActionRejected
}

// LogStatusRank 状态序号，未知状态返回 -1
func LogStatusRank(status string) int {
	switch status {
	case LogStatusNotStarted:
		return 0
	case LogStatusInProgress:
		return 1
	case LogStatusCompleted:
		return 2
	}
	return -1
}

// StageLog 图纸流转日志，记录一次环节处理
type StageLog struct {
	ID            string     `json:"id" gorm:"primaryKey;size:32"`
	DrawingID     string     `json:"drawing_id" gorm:"size:32;not null;index:idx_erp_log_drawing"`
	StageID       string     `json:"stage_id" gorm:"size:32;not null;index"`
	StepName      string     `json:"step_name" gorm:"size:16;not null"`
	Status        string     `json:"status" gorm:"size:16;not null;default:not_started"`
	ActionTaken   *string    `json:"action_taken" gorm:"size:16"`
	Notes         string     `json:"notes" gorm:"type:text"`
	Reason        string     `json:"reason" gorm:"type:text"`
	ForwardedTo   *string    `json:"forwarded_to" gorm:"size:32;index"`
	IncomingFiles FileIDs    `json:"incoming_files" gorm:"type:jsonb"`
	OutgoingFiles FileIDs    `json:"outgoing_files" gorm:"type:jsonb"`
	IsSent        bool       `json:"is_sent" gorm:"not null;default:false"`
	CreatedBy     string     `json:"created_by" gorm:"size:32"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at" gorm:"index:idx_erp_log_drawing"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (StageLog) TableName() string {
	return "erp_stage_logs"
}

// IsCompleted 日志是否已完成
func (l *StageLog) IsCompleted() bool {
	return l.Status == LogStatusCompleted
}

// Action 返回审核结论，未设置时为 ""
func (l *StageLog) Action() string {
	if l.ActionTaken == nil {
		return ""
	}
	return *l.ActionTaken
}
