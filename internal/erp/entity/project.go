package entity

import "time"

// 项目状态
const (
	ProjectStatusDraft      = "draft"
	ProjectStatusEstimating = "estimating"
	ProjectStatusWorking    = "working"
	ProjectStatusCompleted  = "completed"
	ProjectStatusRejected   = "rejected"
	ProjectStatusDelivered  = "delivered"
)

// ProjectStatuses 合法的项目状态
var ProjectStatuses = []string{
	ProjectStatusDraft,
	ProjectStatusEstimating,
	ProjectStatusWorking,
	ProjectStatusCompleted,
	ProjectStatusRejected,
	ProjectStatusDelivered,
}

// IsValidProjectStatus 校验项目状态
func IsValidProjectStatus(status string) bool {
	for _, s := range ProjectStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// MaxProgress 项目进度上限
const MaxProgress = 100

// Project 工程项目
type Project struct {
	ID               string    `json:"id" gorm:"primaryKey;size:32"`
	Code             string    `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name             string    `json:"name" gorm:"size:128;not null"`
	Status           string    `json:"status" gorm:"size:16;not null;default:draft"`
	Progress         int       `json:"progress" gorm:"not null;default:0"`
	EstimationStatus string    `json:"estimation_status" gorm:"size:32"`
	CreatedBy        string    `json:"created_by" gorm:"size:32;not null"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// 关联
	Stages []Stage `json:"stages,omitempty" gorm:"foreignKey:ProjectID"`
}

func (Project) TableName() string {
	return "erp_projects"
}
