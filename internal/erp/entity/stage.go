package entity

import "time"

// 阶段名称（固定顺序）
const (
	StageIDC = "IDC"
	StageIFR = "IFR"
	StageIFA = "IFA"
	StageAFC = "AFC"
)

// StageOrder 阶段顺序 IDC→IFR→IFA→AFC，不从权重或创建时间推导
var StageOrder = []string{StageIDC, StageIFR, StageIFA, StageAFC}

// 阶段状态
const (
	StageStatusPending   = "pending"
	StageStatusCompleted = "completed"
)

// IsValidStageName 校验阶段名称
func IsValidStageName(name string) bool {
	return StageIndex(name) >= 0
}

// StageIndex 阶段在固定顺序中的位置，未知名称返回 -1
func StageIndex(name string) int {
	for i, n := range StageOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// NextStageName 返回下一阶段名称，AFC或未知名称返回 ""
func NextStageName(current string) string {
	i := StageIndex(current)
	if i < 0 || i+1 >= len(StageOrder) {
		return ""
	}
	return StageOrder[i+1]
}

// IsTerminalStage AFC 为最后阶段
func IsTerminalStage(name string) bool {
	return name == StageAFC
}

// IsValidStageStatus 校验阶段状态
func IsValidStageStatus(status string) bool {
	return status == StageStatusPending || status == StageStatusCompleted
}

// Stage 项目阶段
type Stage struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	ProjectID      string    `json:"project_id" gorm:"size:32;not null;uniqueIndex:idx_erp_stage_project_name"`
	Name           string    `json:"name" gorm:"size:8;not null;uniqueIndex:idx_erp_stage_project_name"`
	Weight         int       `json:"weight" gorm:"not null;default:0"`
	AllocatedHours float64   `json:"allocated_hours" gorm:"type:decimal(10,2);default:0"`
	Status         string    `json:"status" gorm:"size:16;not null;default:pending"`
	Revision       string    `json:"revision" gorm:"size:16"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// 关联
	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}

func (Stage) TableName() string {
	return "erp_stages"
}

// StageFile 阶段附件（仅作参考，不参与评审流程）
type StageFile struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	StageID    string    `json:"stage_id" gorm:"size:32;not null;index"`
	FileID     string    `json:"file_id" gorm:"size:64;not null"`
	FileName   string    `json:"file_name" gorm:"size:256"`
	UploadedBy string    `json:"uploaded_by" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

func (StageFile) TableName() string {
	return "erp_stage_files"
}
