package entity

import "time"

// Drawing 技术图纸，任一时刻只属于一个阶段
type Drawing struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	ProjectID      string    `json:"project_id" gorm:"size:32;not null;index"`
	StageID        string    `json:"stage_id" gorm:"size:32;not null;index"`
	Title          string    `json:"title" gorm:"size:256;not null"`
	DrawingType    string    `json:"drawing_type" gorm:"size:32"`
	Revision       string    `json:"revision" gorm:"size:16"`
	Weightage      float64   `json:"weightage" gorm:"type:decimal(6,2);default:0"`
	AllocatedHours float64   `json:"allocated_hours" gorm:"type:decimal(10,2);default:0"`
	UploadedBy     string    `json:"uploaded_by" gorm:"size:32;not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// 关联
	Stage      *Stage             `json:"stage,omitempty" gorm:"foreignKey:StageID"`
	Logs       []StageLog         `json:"logs,omitempty" gorm:"foreignKey:DrawingID"`
	FinalFiles []DrawingFinalFile `json:"final_files,omitempty" gorm:"foreignKey:DrawingID"`
}

func (Drawing) TableName() string {
	return "erp_drawings"
}

// DrawingFinalFile 图纸交付文件（文档环节审批通过时写入）
type DrawingFinalFile struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	DrawingID string    `json:"drawing_id" gorm:"size:32;not null;index"`
	FileID    string    `json:"file_id" gorm:"size:64;not null"`
	LogID     string    `json:"log_id" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
}

func (DrawingFinalFile) TableName() string {
	return "erp_drawing_final_files"
}
