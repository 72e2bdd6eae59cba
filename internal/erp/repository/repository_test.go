package repository

import (
	"testing"
	"time"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func TestStageUpdateColumnsAllowList(t *testing.T) {
	assert.True(t, StageUpdate{}.IsEmpty())

	cols := StageUpdate{Status: strPtr(entity.StageStatusCompleted)}.columns()
	assert.Equal(t, map[string]interface{}{"status": "completed"}, cols)

	cols = StageUpdate{Status: strPtr("pending"), Revision: strPtr("B1")}.columns()
	assert.Len(t, cols, 2)
	assert.Equal(t, "B1", cols["revision"])
}

func TestProjectUpdateColumnsAllowList(t *testing.T) {
	assert.True(t, ProjectUpdate{}.IsEmpty())

	p := 25
	cols := ProjectUpdate{Progress: &p, Status: strPtr(entity.ProjectStatusCompleted)}.columns()
	assert.Equal(t, map[string]interface{}{"progress": 25, "status": "completed"}, cols)

	cols = ProjectUpdate{EstimationStatus: strPtr("approved")}.columns()
	assert.Equal(t, map[string]interface{}{"estimation_status": "approved"}, cols)
}

func TestStageLogUpdateColumnsAllowList(t *testing.T) {
	now := time.Now()
	sent := true
	cols := StageLogUpdate{
		Status:        strPtr(entity.LogStatusCompleted),
		ActionTaken:   strPtr(entity.ActionApproved),
		Reason:        strPtr(""),
		IsSent:        &sent,
		OutgoingFiles: entity.FileIDs{"f1"},
		CompletedAt:   &now,
	}.columns()

	keys := make([]string, 0, len(cols))
	for k := range cols {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"status", "action_taken", "reason", "is_sent", "outgoing_files", "completed_at"}, keys)

	assert.Empty(t, StageLogUpdate{}.columns())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(gorm.ErrRecordNotFound))
	assert.True(t, IsNotFound(ErrNotFound))
	assert.False(t, IsNotFound(gorm.ErrInvalidData))
}
