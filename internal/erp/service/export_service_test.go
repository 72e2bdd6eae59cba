package service

import (
	"context"
	"testing"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"github.com/bitfantasy/nimo-erp/internal/erp/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportDrawingLogs(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	seedPipeline(t, db, 0)
	testutil.SeedLog(t, db, "l1", "d1", "s-idc", entity.StepChecking, entity.LogStatusInProgress, "f1", "f2")

	_, err := svc.StageLog.UpdateDrawingLog(ctx, "l1", UpdateLogInput{
		Status:          entity.LogStatusCompleted,
		ActionTaken:     ptr(entity.ActionRejected),
		Reason:          ptr("比例错误"),
		UploadedFileIDs: []string{"c1"},
	})
	require.NoError(t, err)

	f, filename, err := svc.Export.ExportDrawingLogs(ctx, "d1")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "流转记录_Drawing d1_.xlsx", filename)

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	book, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("流转记录")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, logExportHeaders, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, entity.StepChecking, rows[1][1])
	assert.Equal(t, entity.ActionRejected, rows[1][3])
	assert.Equal(t, "比例错误", rows[1][5])
	assert.Equal(t, "f1,f2", rows[1][7])
	assert.Equal(t, "c1", rows[1][8])
	assert.Equal(t, "否", rows[1][9])

	_, _, err = svc.Export.ExportDrawingLogs(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogExportRowOpenLog(t *testing.T) {
	row := logExportRow(3, &entity.StageLog{StepName: entity.StepDrafting, Status: entity.LogStatusNotStarted})
	require.Len(t, row, len(logExportHeaders))
	assert.Equal(t, 3, row[0])
	assert.Equal(t, "", row[3])
	assert.Equal(t, "", row[12])
}
