package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-erp/internal/erp/entity"
	"github.com/bitfantasy/nimo-erp/internal/erp/repository"
	"github.com/xuri/excelize/v2"
)

var logExportHeaders = []string{
	"序号", "环节", "状态", "审核结论", "备注", "驳回原因",
	"转交给", "输入文件", "输出文件", "已转交", "创建人", "创建时间", "完成时间",
}

// ExportService 流转记录导出
type ExportService struct {
	repos *repository.Repositories
}

// NewExportService 创建导出服务
func NewExportService(repos *repository.Repositories) *ExportService {
	return &ExportService{repos: repos}
}

// ExportDrawingLogs 导出图纸流转记录为xlsx
func (s *ExportService) ExportDrawingLogs(ctx context.Context, drawingID string) (*excelize.File, string, error) {
	drawing, err := s.repos.Drawing.FindByID(ctx, drawingID)
	if err != nil {
		return nil, "", storeErr(err, "drawing", drawingID)
	}
	logs, err := s.repos.StageLog.ListByDrawing(ctx, drawingID)
	if err != nil {
		return nil, "", persistErr("查询日志", err)
	}

	f := excelize.NewFile()
	sheet := "流转记录"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range logExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for i, log := range logs {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), logExportRow(i+1, &log)); err != nil {
			return nil, "", fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	colWidths := []float64{6, 14, 12, 10, 24, 24, 14, 30, 30, 8, 14, 20, 20}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("流转记录_%s_%s.xlsx", drawing.Title, drawing.Revision)
	return f, filename, nil
}

func logExportRow(seq int, log *entity.StageLog) []interface{} {
	forwarded := ""
	if log.ForwardedTo != nil {
		forwarded = *log.ForwardedTo
	}
	sent := "否"
	if log.IsSent {
		sent = "是"
	}
	completedAt := ""
	if log.CompletedAt != nil {
		completedAt = log.CompletedAt.Format("2006-01-02 15:04:05")
	}
	return []interface{}{
		seq,
		log.StepName,
		log.Status,
		log.Action(),
		log.Notes,
		log.Reason,
		forwarded,
		strings.Join(log.IncomingFiles, ","),
		strings.Join(log.OutgoingFiles, ","),
		sent,
		log.CreatedBy,
		log.CreatedAt.Format("2006-01-02 15:04:05"),
		completedAt,
	}
}
