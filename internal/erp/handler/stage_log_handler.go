package handler

import (
	"net/url"

	"github.com/bitfantasy/nimo-erp/internal/erp/service"
	"github.com/gin-gonic/gin"
)

type StageLogHandler struct {
	svc    *service.StageLogService
	export *service.ExportService
}

func NewStageLogHandler(svc *service.StageLogService, export *service.ExportService) *StageLogHandler {
	return &StageLogHandler{svc: svc, export: export}
}

// Add POST /drawings/:id/logs
func (h *StageLogHandler) Add(c *gin.Context) {
	var req service.AddLogInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	log, err := h.svc.AddDrawingStageLog(c.Request.Context(), c.Param("id"), req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, log)
}

// List GET /drawings/:id/logs
func (h *StageLogHandler) List(c *gin.Context) {
	logs, err := h.svc.GetDrawingLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": logs})
}

// Export GET /drawings/:id/logs/export
func (h *StageLogHandler) Export(c *gin.Context) {
	f, filename, err := h.export.ExportDrawingLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Header("Content-Transfer-Encoding", "binary")
	if err := f.Write(c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// Update PUT /logs/:logId
func (h *StageLogHandler) Update(c *gin.Context) {
	var req service.UpdateLogInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	log, err := h.svc.UpdateDrawingLog(c.Request.Context(), c.Param("logId"), req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, log)
}

// Advance POST /logs/:logId/advance
func (h *StageLogHandler) Advance(c *gin.Context) {
	var req service.AdvanceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.svc.AdvanceDrawing(c.Request.Context(), c.Param("logId"), req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, result)
}

// GetTask GET /logs/:logId/task
func (h *StageLogHandler) GetTask(c *gin.Context) {
	task, err := h.svc.GetUserAssignedTaskByLogID(c.Request.Context(), c.Param("logId"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, task)
}

// ListMine GET /tasks/mine
func (h *StageLogHandler) ListMine(c *gin.Context) {
	tasks, err := h.svc.ListAssignedTasks(c.Request.Context(), GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": tasks})
}
