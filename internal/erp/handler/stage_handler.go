package handler

import (
	"github.com/bitfantasy/nimo-erp/internal/erp/service"
	"github.com/gin-gonic/gin"
)

type StageHandler struct {
	svc *service.StageService
}

func NewStageHandler(svc *service.StageService) *StageHandler {
	return &StageHandler{svc: svc}
}

// Create POST /projects/:id/stages
func (h *StageHandler) Create(c *gin.Context) {
	var req service.CreateStageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	stage, err := h.svc.CreateStage(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, stage)
}

// ListByProject GET /projects/:id/stages
func (h *StageHandler) ListByProject(c *gin.Context) {
	stages, err := h.svc.GetStagesByProjectID(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": stages})
}

// UploadFiles POST /stages/:stageId/files
func (h *StageHandler) UploadFiles(c *gin.Context) {
	var req struct {
		Files []service.StageFileInput `json:"files" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	count, err := h.svc.UploadStageFiles(c.Request.Context(), c.Param("stageId"), req.Files, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, gin.H{"count": count})
}

// ListFiles GET /stages/:stageId/files
func (h *StageHandler) ListFiles(c *gin.Context) {
	files, err := h.svc.ListStageFiles(c.Request.Context(), c.Param("stageId"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": files})
}
