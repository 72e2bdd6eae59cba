package handler

import (
	"github.com/bitfantasy/nimo-erp/internal/erp/service"
	"github.com/gin-gonic/gin"
)

type DrawingHandler struct {
	svc    *service.DrawingService
	stages *service.StageService
}

func NewDrawingHandler(svc *service.DrawingService, stages *service.StageService) *DrawingHandler {
	return &DrawingHandler{svc: svc, stages: stages}
}

// Create POST /projects/:id/drawings
func (h *DrawingHandler) Create(c *gin.Context) {
	var req service.CreateDrawingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	drawing, err := h.svc.CreateDrawing(c.Request.Context(), c.Param("id"), req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, drawing)
}

// ListWithLogs GET /projects/:id/drawings?stage_id=&stage=IFR
func (h *DrawingHandler) ListWithLogs(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("id")

	stageID := c.Query("stage_id")
	if name := c.Query("stage"); stageID == "" && name != "" {
		id, err := h.stages.GetStageIDByProjectAndName(ctx, projectID, name)
		if err != nil {
			ServiceError(c, err)
			return
		}
		stageID = id
	}

	drawings, err := h.svc.GetDrawingsWithLogs(ctx, projectID, stageID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": drawings})
}

// ListFinalFiles GET /projects/:id/final-files
func (h *DrawingHandler) ListFinalFiles(c *gin.Context) {
	files, err := h.svc.GetFinalFilesByProjectID(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": files})
}
