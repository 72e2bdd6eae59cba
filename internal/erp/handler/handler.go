package handler

import (
	"errors"
	"net/http"

	"github.com/bitfantasy/nimo-erp/internal/erp/service"
	"github.com/bitfantasy/nimo-erp/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ManagerRole 可以直接修改项目状态和进度
const ManagerRole = "project_manager"

// Handlers 处理器集合
type Handlers struct {
	Project  *ProjectHandler
	Stage    *StageHandler
	Drawing  *DrawingHandler
	StageLog *StageLogHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Project:  NewProjectHandler(svc.Project),
		Stage:    NewStageHandler(svc.Stage),
		Drawing:  NewDrawingHandler(svc.Drawing, svc.Stage),
		StageLog: NewStageLogHandler(svc.StageLog, svc.Export),
	}
}

// RegisterRoutes 注册业务路由，api 需已挂载认证中间件
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	projects := api.Group("/projects")
	{
		projects.POST("", h.Project.Create)
		projects.GET("/:id", h.Project.Get)
		projects.PATCH("/:id", middleware.RequireRole(ManagerRole), h.Project.Update)

		projects.POST("/:id/stages", h.Stage.Create)
		projects.GET("/:id/stages", h.Stage.ListByProject)

		projects.POST("/:id/drawings", h.Drawing.Create)
		projects.GET("/:id/drawings", h.Drawing.ListWithLogs)
		projects.GET("/:id/final-files", h.Drawing.ListFinalFiles)
	}

	stages := api.Group("/stages")
	{
		stages.POST("/:stageId/files", h.Stage.UploadFiles)
		stages.GET("/:stageId/files", h.Stage.ListFiles)
	}

	drawings := api.Group("/drawings")
	{
		drawings.POST("/:id/logs", h.StageLog.Add)
		drawings.GET("/:id/logs", h.StageLog.List)
		drawings.GET("/:id/logs/export", h.StageLog.Export)
	}

	logs := api.Group("/logs")
	{
		logs.PUT("/:logId", h.StageLog.Update)
		logs.POST("/:logId/advance", h.StageLog.Advance)
		logs.GET("/:logId/task", h.StageLog.GetTask)
	}

	api.GET("/tasks/mine", h.StageLog.ListMine)
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "success", Data: data})
}

// Error 错误响应，HTTP 状态码取业务码前三位
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = http.StatusInternalServerError
	}
	c.JSON(statusCode, Response{Code: code, Message: message})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// ServiceError 按错误分类输出
func ServiceError(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, Response{
			Code:    40000,
			Message: err.Error(),
			Data:    gin.H{"fields": ve.Fields},
		})
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrConflict):
		Conflict(c, err.Error())
	default:
		// 详细错误交给访问日志
		_ = c.Error(err)
		InternalError(c, "服务器内部错误")
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}
