package handler

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"cardstock/internal/export"
	"cardstock/internal/service"
	"cardstock/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 报表
// ============================================================

// ListReports GET /api/v1/reports?type=stock
func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.reportService.List(c.Request.Context(), c.Query("type"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, reports)
}

func (h *Handler) GetReport(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	report, err := h.reportService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, report)
}

func (h *Handler) CreateReport(c *gin.Context) {
	var req service.CreateReportInput
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.reportService.Create(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, report)
}

func (h *Handler) UpdateReport(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req service.UpdateReportInput
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.reportService.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, report)
}

func (h *Handler) DeleteReport(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.reportService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}

// DynamicReport GET /api/v1/reports/dynamic/:type?format=json|csv|xlsx|pdf
func (h *Handler) DynamicReport(c *gin.Context) {
	data, err := h.reportService.Dynamic(c.Request.Context(), c.Param("type"))
	if err != nil {
		fail(c, err)
		return
	}

	format := c.DefaultQuery("format", export.FormatJSON)
	if format == export.FormatJSON {
		response.Success(c, data)
		return
	}
	writeTable(c, data.Type+"-"+data.GeneratedAt.Format("20060102"), format, data.Table())
}

// EmailReport POST /api/v1/reports/email
// 未指定收件人时发给通知设置中的邮箱
func (h *Handler) EmailReport(c *gin.Context) {
	var req service.EmailReportInput
	if !bindJSON(c, &req) {
		return
	}
	to, err := h.reportService.Email(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"recipients": to})
}

// ============================================================
// 导入 / 导出
// ============================================================

// Import POST /api/v1/import/:entity，multipart 字段名 file
// 返回逐行结果，单行失败不会中断整批
func (h *Handler) Import(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.ValidationError(c, "参数校验失败", []service.FieldError{{Field: "file", Message: "缺少上传文件"}})
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, &service.ExternalServiceError{Service: "file", Err: err})
		return
	}
	defer f.Close()

	result, err := h.importService.Import(c.Request.Context(), actor(c), c.Param("entity"), fh.Filename, f)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}

// ImportTemplate GET /api/v1/import/templates/:entity
func (h *Handler) ImportTemplate(c *gin.Context) {
	entity := c.Param("entity")
	content, err := h.importService.Template(entity)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+entity+`-template.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(content))
}

// Export GET /api/v1/export/:entity?format=csv|xlsx
func (h *Handler) Export(c *gin.Context) {
	entity := c.Param("entity")
	table, err := h.exportService.Table(c.Request.Context(), entity)
	if err != nil {
		fail(c, err)
		return
	}
	writeTable(c, entity+"-"+time.Now().Format("20060102"), c.DefaultQuery("format", export.FormatCSV), table)
}

// writeTable 按格式写出附件；先写到缓冲区，出错时还能返回 JSON
func writeTable(c *gin.Context, name, format string, t *export.Table) {
	contentType, ext, err := export.ContentType(format)
	if err != nil {
		response.ValidationError(c, "参数校验失败", []service.FieldError{{Field: "format", Message: err.Error()}})
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, t); err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			response.ParamError(c, err.Error())
			return
		}
		fail(c, &service.ExternalServiceError{Service: "export", Err: err})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+ext+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
