package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classroll/classroll-api/internal/models"
	"github.com/classroll/classroll-api/internal/service"
	appErrors "github.com/classroll/classroll-api/pkg/errors"
	"github.com/classroll/classroll-api/pkg/export"
	"github.com/classroll/classroll-api/pkg/response"
)

type ledgerService interface {
	SubmitDay(ctx context.Context, req service.SubmitDayRequest) (*service.SubmitDayResult, error)
	UpdateStatus(ctx context.Context, recordID, status string) (*models.AttendanceRecord, error)
	DeleteDay(ctx context.Context, batchID, date string) (int64, error)
	DeleteRecord(ctx context.Context, recordID string) error
	List(ctx context.Context, req service.ListRequest) ([]models.AttendanceRecord, *models.Pagination, error)
}

type reconcileService interface {
	MarkedDates(ctx context.Context, batchID string) ([]time.Time, error)
	LoadDay(ctx context.Context, batchID, date string) ([]models.AttendanceRecord, error)
}

type statsService interface {
	Dashboard(ctx context.Context, asOf time.Time) (*models.DashboardStats, bool, error)
}

// AttendanceHandler wires the ledger, reconciliation and stats services to
// HTTP endpoints.
type AttendanceHandler struct {
	ledger    ledgerService
	reconcile reconcileService
	stats     statsService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(ledger ledgerService, reconcile reconcileService, stats statsService) *AttendanceHandler {
	return &AttendanceHandler{
		ledger:    ledger,
		reconcile: reconcile,
		stats:     stats,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
	}
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SubmitDay godoc
// @Summary Record a batch's attendance for one day
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.SubmitDayRequest true "Day submission"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) SubmitDay(c *gin.Context) {
	var req service.SubmitDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && req.MarkedBy == "" {
		req.MarkedBy = claims.UserID
	}
	result, err := h.ledger.SubmitDay(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param batch query string false "Batch ID"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param status query string false "Status (present/absent/late)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	req := service.ListRequest{
		BatchID:  c.Query("batch"),
		Date:     c.Query("date"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "limit", 50),
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	rows, pagination, err := h.ledger.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// MarkedDates godoc
// @Summary Distinct dates a batch has recorded, newest first
// @Tags Attendance
// @Produce json
// @Param batch query string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/dates [get]
func (h *AttendanceHandler) MarkedDates(c *gin.Context) {
	dates, err := h.reconcile.MarkedDates(c.Request.Context(), c.Query("batch"))
	if err != nil {
		response.Error(c, err)
		return
	}
	formatted := make([]string, len(dates))
	for i, d := range dates {
		formatted[i] = d.Format("2006-01-02")
	}
	response.JSON(c, http.StatusOK, formatted, nil)
}

// Day godoc
// @Summary A batch's records for one day, ordered by student name
// @Tags Attendance
// @Produce json
// @Param batch query string true "Batch ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/day [get]
func (h *AttendanceHandler) Day(c *gin.Context) {
	rows, err := h.reconcile.LoadDay(c.Request.Context(), c.Query("batch"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Stats godoc
// @Summary Dashboard aggregation
// @Tags Attendance
// @Produce json
// @Param date query string false "As-of date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /attendance/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	var asOf time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
			return
		}
		asOf = parsed
	}
	start := time.Now()
	stats, cacheHit, err := h.stats.Dashboard(c.Request.Context(), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, stats, nil, meta)
}

// Export godoc
// @Summary Export one day's roster as CSV or PDF
// @Tags Attendance
// @Produce octet-stream
// @Param batch query string true "Batch ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {file} byte
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	batchID := c.Query("batch")
	rawDate := c.Query("date")
	rows, err := h.reconcile.LoadDay(c.Request.Context(), batchID, rawDate)
	if err != nil {
		response.Error(c, err)
		return
	}
	date, _ := time.Parse("2006-01-02", rawDate)
	batchName := batchID
	if len(rows) > 0 && rows[0].BatchName != nil {
		batchName = *rows[0].BatchName
	}
	report := export.BuildDayReport(batchName, date, rows)

	switch c.DefaultQuery("format", "csv") {
	case "pdf":
		payload, err := h.pdf.Render(report)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="attendance-`+rawDate+`.pdf"`)
		c.Data(http.StatusOK, "application/pdf", payload)
	case "csv":
		payload, err := h.csv.Render(report)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="attendance-`+rawDate+`.csv"`)
		c.Data(http.StatusOK, "text/csv", payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}

// UpdateStatus godoc
// @Summary Revise the status of one record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body updateStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	record, err := h.ledger.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// DeleteRecord godoc
// @Summary Delete one record
// @Tags Attendance
// @Param id path string true "Record ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) DeleteRecord(c *gin.Context) {
	if err := h.ledger.DeleteRecord(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteDay godoc
// @Summary Delete a batch's full day so it can be re-marked
// @Tags Attendance
// @Produce json
// @Param batch query string true "Batch ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance [delete]
func (h *AttendanceHandler) DeleteDay(c *gin.Context) {
	count, err := h.ledger.DeleteDay(c.Request.Context(), c.Query("batch"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted_count": count}, nil)
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
