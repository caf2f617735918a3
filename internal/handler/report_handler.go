package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/recruit-pipeline-api/internal/middleware"
	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	"github.com/noah-isme/recruit-pipeline-api/internal/service"
	appErrors "github.com/noah-isme/recruit-pipeline-api/pkg/errors"
	"github.com/noah-isme/recruit-pipeline-api/pkg/response"
)

type reportService interface {
	Placements(ctx context.Context, filter models.ReportFilter) ([]models.RecruiterPlacement, bool, error)
	TimeToFill(ctx context.Context, filter models.ReportFilter) ([]models.TimeToFill, bool, error)
	ExportPlacements(ctx context.Context, filter models.ReportFilter, format string) (*service.ReportFile, error)
	ExportTimeToFill(ctx context.Context, filter models.ReportFilter, format string) (*service.ReportFile, error)
}

// ReportHandler exposes placement reporting endpoints.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Placements godoc
// @Summary Placement rate by recruiter
// @Tags Reports
// @Produce json
// @Param client query string false "Client code"
// @Param from query string false "Lower bound (YYYY-MM-DD or RFC3339)"
// @Param to query string false "Upper bound, exclusive"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /reports/placements [get]
func (h *ReportHandler) Placements(c *gin.Context) {
	filter, format, err := parseReportQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if format != service.ReportFormatJSON {
		h.export(c, func(ctx context.Context) (*service.ReportFile, error) {
			return h.reports.ExportPlacements(ctx, filter, format)
		})
		return
	}
	report, hit, err := h.reports.Placements(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithCacheMeta(c, report, hit)
}

// TimeToFill godoc
// @Summary Days from job opening to its latest placement
// @Tags Reports
// @Produce json
// @Param client query string false "Client code"
// @Param from query string false "Lower bound (YYYY-MM-DD or RFC3339)"
// @Param to query string false "Upper bound, exclusive"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /reports/time-to-fill [get]
func (h *ReportHandler) TimeToFill(c *gin.Context) {
	filter, format, err := parseReportQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if format != service.ReportFormatJSON {
		h.export(c, func(ctx context.Context) (*service.ReportFile, error) {
			return h.reports.ExportTimeToFill(ctx, filter, format)
		})
		return
	}
	report, hit, err := h.reports.TimeToFill(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithCacheMeta(c, report, hit)
}

func (h *ReportHandler) export(c *gin.Context, render func(context.Context) (*service.ReportFile, error)) {
	file, err := render(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func respondWithCacheMeta(c *gin.Context, data interface{}, hit bool) {
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, data, middleware.Meta(c))
}

func parseReportQuery(c *gin.Context) (models.ReportFilter, string, error) {
	filter := models.ReportFilter{ClientCode: strings.TrimSpace(c.Query("client"))}
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", service.ReportFormatJSON)))
	if format == "" {
		format = service.ReportFormatJSON
	}
	for key, target := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		parsed, err := parseReportTime(raw)
		if err != nil {
			return filter, "", appErrors.Clone(appErrors.ErrValidation, "invalid "+key+" parameter")
		}
		*target = &parsed
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return filter, "", appErrors.Clone(appErrors.ErrValidation, "from must be before to")
	}
	return filter, format, nil
}

func parseReportTime(raw string) (time.Time, error) {
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}
