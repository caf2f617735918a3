package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/recruit-pipeline-api/internal/dto"
	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	"github.com/noah-isme/recruit-pipeline-api/internal/service"
	appErrors "github.com/noah-isme/recruit-pipeline-api/pkg/errors"
	"github.com/noah-isme/recruit-pipeline-api/pkg/response"
)

type submissionService interface {
	Create(ctx context.Context, req dto.CreateSubmissionRequest) (*models.Submission, error)
	Transition(ctx context.Context, req dto.TransitionRequest) (*service.TransitionResult, error)
	UpdateClientStatus(ctx context.Context, code string, req dto.ClientStatusRequest) (*models.Submission, error)
	ReversePlacement(ctx context.Context, code string, req dto.ReversePlacementRequest) (*service.TransitionResult, error)
	Get(ctx context.Context, code string) (*models.Submission, error)
	ListByJob(ctx context.Context, jobCode string, query dto.SubmissionQuery) ([]models.Submission, error)
	Capacity(ctx context.Context, jobCode string) (*models.CapacityResult, error)
	Timeline(ctx context.Context, code string) ([]models.ActivityRecord, error)
}

// SubmissionHandler exposes the submission lifecycle over REST.
type SubmissionHandler struct {
	service submissionService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service submissionService) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

// Create godoc
// @Summary Submit a candidate to a job
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req dto.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
		return
	}
	req.SubmittedBy = actorOrCaller(c, req.SubmittedBy)
	submission, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.CreateSubmissionResponse{SubmissionCode: submission.Code})
}

// Transition godoc
// @Summary Move a submission to another lifecycle state
// @Tags Submissions
// @Accept json
// @Produce json
// @Param code path string true "Submission code"
// @Param payload body dto.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions/{code}/transitions [post]
func (h *SubmissionHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	if code := c.Param("code"); code != "" {
		req.SubmissionCode = code
	}
	req.Actor = actorOrCaller(c, req.Actor)
	result, err := h.service.Transition(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transitionResponse(result))
}

// UpdateClientStatus godoc
// @Summary Update the client-facing status
// @Tags Submissions
// @Accept json
// @Produce json
// @Param code path string true "Submission code"
// @Param payload body dto.ClientStatusRequest true "Client status"
// @Success 200 {object} response.Envelope
// @Router /submissions/{code}/client-status [patch]
func (h *SubmissionHandler) UpdateClientStatus(c *gin.Context) {
	var req dto.ClientStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid client status payload"))
		return
	}
	req.Actor = actorOrCaller(c, req.Actor)
	submission, err := h.service.UpdateClientStatus(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission)
}

// ReversePlacement godoc
// @Summary Undo a placement recorded in error
// @Tags Submissions
// @Accept json
// @Produce json
// @Param code path string true "Submission code"
// @Param payload body dto.ReversePlacementRequest true "Reversal reason"
// @Success 200 {object} response.Envelope
// @Router /submissions/{code}/reverse-placement [post]
func (h *SubmissionHandler) ReversePlacement(c *gin.Context) {
	var req dto.ReversePlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reversal payload"))
		return
	}
	req.Actor = actorOrCaller(c, req.Actor)
	result, err := h.service.ReversePlacement(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transitionResponse(result))
}

// Get godoc
// @Summary Get submission detail
// @Tags Submissions
// @Produce json
// @Param code path string true "Submission code"
// @Success 200 {object} response.Envelope
// @Router /submissions/{code} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	submission, err := h.service.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	allowed := service.AllowedTransitions(submission.InternalStatus)
	if allowed == nil {
		allowed = []models.SubmissionStatus{}
	}
	response.JSON(c, http.StatusOK, dto.SubmissionDetail{Submission: submission, AllowedTransitions: allowed})
}

// Timeline godoc
// @Summary List the activity recorded for a submission
// @Tags Submissions
// @Produce json
// @Param code path string true "Submission code"
// @Success 200 {object} response.Envelope
// @Router /submissions/{code}/timeline [get]
func (h *SubmissionHandler) Timeline(c *gin.Context) {
	records, err := h.service.Timeline(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

// ListByJob godoc
// @Summary List submissions for a job
// @Tags Jobs
// @Produce json
// @Param code path string true "Job code"
// @Param status query string false "Comma separated statuses"
// @Param active query bool false "Only active submissions"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /jobs/{code}/submissions [get]
func (h *SubmissionHandler) ListByJob(c *gin.Context) {
	query, err := parseSubmissionQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	submissions, err := h.service.ListByJob(c.Request.Context(), c.Param("code"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"count": len(submissions)}
	if query.Limit > 0 {
		meta["limit"] = query.Limit
		meta["offset"] = query.Offset
	}
	response.JSON(c, http.StatusOK, submissions, meta)
}

// Capacity godoc
// @Summary Get remaining openings for a job
// @Tags Jobs
// @Produce json
// @Param code path string true "Job code"
// @Success 200 {object} response.Envelope
// @Router /jobs/{code}/capacity [get]
func (h *SubmissionHandler) Capacity(c *gin.Context) {
	capacity, err := h.service.Capacity(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity)
}

func transitionResponse(result *service.TransitionResult) dto.TransitionResponse {
	resp := dto.TransitionResponse{
		SubmissionCode: result.Submission.Code,
		InternalStatus: result.Submission.InternalStatus,
		Version:        result.Submission.Version,
		Capacity:       result.Capacity,
	}
	if result.Capacity != nil {
		resp.CapacityExhausted = result.Capacity.Exhausted
	}
	return resp
}

func parseSubmissionQuery(c *gin.Context) (dto.SubmissionQuery, error) {
	var query dto.SubmissionQuery
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := models.ParseSubmissionStatus(part)
			if !ok {
				return query, appErrors.WithDetail(appErrors.Clone(appErrors.ErrValidation, "unknown status filter"), "status", part)
			}
			query.Status = append(query.Status, status)
		}
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return query, appErrors.Clone(appErrors.ErrValidation, "active must be a boolean")
		}
		query.ActiveOnly = active
	}
	var err error
	if query.Limit, err = intQuery(c, "limit"); err != nil {
		return query, err
	}
	if query.Offset, err = intQuery(c, "offset"); err != nil {
		return query, err
	}
	return query, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative integer")
	}
	return value, nil
}
