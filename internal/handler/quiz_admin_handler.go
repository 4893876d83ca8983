package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-backend/internal/model"
	"github.com/stemsi/proctor-backend/internal/response"
	"github.com/stemsi/proctor-backend/internal/service"
	"github.com/stemsi/proctor-backend/internal/validator"
)

// QuizAdminHandler serves the proctoring dashboard's REST endpoints.
type QuizAdminHandler struct {
	monitorService *service.MonitorService
	log            zerolog.Logger
}

// NewQuizAdminHandler creates a new QuizAdminHandler.
func NewQuizAdminHandler(monitorService *service.MonitorService, log zerolog.Logger) *QuizAdminHandler {
	return &QuizAdminHandler{
		monitorService: monitorService,
		log:            log.With().Str("component", "quiz_admin_handler").Logger(),
	}
}

// ListSessions godoc
// GET /api/v1/admin/quiz/sessions
func (h *QuizAdminHandler) ListSessions(c *gin.Context) {
	var filter model.OutcomeFilter
	if fields := validator.BindQuery(c, &filter); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PerPage == 0 {
		filter.PerPage = 20
	}

	outcomes, total, err := h.monitorService.ListOutcomes(c.Request.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list quiz outcomes")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, outcomes, response.NewPagination(filter.Page, filter.PerPage, total))
}

// Overview godoc
// GET /api/v1/admin/quiz/overview?topic=
func (h *QuizAdminHandler) Overview(c *gin.Context) {
	ov, err := h.monitorService.GetOverview(c.Request.Context(), c.Query("topic"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build quiz overview")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, ov)
}

// LiveSession godoc
// GET /api/v1/admin/quiz/sessions/:id/live
// Returns the last snapshot streamed to the participant.
func (h *QuizAdminHandler) LiveSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.monitorService.LiveState(c.Request.Context(), id.String())
	if errors.Is(err, redis.Nil) {
		response.Fail(c, http.StatusNotFound, response.ErrQuizSessionNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("session_id", id.String()).Msg("Failed to load live session state")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, json.RawMessage(state))
}
