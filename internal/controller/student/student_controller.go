package student

import (
	"net/http"

	"github.com/ducmanh-ng/Invigilo/internal/controller"
	"github.com/ducmanh-ng/Invigilo/internal/dto"
	"github.com/ducmanh-ng/Invigilo/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type StudentController struct {
	ingestionSvc service.EventIngestionService
}

func NewStudentController(ingestionSvc service.EventIngestionService) *StudentController {
	return &StudentController{ingestionSvc: ingestionSvc}
}

// ReportEvent godoc
// @Summary (Student) Report an anti-cheat event for an attempt
// @Description Appends one client-reported event to the attempt's log, pushes it to live monitors and runs the violation analysis. Returns status "finished" when the event triggered termination.
// @Tags Student - Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param event body dto.ReportEventRequest true "Event name and opaque payload"
// @Success 200 {object} dto.ReportEventResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 403 {object} dto.ErrorResponse "Attempt belongs to another student"
// @Failure 409 {object} dto.ErrorResponse "Attempt already finished"
// @Failure 429 {object} dto.ErrorResponse "Event rate limit exceeded"
// @Router /attempts/{attempt_id}/events [post]
func (c *StudentController) ReportEvent(ctx *gin.Context) {
	attemptID, ok := controller.ParamUint(ctx, "attempt_id")
	if !ok {
		return
	}
	var req dto.ReportEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := c.ingestionSvc.Report(attemptID, controller.CurrentUser(ctx), req, eventMeta(ctx))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// ReportAgentEvent godoc
// @Summary (Agent) Report an anti-cheat event from the native agent
// @Description Unauthenticated endpoint; the attempt-specific agent token must match.
// @Tags Student - Attempts
// @Accept json
// @Produce json
// @Param event body dto.AgentEventRequest true "Attempt ID, agent token, event"
// @Success 200 {object} dto.ReportEventResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 403 {object} dto.ErrorResponse "Invalid agent token"
// @Failure 409 {object} dto.ErrorResponse "Attempt already finished"
// @Router /agent/events [post]
func (c *StudentController) ReportAgentEvent(ctx *gin.Context) {
	var req dto.AgentEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := c.ingestionSvc.ReportAgent(req, eventMeta(ctx))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// AgentToken godoc
// @Summary (Student) Get or create the agent token for an attempt
// @Tags Student - Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AgentTokenResponse
// @Failure 403 {object} dto.ErrorResponse "Attempt belongs to another student"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /attempts/{attempt_id}/agent-token [get]
func (c *StudentController) AgentToken(ctx *gin.Context) {
	attemptID, ok := controller.ParamUint(ctx, "attempt_id")
	if !ok {
		return
	}
	token, err := c.ingestionSvc.EnsureAgentToken(attemptID, controller.CurrentUser(ctx))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.AgentTokenResponse{AttemptID: attemptID, Token: token})
}

// ForceFinish godoc
// @Summary (Student) Finish the attempt early, keeping the running score
// @Tags Student - Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.ReportEventResponse
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /attempts/{attempt_id}/force-finish [post]
func (c *StudentController) ForceFinish(ctx *gin.Context) {
	attemptID, ok := controller.ParamUint(ctx, "attempt_id")
	if !ok {
		return
	}
	if err := c.ingestionSvc.ForceFinish(attemptID, controller.CurrentUser(ctx)); err != nil {
		controller.RespondError(ctx, err)
		return
	}
	log.Info().Uint("attemptID", attemptID).Msg("ForceFinish: attempt finalized")
	ctx.JSON(http.StatusOK, dto.ReportEventResponse{Status: "ok", Message: "Finalized"})
}

// Autosave godoc
// @Summary (Student) Autosave the running score of an in-progress attempt
// @Tags Student - Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param score body dto.AutosaveRequest true "Current score"
// @Success 200 {object} dto.ReportEventResponse
// @Failure 409 {object} dto.ErrorResponse "Attempt already finished"
// @Router /attempts/{attempt_id}/score [patch]
func (c *StudentController) Autosave(ctx *gin.Context) {
	attemptID, ok := controller.ParamUint(ctx, "attempt_id")
	if !ok {
		return
	}
	var req dto.AutosaveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	if err := c.ingestionSvc.Autosave(attemptID, controller.CurrentUser(ctx), req.Score); err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ReportEventResponse{Status: "ok"})
}

func eventMeta(ctx *gin.Context) service.EventMeta {
	return service.EventMeta{
		IP:        ctx.ClientIP(),
		UserAgent: ctx.Request.UserAgent(),
	}
}
