package staff

import (
	"net/http"
	"strconv"

	"github.com/ducmanh-ng/Invigilo/internal/controller"
	"github.com/ducmanh-ng/Invigilo/internal/dto"
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/ducmanh-ng/Invigilo/internal/repository"
	"github.com/ducmanh-ng/Invigilo/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
)

type StaffController struct {
	alertSvc        service.AlertService
	aggregationSvc  service.AggregationService
	terminationSvc  service.TerminationService
	notificationSvc service.NotificationService
}

func NewStaffController(
	alertSvc service.AlertService,
	aggregationSvc service.AggregationService,
	terminationSvc service.TerminationService,
	notificationSvc service.NotificationService,
) *StaffController {
	return &StaffController{
		alertSvc:        alertSvc,
		aggregationSvc:  aggregationSvc,
		terminationSvc:  terminationSvc,
		notificationSvc: notificationSvc,
	}
}

// ListAlerts godoc
// @Summary (Staff) List alerts, newest first
// @Tags Staff - Alerts
// @Produce json
// @Param status query string false "Filter by status" Enums(PENDING, INVESTIGATING, RESOLVED, FALSE_POSITIVE)
// @Param severity query string false "Filter by severity" Enums(LOW, MEDIUM, HIGH, CRITICAL)
// @Param exam_id query int false "Filter by exam"
// @Success 200 {array} dto.AlertResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid filter"
// @Router /staff/alerts [get]
func (c *StaffController) ListAlerts(ctx *gin.Context) {
	var filter repository.AlertFilter
	if raw := ctx.Query("status"); raw != "" {
		status := model.AlertStatus(raw)
		filter.Status = &status
	}
	if raw := ctx.Query("severity"); raw != "" {
		severity := model.Severity(raw)
		filter.Severity = &severity
	}
	if raw := ctx.Query("exam_id"); raw != "" {
		val, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid exam_id format"})
			return
		}
		examID := uint(val)
		filter.ExamID = &examID
	}

	alerts, err := c.alertSvc.List(filter)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, alerts)
}

// GetAlert godoc
// @Summary (Staff) Get one alert
// @Tags Staff - Alerts
// @Produce json
// @Param alert_id path int true "Alert ID"
// @Success 200 {object} dto.AlertResponse
// @Failure 404 {object} dto.ErrorResponse "Alert not found"
// @Router /staff/alerts/{alert_id} [get]
func (c *StaffController) GetAlert(ctx *gin.Context) {
	alertID, ok := controller.ParamUint(ctx, "alert_id")
	if !ok {
		return
	}
	alert, err := c.alertSvc.Get(alertID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, alert)
}

// UpdateAlertStatus godoc
// @Summary (Staff) Move an alert through its lifecycle
// @Description PENDING to INVESTIGATING/RESOLVED/FALSE_POSITIVE, INVESTIGATING to RESOLVED/FALSE_POSITIVE. RESOLVED and FALSE_POSITIVE are terminal.
// @Tags Staff - Alerts
// @Accept json
// @Produce json
// @Param alert_id path int true "Alert ID"
// @Param status body dto.UpdateAlertStatusRequest true "Target status and optional notes"
// @Success 200 {object} dto.AlertResponse
// @Failure 404 {object} dto.ErrorResponse "Alert not found"
// @Failure 409 {object} dto.ErrorResponse "Invalid status transition"
// @Router /staff/alerts/{alert_id}/status [patch]
func (c *StaffController) UpdateAlertStatus(ctx *gin.Context) {
	alertID, ok := controller.ParamUint(ctx, "alert_id")
	if !ok {
		return
	}
	var req dto.UpdateAlertStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	alert, err := c.alertSvc.SetStatus(alertID, model.AlertStatus(req.Status), req.Notes)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, alert)
}

// AlertSummary godoc
// @Summary (Staff) Alert counts by severity for one exam
// @Tags Staff - Alerts
// @Produce json
// @Param exam_id path int true "Exam ID"
// @Success 200 {object} dto.AlertSummaryResponse
// @Router /staff/exams/{exam_id}/alerts/summary [get]
func (c *StaffController) AlertSummary(ctx *gin.Context) {
	examID, ok := controller.ParamUint(ctx, "exam_id")
	if !ok {
		return
	}
	summary, err := c.alertSvc.Summary(examID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// TerminateAttempt godoc
// @Summary (Staff) Terminate an attempt with zero score
// @Description Irreversible. Commits the terminal state and audit event, then signals the live student session.
// @Tags Staff - Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param reason body dto.TerminateAttemptRequest false "Termination reason"
// @Success 200 {object} dto.TerminateResponse
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt already terminated"
// @Router /staff/attempts/{attempt_id}/terminate [post]
func (c *StaffController) TerminateAttempt(ctx *gin.Context) {
	attemptID, ok := controller.ParamUint(ctx, "attempt_id")
	if !ok {
		return
	}
	var req dto.TerminateAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	user := controller.CurrentUser(ctx)
	actor := service.Actor{Username: user.Username, Role: user.Role}
	if err := c.terminationSvc.Terminate(attemptID, actor, req.Reason); err != nil {
		controller.RespondError(ctx, err)
		return
	}
	log.Info().Uint("attemptID", attemptID).Str("actor", actor.Username).Msg("TerminateAttempt: attempt terminated by staff")
	ctx.JSON(http.StatusOK, dto.TerminateResponse{AttemptID: attemptID, Status: "terminated"})
}

// AnalyzeAttempt godoc
// @Summary (Staff) Re-run violation analysis for an attempt on demand
// @Tags Staff - Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AnalysisResponse
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /staff/attempts/{attempt_id}/analyze [post]
func (c *StaffController) AnalyzeAttempt(ctx *gin.Context) {
	attemptID, ok := controller.ParamUint(ctx, "attempt_id")
	if !ok {
		return
	}
	result, err := c.aggregationSvc.Analyze(attemptID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}

	resp := dto.AnalysisResponse{AttemptID: attemptID, Terminated: result.Terminated}
	if result.Alert != nil {
		resp.AlertID = &result.Alert.ID
	}
	resp.Violations = make([]dto.ViolationResponse, 0, len(result.Violations))
	for _, v := range result.Violations {
		var vr dto.ViolationResponse
		if err := copier.Copy(&vr, &v); err != nil {
			log.Error().Err(err).Str("type", v.Type).Msg("Failed to copy violation to DTO")
			continue
		}
		resp.Violations = append(resp.Violations, vr)
	}
	ctx.JSON(http.StatusOK, resp)
}

// ListNotifications godoc
// @Summary (Staff) List the acting user's notifications, newest first
// @Tags Staff - Notifications
// @Produce json
// @Param unread query bool false "Only unread notifications"
// @Success 200 {array} dto.NotificationResponse
// @Router /staff/notifications [get]
func (c *StaffController) ListNotifications(ctx *gin.Context) {
	user := controller.CurrentUser(ctx)
	unreadOnly := ctx.Query("unread") == "1" || ctx.Query("unread") == "true"
	notifications, err := c.notificationSvc.ListForUser(user.ID, unreadOnly)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, notifications)
}

// MarkNotificationRead godoc
// @Summary (Staff) Mark one of the acting user's notifications as read
// @Tags Staff - Notifications
// @Produce json
// @Param notification_id path int true "Notification ID"
// @Success 200 {object} dto.ReportEventResponse
// @Failure 404 {object} dto.ErrorResponse "Notification not found"
// @Router /staff/notifications/{notification_id}/read [patch]
func (c *StaffController) MarkNotificationRead(ctx *gin.Context) {
	notificationID, ok := controller.ParamUint(ctx, "notification_id")
	if !ok {
		return
	}
	user := controller.CurrentUser(ctx)
	if err := c.notificationSvc.MarkRead(notificationID, user.ID); err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ReportEventResponse{Status: "ok"})
}
