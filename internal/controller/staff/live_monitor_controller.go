package staff

import (
	"net/http"

	"github.com/ducmanh-ng/Invigilo/internal/controller"
	"github.com/ducmanh-ng/Invigilo/internal/dto"
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/ducmanh-ng/Invigilo/internal/repository"
	"github.com/ducmanh-ng/Invigilo/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Monitors connect from the portal frontend; origin policy is enforced
	// by the CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveMonitorController upgrades staff connections into hub subscribers.
type LiveMonitorController struct {
	hub         *ws.Hub
	attemptRepo repository.AttemptRepository
}

func NewLiveMonitorController(hub *ws.Hub, attemptRepo repository.AttemptRepository) *LiveMonitorController {
	return &LiveMonitorController{hub: hub, attemptRepo: attemptRepo}
}

// Monitor godoc
// @Summary (Staff) Subscribe to live attempt events over websocket
// @Description Joins the room for one attempt (attempt_id query) or the global staff room (all=1). Lecturers may only watch attempts of their own exams.
// @Tags Staff - Live
// @Param attempt_id query int false "Attempt to watch"
// @Param all query bool false "Join the global staff room (staff/admin only)"
// @Success 101 {string} string "Switching protocols"
// @Failure 403 {object} dto.ErrorResponse "Not authorized for this room"
// @Router /ws [get]
func (c *LiveMonitorController) Monitor(ctx *gin.Context) {
	user := controller.CurrentUser(ctx)

	var room string
	switch {
	case ctx.Query("all") == "1" || ctx.Query("all") == "true":
		if !user.IsStaff() {
			ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Only staff may join the global room"})
			return
		}
		room = ws.RoomAllAttempts
	default:
		attemptID, ok := controller.ParamQueryUint(ctx, "attempt_id")
		if !ok {
			return
		}
		attempt, err := c.attemptRepo.FindByIDWithDetails(attemptID)
		if err != nil {
			controller.RespondError(ctx, err)
			return
		}
		if !c.mayWatch(user, attempt) {
			ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Not authorized for this attempt"})
			return
		}
		room = ws.AttemptRoom(attemptID)
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := ws.NewClient(c.hub, conn)
	c.hub.Subscribe(client, room)
	client.Queue(ws.Message{Type: ws.MessageTypeJoined, Data: gin.H{"status": "ok", "room": room}})
	go client.WritePump()
	go client.ReadPump()
}

// mayWatch mirrors the join authorization of the monitor rooms: staff and
// admin watch anything, a lecturer only attempts of exams they created, and
// the sitting student their own attempt (to receive the termination signal).
func (c *LiveMonitorController) mayWatch(user *model.User, attempt *model.ExamAttempt) bool {
	if user.IsStaff() {
		return true
	}
	if user.Role == model.RoleLecturer {
		return attempt.Exam.CreatorID == user.ID
	}
	return attempt.UserID == user.ID
}
