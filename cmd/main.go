package main

import (
	"context"
	"net/http"
	"time"

	"github.com/ducmanh-ng/Invigilo/config"
	"github.com/ducmanh-ng/Invigilo/database"
	_ "github.com/ducmanh-ng/Invigilo/docs" // Swagger docs - auto-generated
	"github.com/ducmanh-ng/Invigilo/internal/controller"
	staffctrl "github.com/ducmanh-ng/Invigilo/internal/controller/staff"
	studentctrl "github.com/ducmanh-ng/Invigilo/internal/controller/student"
	"github.com/ducmanh-ng/Invigilo/internal/logger"
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/ducmanh-ng/Invigilo/internal/repository"
	"github.com/ducmanh-ng/Invigilo/internal/service"
	"github.com/ducmanh-ng/Invigilo/internal/ws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Invigilo Proctoring API
// @version 1.0
// @description Exam proctoring portal: anti-cheat event ingestion, violation detection, alerting and attempt termination.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core application components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
			ws.NewHub,
			func(h *ws.Hub) ws.Publisher { return h },
			service.NewAttemptLocker,
		),

		// Repositories layer
		fx.Provide(
			repository.NewUserRepository,
			repository.NewExamRepository,
			repository.NewAttemptRepository,
			repository.NewAttemptEventRepository,
			repository.NewAlertRepository,
			repository.NewNotificationRepository,
		),

		// Services layer
		fx.Provide(
			service.NewViolationClassifier,
			service.NewNotificationService,
			service.NewAlertService,
			service.NewTerminationService,
			service.NewAggregationService,
			service.NewEventIngestionService,
		),

		// API controllers layer
		fx.Provide(
			studentctrl.NewStudentController,
			staffctrl.NewStaffController,
			staffctrl.NewLiveMonitorController,
		),

		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(AutoMigrateDB),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	userRepo repository.UserRepository,
	studentCtrl *studentctrl.StudentController,
	staffCtrl *staffctrl.StaffController,
	liveCtrl *staffctrl.LiveMonitorController,
) {
	// Native agent reporting is unauthenticated; the attempt token gates it.
	router.POST("/api/v1/agent/events", studentCtrl.ReportAgentEvent)

	authed := router.Group("/api/v1", controller.UserResolver(userRepo))
	{
		// Student attempt routes
		attempts := authed.Group("/attempts")
		attempts.POST("/:attempt_id/events", studentCtrl.ReportEvent)
		attempts.POST("/:attempt_id/force-finish", studentCtrl.ForceFinish)
		attempts.PATCH("/:attempt_id/score", studentCtrl.Autosave)
		attempts.GET("/:attempt_id/agent-token", studentCtrl.AgentToken)

		// Live monitoring: staff watch any attempt, lecturers their own exams,
		// students their own attempt (termination signal delivery).
		authed.GET("/ws", liveCtrl.Monitor)

		staffGroup := authed.Group("/staff",
			controller.RequireRoles(model.RoleLecturer, model.RoleStaff, model.RoleAdmin))
		{
			staffGroup.GET("/alerts", staffCtrl.ListAlerts)
			staffGroup.GET("/alerts/:alert_id", staffCtrl.GetAlert)
			staffGroup.PATCH("/alerts/:alert_id/status", staffCtrl.UpdateAlertStatus)
			staffGroup.GET("/exams/:exam_id/alerts/summary", staffCtrl.AlertSummary)
			staffGroup.POST("/attempts/:attempt_id/terminate", staffCtrl.TerminateAttempt)
			staffGroup.POST("/attempts/:attempt_id/analyze", staffCtrl.AnalyzeAttempt)
			staffGroup.GET("/notifications", staffCtrl.ListNotifications)
			staffGroup.PATCH("/notifications/:notification_id/read", staffCtrl.MarkNotificationRead)
		}
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Invigilo proctoring API starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.User{},
		&model.Exam{},
		&model.ExamAttempt{},
		&model.AttemptEvent{},
		&model.Alert{},
		&model.Notification{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
