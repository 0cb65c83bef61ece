package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/attendo/internal/api/handlers"
	"github.com/your-org/attendo/internal/api/ws"
	"github.com/your-org/attendo/internal/auth"
	"github.com/your-org/attendo/internal/config"
	"github.com/your-org/attendo/internal/email"
	"github.com/your-org/attendo/internal/models"
	"github.com/your-org/attendo/internal/storage"
)

type RouterConfig struct {
	Config     *config.Config
	DB         *storage.PostgresStore
	MinIO      *storage.MinIOStore
	NATS       handlers.NATSPinger
	Hub        *ws.Hub
	Tokens     *auth.TokenManager
	Assertions *auth.TokenManager
	Mail       email.Service
	// LateHour/LateMinute come from WorkdayConfig.LateCutoff, validated at startup.
	LateHour   int
	LateMinute int
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())

	corsCfg := cors.DefaultConfig()
	if len(cfg.Config.Server.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.Config.Server.CORSOrigins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.NATS)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	adminH := handlers.NewAdminHandler(cfg.DB, cfg.MinIO, cfg.Tokens, cfg.Mail, cfg.Config.Email.VerifyBaseURL)
	userH := handlers.NewUserHandler(cfg.DB, cfg.MinIO, cfg.Tokens, cfg.Assertions, cfg.LateHour, cfg.LateMinute)

	v1 := r.Group("/api/v1")

	// Admin
	admin := v1.Group("/admin")
	admin.POST("/register", adminH.Register)
	admin.POST("/login", adminH.Login)
	admin.GET("/verify-email/:token", adminH.VerifyEmail)

	adminAuthed := admin.Group("")
	adminAuthed.Use(auth.Middleware(cfg.Tokens), auth.RequireRole(models.RoleAdmin))
	adminAuthed.POST("/add-employee", adminH.AddEmployee)
	adminAuthed.GET("/employees", adminH.ListEmployees)
	adminAuthed.GET("/employees/:id", adminH.GetEmployee)
	adminAuthed.DELETE("/employees/:id", adminH.DeleteEmployee)

	// Live face event feed for admin dashboards
	r.GET("/admin/ws", cfg.Hub.HandleWS)

	// Employees
	users := v1.Group("/users")
	users.POST("/login", userH.Login)
	users.POST("/face-login", userH.FaceLogin)
	users.GET("/:id/profile-picture", userH.ProfilePicture)

	usersAuthed := users.Group("")
	usersAuthed.Use(auth.Middleware(cfg.Tokens))
	usersAuthed.PATCH("/mark-attendance", userH.MarkAttendance)
	usersAuthed.POST("/change-password", userH.ChangePassword)
	usersAuthed.GET("/me", userH.Me)

	return r
}
