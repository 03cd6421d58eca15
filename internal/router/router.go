package router

import (
	"time"

	"github.com/classquiz/classquiz-backend/internal/cache"
	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/classquiz/classquiz-backend/internal/handler"
	"github.com/classquiz/classquiz-backend/internal/logger"
	"github.com/classquiz/classquiz-backend/internal/middleware"
	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// leaderboardImageMaxAge lets browsers reuse a rendered leaderboard briefly.
const leaderboardImageMaxAge = 60

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Group     *handler.GroupHandler
	Student   *handler.StudentHandler
	Quiz      *handler.QuizHandler
	Question  *handler.QuestionHandler
	Play      *handler.PlayHandler
	WS        *handler.WSHandler
	Result    *handler.ResultHandler
	Monitor   *handler.MonitorHandler
	Dashboard *handler.DashboardHandler
	System    *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	joinLimiter *cache.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Remaining", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the request logger can pick it up.
	router.Use(response.RequestIDMiddleware())
	router.Use(logger.RequestLogger(log))
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper:   middleware.SkipBinaryDownloads,
	}))

	router.GET("/health", handlers.System.Health)

	requireTeacher := []gin.HandlerFunc{
		middleware.RequireTeacherJWT(authService),
		middleware.RejectRevokedTokens(authService),
	}

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", middleware.RateLimit(joinLimiter), handlers.Auth.TeacherLogin)
		auth.GET("/me", append(requireTeacher, handlers.Auth.GetProfile)...)
		auth.POST("/logout", append(requireTeacher, handlers.Auth.Logout)...)
	}

	// ─── 2. Play Group (attempt token) ─────────────────────────────────
	play := router.Group("/api/v1/play")
	play.Use(middleware.NoStore())
	{
		play.POST("/join", middleware.RateLimit(joinLimiter), handlers.Play.JoinQuiz)

		attempt := play.Group("")
		attempt.Use(middleware.RequireAttemptJWT(authService))
		{
			attempt.GET("/state", handlers.Play.GetState)
			attempt.GET("/paper", handlers.Play.GetPaper)
			attempt.PUT("/answers/:question_id", handlers.Play.SaveAnswer)
			attempt.POST("/complete", handlers.Play.CompleteAttempt)
			attempt.GET("/result", handlers.Play.GetResult)
		}
	}

	// ─── 3. WebSocket Group (attempt token via ?token=) ────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAttemptJWT(authService))
	{
		ws.GET("/play", handlers.WS.PlayStream)
	}

	// ─── 4. Teacher Group ──────────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(requireTeacher...)
	{
		api.GET("/dashboard", handlers.Dashboard.GetDashboardData)
		api.GET("/system/metrics", handlers.System.SystemMetricsSSE)

		// Groups and students
		api.GET("/groups", handlers.Group.ListGroups)
		api.POST("/groups", handlers.Group.CreateGroup)
		api.GET("/groups/:id", handlers.Group.GetGroup)
		api.PUT("/groups/:id", handlers.Group.RenameGroup)
		api.DELETE("/groups/:id", handlers.Group.DeleteGroup)
		api.GET("/groups/:id/students", handlers.Student.ListStudents)
		api.POST("/groups/:id/students", handlers.Student.CreateStudent)
		api.POST("/groups/:id/students/import", handlers.Student.ImportStudents)

		api.GET("/students/:id", handlers.Student.GetStudent)
		api.PUT("/students/:id", handlers.Student.UpdateStudent)
		api.DELETE("/students/:id", handlers.Student.DeleteStudent)
		api.POST("/students/:id/regenerate-code", handlers.Student.RegenerateCode)

		// Quizzes
		api.GET("/quizzes", handlers.Quiz.ListQuizzes)
		api.POST("/quizzes", handlers.Quiz.CreateQuiz)
		api.GET("/quizzes/:id", handlers.Quiz.GetQuiz)
		api.PATCH("/quizzes/:id", handlers.Quiz.UpdateQuiz)
		api.DELETE("/quizzes/:id", handlers.Quiz.DeleteQuiz)
		api.PUT("/quizzes/:id/groups", handlers.Quiz.SetGroups)
		api.POST("/quizzes/:id/regenerate-code", handlers.Quiz.RegenerateAccessCode)
		api.POST("/quizzes/:id/publish", handlers.Quiz.PublishQuiz)
		api.POST("/quizzes/:id/unpublish", handlers.Quiz.UnpublishQuiz)

		// Questions
		api.GET("/quizzes/:id/questions", handlers.Question.ListQuestions)
		api.POST("/quizzes/:id/questions", handlers.Question.AddQuestion)
		api.PUT("/quizzes/:id/questions", handlers.Question.ReplaceQuestions)
		api.POST("/quizzes/:id/questions/reorder", handlers.Question.ReorderQuestions)
		api.PUT("/quizzes/:id/questions/:question_id", handlers.Question.UpdateQuestion)
		api.DELETE("/quizzes/:id/questions/:question_id", handlers.Question.DeleteQuestion)

		// Results and ranking
		api.GET("/quizzes/:id/attempts", handlers.Result.ListAttempts)
		api.DELETE("/quizzes/:id/attempts/:student_id", handlers.Result.ResetAttempt)
		api.POST("/quizzes/:id/rankings", handlers.Result.RecalculateRankings)
		api.GET("/quizzes/:id/leaderboard", handlers.Result.GetLeaderboard)
		api.GET("/quizzes/:id/leaderboard.png",
			middleware.CacheControl(leaderboardImageMaxAge, true),
			handlers.Result.GetLeaderboardImage,
		)
		api.GET("/quizzes/:id/results.xlsx", handlers.Result.ExportResults)
		api.GET("/quizzes/:id/monitor", handlers.Monitor.MonitorQuizSSE)
	}

	return router
}
