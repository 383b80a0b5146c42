package handlers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/soham-0-0-7/ai-quizzer/internal/config"
	"github.com/soham-0-0-7/ai-quizzer/internal/metrics"
	"github.com/soham-0-0-7/ai-quizzer/internal/middleware"
	"github.com/soham-0-0-7/ai-quizzer/internal/services"
)

const sessionName = "quizgen_session"

// Deps is everything the HTTP layer needs.
type Deps struct {
	Config  *config.Config
	Log     *logrus.Entry
	DB      *gorm.DB
	Redis   redis.Cmdable
	Metrics *metrics.Metrics

	Auth        *services.AuthService
	Quizzes     *services.QuizService
	Submissions *services.SubmissionService
	Dashboard   *services.DashboardService
	Leaderboard *services.LeaderboardService
	Hints       *services.HintService
}

func NewRouter(d Deps) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(d.Log))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}

	origins := d.Config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	store := cookie.NewStore([]byte(d.Config.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(d.Config.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   d.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	health := NewHealthHandler(d.DB, d.Redis, d.Log)
	r.GET("/healthz", health.Check)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	userHandler := NewUserHandler(d.Auth, d.Log)
	quizHandler := NewQuizHandler(d.Quizzes, d.Hints, d.Log)
	submissionHandler := NewSubmissionHandler(d.Submissions, d.Log)
	dashboardHandler := NewDashboardHandler(d.Dashboard, d.Leaderboard, d.Log)

	user := r.Group("/user")
	{
		user.POST("/signup", userHandler.Signup)
		user.POST("/login", userHandler.Login)
		user.POST("/logout", userHandler.Logout)
	}

	authed := r.Group("/")
	authed.Use(middleware.AuthRequired(d.Auth))
	{
		authed.POST("/quiz/generate", quizHandler.Generate)
		authed.GET("/quiz/view/:quizid", quizHandler.View)
		authed.GET("/question/hint/:questionid", quizHandler.Hint)

		authed.POST("/submission/submit", submissionHandler.Submit)

		authed.GET("/dashboard/gradeFilter/:grade", dashboardHandler.ByGrade)
		authed.GET("/dashboard/subjectFilter/:subject", dashboardHandler.BySubject)
		authed.GET("/dashboard/submissionDateFilter/:date", dashboardHandler.ByDay)
		authed.GET("/dashboard/getAllSubmissions", dashboardHandler.All)
		authed.POST("/dashboard/dateRangeFilter", dashboardHandler.ByRange)

		authed.GET("/leaderboard", dashboardHandler.Leaderboard)
	}

	return r, nil
}
