package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/microblog/internal/auth"
	"github.com/emilythestrangee/microblog/internal/config"
	"github.com/emilythestrangee/microblog/internal/database"
	"github.com/emilythestrangee/microblog/internal/flash"
	"github.com/emilythestrangee/microblog/internal/handlers"
	"github.com/emilythestrangee/microblog/internal/middleware"
	"github.com/emilythestrangee/microblog/internal/monitoring"
	"github.com/emilythestrangee/microblog/internal/repository"
	"github.com/emilythestrangee/microblog/internal/templates"
)

type Server struct {
	cfg      *config.Config
	db       database.Service
	log      *logrus.Logger
	handler  *handlers.Handler
	sessions *auth.Sessions
	users    repository.UserRepository
	renderer *templates.Renderer
	secure   bool
}

// New wires the repositories, sessions and handlers over db.
func New(cfg *config.Config, db database.Service, log *logrus.Logger) (*Server, error) {
	renderer, err := templates.New()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	gormDB := db.GetDB()
	users := repository.NewUserRepository(gormDB)
	secure := cfg.GinMode == gin.ReleaseMode
	sessions := auth.NewSessions(
		auth.NewTokenManager(cfg.SecretKey),
		cfg.SessionTTL,
		cfg.RememberTTL,
		secure,
	)

	return &Server{
		cfg:      cfg,
		db:       db,
		log:      log,
		sessions: sessions,
		users:    users,
		renderer: renderer,
		secure:   secure,
		handler: handlers.NewHandler(handlers.Deps{
			Users:    users,
			Follows:  repository.NewFollowRepository(gormDB),
			Posts:    repository.NewPostRepository(gormDB),
			Sessions: sessions,
			PerPage:  cfg.PostsPerPage,
			Log:      log,
		}),
	}, nil
}

// NewServer creates and configures a new server
func NewServer(cfg *config.Config, db database.Service, log *logrus.Logger) (*http.Server, error) {
	s, err := New(cfg, db, log)
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}, nil
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.CORSOrigins) == 0 || (len(s.cfg.CORSOrigins) == 1 && s.cfg.CORSOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.CORSOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.HTMLRender = s.renderer

	// Order matters: Instrument sits outside recovery so panics are timed
	// with their 500 status, and the transaction sits inside it so a panic
	// rolls back before the 500 page is rendered.
	r.Use(
		middleware.RequestID(),
		middleware.Logger(s.log),
		monitoring.Instrument(),
		gin.CustomRecovery(s.handler.Errors.Recover),
		flash.Secure(s.secure),
		middleware.LoadUser(s.sessions, s.users, s.log),
		middleware.TouchLastSeen(s.users, s.log),
		middleware.Transaction(s.db.GetDB(), s.log, s.handler.Errors.Internal),
	)
	r.NoRoute(s.handler.Errors.NotFound)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.db.Health())
	})
	r.GET("/metrics", monitoring.Handler())

	// Public pages
	r.GET("/login", s.handler.Auth.LoginPage)
	r.POST("/login", s.handler.Auth.Login)
	r.GET("/logout", s.handler.Auth.Logout)
	r.GET("/register", s.handler.Auth.RegisterPage)
	r.POST("/register", s.handler.Auth.Register)

	// Pages behind login
	site := r.Group("")
	site.Use(middleware.RequireLogin(), middleware.SameOrigin())
	{
		for _, path := range []string{"/", "/index"} {
			site.GET(path, s.handler.Post.Index)
			site.POST(path, s.handler.Post.CreatePost)
		}
		site.GET("/explore", s.handler.Post.Explore)
		site.GET("/user/:username", s.handler.User.Profile)
		site.GET("/edit_profile", s.handler.User.EditProfilePage)
		site.POST("/edit_profile", s.handler.User.EditProfile)
		site.POST("/follow/:username", s.handler.User.Follow)
		site.POST("/unfollow/:username", s.handler.User.Unfollow)
	}

	// API routes
	api := r.Group("/api")
	api.Use(cors.New(s.corsConfig()))
	{
		// Preflight requests are answered by the CORS middleware.
		api.OPTIONS("/*path", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		api.POST("/tokens", s.handler.Auth.CreateToken)
		api.POST("/users", s.handler.Auth.CreateUser)

		api.GET("/users/:username", s.handler.User.GetUser)
		api.GET("/users/:username/posts", s.handler.User.GetUserPosts)
		api.GET("/users/:username/followers", s.handler.User.GetFollowers)
		api.GET("/users/:username/following", s.handler.User.GetFollowing)

		protected := api.Group("")
		protected.Use(middleware.RequireLogin())
		{
			protected.GET("/feed", s.handler.Post.Feed)
		}
	}

	return r
}
