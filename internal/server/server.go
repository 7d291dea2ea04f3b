package server

import (
	"context"
	"net/http"
	"time"

	"github.com/agrovista/agrigate/internal/auth"
	authdomain "github.com/agrovista/agrigate/internal/auth/domain"
	"github.com/agrovista/agrigate/internal/auth/session"
	"github.com/agrovista/agrigate/internal/config"
	"github.com/agrovista/agrigate/internal/identity"
	"github.com/agrovista/agrigate/internal/inference"
	obslogger "github.com/agrovista/agrigate/internal/observability/logger"
	obsmetrics "github.com/agrovista/agrigate/internal/observability/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	obsmetrics.Module,
	auth.Module,
	session.Module,
	identity.Module,
	inference.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	log       *zap.Logger
	authsvc   authdomain.Service
	users     authdomain.UserRepository
	logs      authdomain.LogRepository
	sessions  *session.Manager
	idp       identity.Client
	inference *inference.Client
}

func NewServer(
	engine *gin.Engine,
	log *zap.Logger,
	authsvc authdomain.Service,
	users authdomain.UserRepository,
	logs authdomain.LogRepository,
	sessions *session.Manager,
	idp identity.Client,
	inferenceClient *inference.Client,
) *Server {
	return &Server{
		engine:    engine,
		log:       log.Named("server"),
		authsvc:   authsvc,
		users:     users,
		logs:      logs,
		sessions:  sessions,
		idp:       idp,
		inference: inferenceClient,
	}
}

func (s *Server) RegisterRoutes() {
	r := s.engine

	authGroup := r.Group("/auth")
	authGroup.GET("/login", s.Login)
	authGroup.POST("/callback", s.Callback)
	authGroup.POST("/logout", s.Logout)
	authGroup.GET("/me", s.AuthRequired(), s.Me)

	ai := r.Group("/ai", s.AuthRequired())
	ai.POST("/predict", s.Predict)
	ai.Any("/forward/*path", s.ForwardAI)

	r.GET("/logs", s.AuthRequired(), s.ListLogs)
	r.POST("/logs", s.AuthRequired(), s.CreateLog)
	r.GET("/history", s.AuthRequired(), s.History)
	r.GET("/users", s.AuthRequired(), s.ListUsers)
	r.GET("/users/me", s.AuthRequired(), s.Me)
}
