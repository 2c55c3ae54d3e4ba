package http

import (
	"context"
	"net/http"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/application/usecase"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/config"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/monitoring"
	"github.com/eben2468/srcwebsite-sub012/internal/interfaces/http/handlers"
	"github.com/eben2468/srcwebsite-sub012/internal/interfaces/websocket"
	"github.com/eben2468/srcwebsite-sub012/pkg/safego"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	router *gin.Engine
	logger *zap.Logger
}

// Deps are the services the router exposes.
type Deps struct {
	Chat       *usecase.ChatService
	Accounts   *usecase.AccountService
	Hub        *websocket.Hub
	Monitor    *monitoring.Monitor
	CookieName string
	UploadsDir string
}

// NewServer 创建HTTP服务器
func NewServer(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	if cfg.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger = logger.With(zap.String("component", "http"))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger, deps.Monitor))
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.Use(authenticate(deps.Accounts, deps.CookieName))

	setupRoutes(router, cfg, deps, logger)

	return &Server{
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		router: router,
		logger: logger,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动服务器
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))

	safego.Go(s.logger, "http-server", func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	})
	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// setupRoutes 设置路由
func setupRoutes(router *gin.Engine, cfg config.ServerConfig, deps Deps, logger *zap.Logger) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	if deps.Monitor != nil {
		router.GET("/metrics", gin.WrapH(deps.Monitor.PrometheusHandler()))
	}
	if deps.UploadsDir != "" {
		router.Static("/uploads", deps.UploadsDir)
	}

	v1 := router.Group("/api/v1")
	{
		if deps.Accounts != nil {
			authHandler := handlers.NewAuthHandler(deps.Accounts, deps.CookieName, cfg.Mode != "debug", logger)
			v1.POST("/auth/login", authHandler.Login)
			v1.POST("/auth/logout", authHandler.Logout)
			v1.GET("/auth/me", authHandler.Me)
		}

		chatHandler := handlers.NewChatHandler(deps.Chat, logger)
		v1.GET("/chat", chatHandler.Dispatch)
		v1.POST("/chat", chatHandler.Dispatch)
		v1.Handle(http.MethodPut, "/chat", chatHandler.Dispatch)
		v1.Handle(http.MethodDelete, "/chat", chatHandler.Dispatch)

		if deps.Hub != nil {
			upgrader := websocket.NewUpgrader(deps.Hub, cfg.CORSOrigins, logger)
			v1.GET("/chat/ws", handlers.NewWSHandler(deps.Chat, upgrader, logger).Subscribe)
		}

		if deps.Monitor != nil {
			var hub handlers.ConnCounter
			if deps.Hub != nil {
				hub = deps.Hub
			}
			v1.GET("/stats", handlers.NewStatsHandler(deps.Monitor, hub, logger).GetStats)
		}
	}
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			// 凭据请求不能配合通配符
			cc.AllowOriginFunc = func(string) bool { return true }
			return cc
		}
	}
	if len(origins) == 0 {
		cc.AllowOriginFunc = func(string) bool { return true }
		return cc
	}
	cc.AllowOrigins = origins
	return cc
}
