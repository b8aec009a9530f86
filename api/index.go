package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"clientbridge/pkg/config"
	"clientbridge/pkg/database"
	"clientbridge/pkg/handlers"
	"clientbridge/pkg/logger"
	"clientbridge/pkg/mailer"
	customMiddleware "clientbridge/pkg/middleware"
	"clientbridge/pkg/realtime"
	"clientbridge/pkg/services"
	"clientbridge/pkg/storage"
	"clientbridge/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// App 持有一次启动所需的全部组件
type App struct {
	Config  *config.Config
	Service *services.Service
	Hub     realtime.Hub
	Router  http.Handler
}

// NewApp 根据配置装配后端、存储、实时通道与邮件
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	backend, err := database.GetBackend(ctx, cfg.DatabaseConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database backend: %w", err)
	}

	files, err := storage.NewStorage(ctx, storageConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialise storage: %w", err)
	}

	var hub realtime.Hub
	if cfg.RedisURL != "" {
		redisHub, err := realtime.NewRedisHub(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		hub = redisHub
	} else {
		hub = realtime.NewLocalHub()
	}

	var mail mailer.Mailer = mailer.NoopMailer{}
	if cfg.MailEnabled() {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		logger.Info("SMTP not configured, invite e-mails are disabled")
	}

	svc := services.New(services.Options{
		DB:      backend.DB,
		Auth:    backend.Auth,
		Storage: files,
		Hub:     hub,
		Mailer:  mail,
		BaseURL: cfg.BaseURL,
	})

	app := &App{Config: cfg, Service: svc, Hub: hub}
	app.Router = NewRouter(cfg, svc, hub)
	return app, nil
}

// Close 释放实时通道和数据库连接
func (a *App) Close() error {
	hubErr := a.Hub.Close()
	if err := database.CloseBackend(); err != nil {
		return err
	}
	return hubErr
}

// storageConfig 把应用配置转换为存储层配置
func storageConfig(cfg *config.Config) storage.Config {
	sc := storage.Config{
		Type:   cfg.StorageDriver,
		Bucket: cfg.StorageBucket,
	}
	switch cfg.StorageDriver {
	case "local":
		sc.BasePath = cfg.StorageLocalDir
		sc.BaseURL = cfg.BaseURL + "/files"
	case "s3":
		sc.Region = cfg.S3Region
		sc.Endpoint = cfg.S3Endpoint
		sc.AccessKey = cfg.S3AccessKey
		sc.SecretKey = cfg.S3SecretKey
		sc.BaseURL = cfg.S3PublicURL
	case "supabase":
		sc.Endpoint = cfg.SupabaseURL
		sc.APIKey = cfg.SupabaseAnonKey
	}
	return sc
}

var (
	cachedApp *App
	appMu     sync.Mutex
)

// Handler 是Serverless函数的入口点
// 所有API端点集中在一个Chi路由器中；组件按进程缓存，初始化失败时下次请求重试
func Handler(w http.ResponseWriter, r *http.Request) {
	appMu.Lock()
	if cachedApp == nil {
		cfg := config.GetCached()
		logger.Init(cfg.Environment)
		app, err := NewApp(r.Context(), cfg)
		if err != nil {
			appMu.Unlock()
			logger.Error("application init failed", "error", err)
			utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError, "CONFIGURATION_ERROR", err.Error(), nil)
			return
		}
		cachedApp = app
	}
	app := cachedApp
	appMu.Unlock()

	app.Router.ServeHTTP(w, r)
}

// NewRouter 创建路由器
func NewRouter(cfg *config.Config, svc *services.Service, hub realtime.Hub) *chi.Mux {
	router := chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, svc, hub)
	return router
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(customMiddleware.RequestContext)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))
	router.Use(customMiddleware.CORS(cfg))
	router.Use(middleware.Heartbeat("/ping"))
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, cfg *config.Config, svc *services.Service, hub realtime.Hub) {
	authHandler := handlers.NewAuthHandler(cfg, svc)
	invitesHandler := handlers.NewInvitesHandler(cfg, svc)
	projectsHandler := handlers.NewProjectsHandler(cfg, svc)
	todosHandler := handlers.NewTodosHandler(cfg, svc)
	threadsHandler := handlers.NewThreadsHandler(cfg, svc)
	documentsHandler := handlers.NewDocumentsHandler(cfg, svc)
	notificationsHandler := handlers.NewNotificationsHandler(cfg, svc, realtime.NewServer(hub, allowOrigin(cfg)))

	requireAuth := customMiddleware.AuthMiddleware(cfg, svc)
	optionalAuth := customMiddleware.OptionalAuthMiddleware(cfg, svc)

	// 健康检查端点
	router.Get("/health", authHandler.HealthCheck)

	// 本地存储驱动下由本服务提供上传文件
	if cfg.StorageDriver == "local" {
		fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.StorageLocalDir)))
		router.Get("/files/*", fileServer.ServeHTTP)
	}

	router.Route("/api", func(r chi.Router) {
		// WebSocket 长连接不受超时和压缩中间件影响
		r.With(requireAuth).Get("/notifications/ws", notificationsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(25 * time.Second))
			r.Use(middleware.Compress(5))

			// 公开路由（不需要认证），按IP限流
			r.Route("/auth", func(r chi.Router) {
				r.With(customMiddleware.RateLimitByIP(cfg.AuthRateLimit)).Group(func(r chi.Router) {
					r.Post("/signup", authHandler.SignUp)
					r.Post("/login", authHandler.Login)
					r.Post("/refresh", authHandler.RefreshToken)
				})
				r.Post("/logout", authHandler.Logout)
				r.With(requireAuth).Get("/me", authHandler.Me)
			})

			r.With(optionalAuth).Get("/invites/{token}", invitesHandler.ResolveInvite)

			// 需要认证的路由
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Post("/invites/accept", invitesHandler.AcceptInvite)

				r.Route("/projects", func(r chi.Router) {
					r.Get("/", projectsHandler.ListProjects)
					r.Post("/", projectsHandler.CreateProject)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", projectsHandler.GetProject)
						r.Put("/", projectsHandler.UpdateProject)
						r.Post("/allowed-clients", projectsHandler.AddAllowedClients)

						r.Get("/todos", todosHandler.ListTodos)
						r.Post("/todos", todosHandler.CreateTodo)
						r.Get("/categories", todosHandler.ListCategories)
						r.Post("/categories", todosHandler.CreateCategory)
						r.Get("/threads", threadsHandler.ListThreads)
						r.Post("/threads", threadsHandler.CreateThread)
						r.Get("/documents", documentsHandler.ListDocuments)
						r.Post("/documents", documentsHandler.CreateDocument)
						r.Get("/documents/export", documentsHandler.ExportDocuments)
					})
				})

				r.Route("/todos/{id}", func(r chi.Router) {
					r.Put("/", todosHandler.UpdateTodo)
					r.Delete("/", todosHandler.DeleteTodo)
					r.Post("/toggle", todosHandler.ToggleTodo)
				})
				r.Delete("/categories/{id}", todosHandler.DeleteCategory)

				r.Route("/threads/{id}", func(r chi.Router) {
					r.Get("/", threadsHandler.GetThread)
					r.Delete("/", threadsHandler.DeleteThread)
					r.Post("/resolve", threadsHandler.ToggleResolved)
					r.Get("/replies", threadsHandler.ListReplies)
					r.Post("/replies", threadsHandler.CreateReply)
				})
				r.Put("/replies/{id}", threadsHandler.UpdateReply)

				r.Route("/documents/{id}", func(r chi.Router) {
					r.Put("/", documentsHandler.UpdateDocument)
					r.Delete("/", documentsHandler.DeleteDocument)
				})

				r.Get("/notifications", notificationsHandler.ListNotifications)
				r.Post("/notifications/read-all", notificationsHandler.MarkAllRead)
				r.Post("/notifications/{id}/read", notificationsHandler.MarkRead)
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), nil)
	})
}

// allowOrigin 复用 CORS 白名单校验 WebSocket 来源
func allowOrigin(cfg *config.Config) func(r *http.Request) bool {
	if len(cfg.AllowedOrigins) == 0 || cfg.AllowedOrigins[0] == "*" {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range cfg.AllowedOrigins {
			if strings.EqualFold(origin, allowed) {
				return true
			}
		}
		return false
	}
}
