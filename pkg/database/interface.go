package database

import (
	"context"
	"fmt"
	"time"

	"clientbridge/pkg/logger"
	"clientbridge/pkg/models"
)

// DatabaseInterface 定义平台数据表访问接口。
// The caller identity travels in ctx (see WithCaller) so adapters act on the user's behalf.
type DatabaseInterface interface {
	// Profiles
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	ListProfiles(ctx context.Context, ids []string) ([]models.Profile, error)

	// Projects & membership
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	UpdateProjectProgress(ctx context.Context, id string, progress int) error
	ListProjectsByFreelancer(ctx context.Context, freelancerID string) ([]models.Project, error)
	ListProjectsByClient(ctx context.Context, clientID string) ([]models.Project, error)
	AddAllowedClients(ctx context.Context, projectID string, emails []string) error
	ListAllowedClients(ctx context.Context, projectID string) ([]models.AllowedClient, error)
	GetProjectByInviteToken(ctx context.Context, token, viewerEmail string) (*models.InviteSummary, error)
	GetProjectClient(ctx context.Context, projectID, clientID string) (*models.ProjectClient, error)
	AddProjectClient(ctx context.Context, projectID, clientID string) (*models.ProjectClient, error)
	ListProjectClientIDs(ctx context.Context, projectID string, asRole models.Role) ([]string, error)

	// Todos & categories
	ListTodos(ctx context.Context, projectID string) ([]models.Todo, error)
	GetTodo(ctx context.Context, id string) (*models.Todo, error)
	CreateTodo(ctx context.Context, t *models.Todo) error
	UpdateTodo(ctx context.Context, t *models.Todo) error
	DeleteTodo(ctx context.Context, id string) error
	ListCategories(ctx context.Context, projectID string) ([]models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id string) error

	// Threads & replies
	ListThreads(ctx context.Context, projectID string) ([]models.Thread, error)
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	CreateThread(ctx context.Context, t *models.Thread) error
	SetThreadResolved(ctx context.Context, id string, resolved bool, at time.Time) error
	DeleteThread(ctx context.Context, id string) error
	GetReplyStats(ctx context.Context, threadIDs []string) (map[string]models.ReplyStats, error)
	ListReplies(ctx context.Context, threadID string) ([]models.ThreadReply, error)
	GetReply(ctx context.Context, id string) (*models.ThreadReply, error)
	CreateReply(ctx context.Context, r *models.ThreadReply) error
	UpdateReplyContent(ctx context.Context, id, content string, at time.Time) error

	// Documents
	ListDocuments(ctx context.Context, projectID string) ([]models.Document, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	CreateDocument(ctx context.Context, d *models.Document) error
	UpdateDocument(ctx context.Context, d *models.Document) error
	DeleteDocument(ctx context.Context, id string) error

	// Notifications
	InsertNotifications(ctx context.Context, batch []models.Notification) ([]models.Notification, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)

	// 健康检查
	HealthCheck(ctx context.Context) error
	Close() error
}

// AuthProvider is the platform's authentication surface
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*models.SignUpOutcome, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*models.AuthUser, error)
}

// Backend bundles the two collaborators a deployment talks to
type Backend struct {
	DB   DatabaseInterface
	Auth AuthProvider
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	UseLocalDB      bool
	LocalDBPath     string
	PostgresDSN     string
	PostgresRLS     bool
	SupabaseURL     string
	SupabaseAnonKey string
	JWTSecret       string
	Debug           bool
}

// NewBackend 根据配置选择实现：本地 SQLite > PostgreSQL > Supabase REST
func NewBackend(config DatabaseConfig) (*Backend, error) {
	if config.UseLocalDB {
		local, err := OpenLocalDatabase(config.LocalDBPath)
		if err != nil {
			return nil, fmt.Errorf("open local database: %w", err)
		}
		logger.Info("using local SQLite database", "path", config.LocalDBPath)
		return &Backend{DB: local, Auth: NewLocalAuth(local, config.JWTSecret)}, nil
	}

	auth := NewSupabaseAuth(config.SupabaseURL, config.SupabaseAnonKey)

	if config.PostgresDSN != "" {
		pg, err := NewPostgresDatabase(config.PostgresDSN, config.PostgresRLS)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("using PostgreSQL database", "rls", config.PostgresRLS)
		return &Backend{DB: pg, Auth: auth}, nil
	}

	if config.SupabaseURL == "" || config.SupabaseAnonKey == "" {
		return nil, fmt.Errorf("no database configured: set SUPABASE_URL and SUPABASE_ANON_KEY, POSTGRES_DSN, or USE_LOCAL_DB=true")
	}
	logger.Info("using Supabase REST API", "url", config.SupabaseURL)
	return &Backend{DB: NewSupabaseDatabase(config.SupabaseURL, config.SupabaseAnonKey), Auth: auth}, nil
}
