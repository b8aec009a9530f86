package middleware

import (
	"context"
	"net/http"
	"strings"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/config"
	"clientbridge/pkg/database"
	"clientbridge/pkg/logger"
	"clientbridge/pkg/models"
	"clientbridge/pkg/utils"
)

// ContextKey 用于在context中存储用户信息的键
type ContextKey string

const (
	UserContextKey  ContextKey = "user"
	TokenContextKey ContextKey = "access_token"
)

// UserLoader resolves token claims to a full user (profile included)
type UserLoader interface {
	LoadUser(ctx context.Context, authUser models.AuthUser, accessToken string) (*models.User, error)
}

// BearerToken 从 Authorization 头读取令牌；浏览器的 WebSocket 无法设置头，
// 因此也接受 access_token 查询参数
func BearerToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return ""
		}
		return strings.TrimSpace(tokenString)
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

// authenticate 校验令牌并加载用户资料，返回携带调用者身份的 context
func authenticate(r *http.Request, jwtService *utils.JWTService, users UserLoader) (context.Context, error) {
	tokenString := BearerToken(r)
	if tokenString == "" {
		return nil, apperrors.Unauthenticated("Missing authorization header")
	}

	claims, err := jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUnauthenticated, "Invalid token")
	}

	user, err := users.LoadUser(r.Context(), models.AuthUser{ID: claims.Subject, Email: claims.Email}, tokenString)
	if err != nil {
		return nil, err
	}

	ctx := context.WithValue(r.Context(), UserContextKey, user)
	ctx = context.WithValue(ctx, TokenContextKey, tokenString)
	ctx = database.WithCaller(ctx, database.Caller{UserID: user.ID, Email: user.Email, AccessToken: tokenString})
	ctx = logger.WithUserID(ctx, user.ID)
	return ctx, nil
}

// AuthMiddleware JWT认证中间件
func AuthMiddleware(cfg *config.Config, users UserLoader) func(http.Handler) http.Handler {
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, jwtService, users)
			if err != nil {
				logger.FromContext(r.Context()).Debug("authentication failed", "path", r.URL.Path, "error", err)
				if apperrors.IsKind(err, apperrors.KindUnauthenticated) {
					utils.WriteAppError(w, r, err)
					return
				}
				// 资料加载的后端错误按原样返回，其余一律 401
				if apperrors.IsKind(err, apperrors.KindBackend) || apperrors.IsKind(err, apperrors.KindNetwork) {
					utils.WriteAppError(w, r, err)
					return
				}
				utils.WriteUnauthorizedResponse(w, "Invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware 可选的认证中间件（不强制要求认证）
func OptionalAuthMiddleware(cfg *config.Config, users UserLoader) func(http.Handler) http.Handler {
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if BearerToken(r) == "" {
				next.ServeHTTP(w, r)
				return
			}
			// 令牌无效时按匿名继续处理
			if ctx, err := authenticate(r, jwtService, users); err == nil {
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext 从context中获取用户信息
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}

// GetAccessToken returns the raw access token the request was authenticated with
func GetAccessToken(ctx context.Context) string {
	token, _ := ctx.Value(TokenContextKey).(string)
	return token
}

// RequireUser 要求用户必须已认证的辅助函数
func RequireUser(ctx context.Context) (*models.User, error) {
	user, ok := GetUserFromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthenticated("Not signed in")
	}
	return user, nil
}
