package handlers

import (
	"context"
	"net/http"
	"time"

	"clientbridge/pkg/config"
	"clientbridge/pkg/middleware"
	"clientbridge/pkg/models"
	"clientbridge/pkg/services"
	"clientbridge/pkg/utils"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	config *config.Config
	svc    *services.Service
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, svc *services.Service) *AuthHandler {
	return &AuthHandler{config: cfg, svc: svc}
}

// SignUp 用户注册
// POST /api/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}

	result, err := h.svc.SignUp(r.Context(), req)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}

	// 需要邮箱确认时没有会话，返回 202
	if result.Status == models.SignUpPendingConfirmation {
		utils.WriteJSONResponse(w, http.StatusAccepted, result)
		return
	}
	utils.WriteCreatedResponse(w, result)
}

// Login 用户登录
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}

	result, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, result)
}

// RefreshToken 刷新令牌
// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}

	session, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, session)
}

// Logout 用户登出；远端失败也返回成功
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context(), middleware.BearerToken(r))
	utils.WriteSuccessResponse(w, map[string]bool{"signed_out": true})
}

// Me 返回当前用户（资料 + 邮箱）
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, user)
}

// HealthCheck 健康检查
// GET /health
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	dbStatus := "healthy"
	if err := h.svc.DB().HealthCheck(ctx); err != nil {
		status = http.StatusServiceUnavailable
		dbStatus = "unhealthy: " + err.Error()
	}

	utils.WriteJSONResponse(w, status, map[string]interface{}{
		"service":     "clientbridge",
		"environment": h.config.Environment,
		"database":    h.getDatabaseType(),
		"db_status":   dbStatus,
		"timestamp":   time.Now().Unix(),
	})
}

// getDatabaseType 获取数据库类型
func (h *AuthHandler) getDatabaseType() string {
	switch {
	case h.config.UseLocalDB:
		return "sqlite"
	case h.config.PostgresDSN != "":
		return "postgresql"
	case h.config.SupabaseURL != "":
		return "supabase"
	}
	return "unknown"
}
