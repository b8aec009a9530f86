package database

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"
	"clientbridge/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// LocalAuth 本地认证：bcrypt 密码 + 自签 JWT，令牌格式与平台一致
type LocalAuth struct {
	db  *LocalDatabase
	jwt *utils.JWTService
}

// NewLocalAuth 创建本地认证服务
func NewLocalAuth(db *LocalDatabase, secret string) *LocalAuth {
	return &LocalAuth{db: db, jwt: utils.NewJWTService(secret)}
}

var errInvalidCredentials = apperrors.Unauthenticated("Invalid email or password").WithCode(apperrors.CodeInvalidCredentials)

type authUserRow struct {
	user models.AuthUser
	hash string
}

func (a *LocalAuth) findUser(ctx context.Context, where string, arg string) (*authUserRow, error) {
	var (
		row       authUserRow
		confirmed sqlTime
	)
	err := a.db.queryRow(ctx, "User",
		"SELECT id, email, password_hash, email_confirmed_at FROM auth_users WHERE "+where,
		[]any{arg}, func(sc rowScanner) error {
			return sc.Scan(&row.user.ID, &row.user.Email, &row.hash, &confirmed)
		})
	if err != nil {
		return nil, err
	}
	row.user.EmailConfirmedAt = confirmed.ptr()
	return &row, nil
}

func (a *LocalAuth) issue(user models.AuthUser) (*models.Session, error) {
	access, refresh, expiresIn, err := a.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Backend(err, "Failed to issue session")
	}
	return &models.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
		TokenType:    "bearer",
		User:         user,
	}, nil
}

// SignUp 本地模式下邮箱自动确认，直接返回会话
func (a *LocalAuth) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*models.SignUpOutcome, error) {
	email = strings.TrimSpace(email)
	if _, err := a.findUser(ctx, "lower(email) = lower(?)", email); err == nil {
		return nil, apperrors.Validation("An account with this email already exists").WithCode(apperrors.CodeUserExists)
	} else if !apperrors.IsKind(err, apperrors.KindNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Backend(err, "Failed to secure password")
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.Validation("Invalid sign-up metadata")
	}

	now := time.Now().UTC()
	user := models.AuthUser{ID: newID(), Email: email, EmailConfirmedAt: &now}
	_, err = a.db.exec(ctx, "User",
		"INSERT INTO auth_users (id, email, password_hash, metadata, email_confirmed_at, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Email, string(hash), string(meta), a.db.ts(now), a.db.ts(now))
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeDuplicate) {
			return nil, apperrors.Validation("An account with this email already exists").WithCode(apperrors.CodeUserExists)
		}
		return nil, err
	}

	session, err := a.issue(user)
	if err != nil {
		return nil, err
	}
	return &models.SignUpOutcome{User: user, Session: session}, nil
}

func (a *LocalAuth) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	row, err := a.findUser(ctx, "lower(email) = lower(?)", strings.TrimSpace(email))
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(row.hash), []byte(password)) != nil {
		return nil, errInvalidCredentials
	}
	if row.user.EmailConfirmedAt == nil {
		return nil, apperrors.Unauthenticated("Please confirm your email before signing in").WithCode(apperrors.CodeEmailNotConfirmed)
	}
	return a.issue(row.user)
}

func (a *LocalAuth) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	claims, err := a.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUnauthenticated, "Session expired, please sign in again")
	}
	row, err := a.findUser(ctx, "id = ?", claims.Subject)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.Unauthenticated("Session expired, please sign in again")
		}
		return nil, err
	}
	return a.issue(row.user)
}

// SignOut 令牌无状态，客户端丢弃即可
func (a *LocalAuth) SignOut(ctx context.Context, accessToken string) error {
	return nil
}

func (a *LocalAuth) GetUser(ctx context.Context, accessToken string) (*models.AuthUser, error) {
	claims, err := a.jwt.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUnauthenticated, "Authentication required")
	}
	row, err := a.findUser(ctx, "id = ?", claims.Subject)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.Unauthenticated("Authentication required")
		}
		return nil, err
	}
	return &row.user, nil
}
