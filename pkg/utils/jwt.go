package utils

import (
	"fmt"
	"time"

	"clientbridge/pkg/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// AuthenticatedRole is the database role the platform assigns to signed-in users
	AuthenticatedRole = "authenticated"

	refreshTokenType = "refresh"
	accessTokenTTL   = time.Hour
	refreshTokenTTL  = 7 * 24 * time.Hour
)

// JWTService 签发与校验与平台格式兼容的 HS256 令牌
type JWTService struct {
	secretKey []byte
}

// NewJWTService 创建JWT服务
func NewJWTService(secretKey string) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
	}
}

// GenerateTokenPair 生成访问令牌和刷新令牌对；expiresIn 为访问令牌剩余秒数
func (j *JWTService) GenerateTokenPair(userID, email string) (accessToken, refreshToken string, expiresIn int64, err error) {
	accessToken, expiresIn, err = j.GenerateAccessToken(userID, email)
	if err != nil {
		return "", "", 0, err
	}

	now := time.Now()
	refreshClaims := &models.TokenClaims{
		Subject:  userID,
		Email:    email,
		Role:     AuthenticatedRole,
		Audience: AuthenticatedRole,
		Type:     refreshTokenType,
		Exp:      now.Add(refreshTokenTTL).Unix(),
		Iat:      now.Unix(),
	}
	refreshToken, err = jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(j.secretKey)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, expiresIn, nil
}

// GenerateAccessToken 生成访问令牌
func (j *JWTService) GenerateAccessToken(userID, email string) (string, int64, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		Subject:  userID,
		Email:    email,
		Role:     AuthenticatedRole,
		Audience: AuthenticatedRole,
		Exp:      now.Add(accessTokenTTL).Unix(),
		Iat:      now.Unix(),
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	return tokenString, int64(accessTokenTTL / time.Second), nil
}

// ValidateToken 验证令牌签名与有效期
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return claims, nil
}

// ValidateAccessToken 只接受访问令牌
func (j *JWTService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type == refreshTokenType {
		return nil, fmt.Errorf("refresh token used as access token")
	}
	return claims, nil
}

// ValidateRefreshToken 验证刷新令牌
func (j *JWTService) ValidateRefreshToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != refreshTokenType {
		return nil, fmt.Errorf("invalid token type: expected refresh, got %q", claims.Type)
	}
	return claims, nil
}
