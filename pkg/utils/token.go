package utils

import (
	"crypto/rand"
	"encoding/base64"
	"net/url"
	"strings"
)

// InviteTokenBytes 邀请 token 的随机字节数
const InviteTokenBytes = 24

// GenerateURLToken 生成 URL-safe 的随机 token，长度约为 4/3*n 字符
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = InviteTokenBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// RawURLEncoding: no '=' padding, no '+' or '/'
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// InviteURL builds the page link a client follows to redeem a token
func InviteURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/invite?token=" + url.QueryEscape(token)
}
