package middleware

import (
	"net/http"
	"strings"
)

// 路径两端可能混入的转义空白（邮件客户端改写邀请链接时常见）
var escapedSpaces = []string{"%20", "%09", "%0A", "%0a", "%0D", "%0d"}

// Normalize 清理经代理转发的请求，在日志和路由之前执行
//   - 去掉路径两端的空白，RawPath 同步处理，保证 chi 按 RawPath 路由时一致
//   - 去掉末尾的 /，"/api/projects/" 与 "/api/projects" 命中同一路由
//   - 按 X-Forwarded-Proto / X-Forwarded-Host 的第一个值还原 scheme 和 host（仅用于访问日志）
func Normalize() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.URL.Path = cleanPath(strings.TrimSpace(r.URL.Path))
			if r.URL.RawPath != "" {
				r.URL.RawPath = cleanPath(trimEscapedSpace(r.URL.RawPath))
			}

			if proto := firstForwarded(r.Header.Get("X-Forwarded-Proto")); proto == "http" || proto == "https" {
				r.URL.Scheme = proto
			}
			if host := firstForwarded(r.Header.Get("X-Forwarded-Host")); host != "" {
				r.Host = host
			}
			next.ServeHTTP(w, r)
		})
	}
}

func cleanPath(p string) string {
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func trimEscapedSpace(raw string) string {
	raw = strings.TrimSpace(raw)
	for trimmed := true; trimmed; {
		trimmed = false
		for _, esc := range escapedSpaces {
			if strings.HasPrefix(raw, esc) {
				raw, trimmed = raw[len(esc):], true
			}
			if strings.HasSuffix(raw, esc) {
				raw, trimmed = raw[:len(raw)-len(esc)], true
			}
		}
	}
	return raw
}

// firstForwarded 多级代理时头部形如 "https, http"，取最靠近客户端的值
func firstForwarded(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}
