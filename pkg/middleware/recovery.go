package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"clientbridge/pkg/config"
	"clientbridge/pkg/logger"
	"clientbridge/pkg/utils"
)

// Recovery 恢复中间件，处理panic并返回统一的错误响应
func Recovery(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// 连接被放弃时按原样继续抛出
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := debug.Stack()
				logger.FromContext(r.Context()).Error("panic recovered",
					"panic", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(stack),
				)

				if cfg.IsDevelopment() {
					// 开发环境：显示详细错误信息
					utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError,
						"INTERNAL_SERVER_ERROR",
						fmt.Sprintf("Internal server error: %v", rec),
						string(stack))
					return
				}
				utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError,
					"INTERNAL_SERVER_ERROR", "Internal server error occurred", nil)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
