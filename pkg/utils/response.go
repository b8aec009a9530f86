package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/logger"
)

// APIResponse 标准API响应结构
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError 错误信息结构；Kind 供客户端按类别分支
type APIError struct {
	Code    string      `json:"code"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSONResponse 写入JSON响应
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteSuccessResponse 写入成功响应
func WriteSuccessResponse(w http.ResponseWriter, data interface{}) {
	WriteJSONResponse(w, http.StatusOK, data)
}

// WriteCreatedResponse 写入创建成功响应
func WriteCreatedResponse(w http.ResponseWriter, data interface{}) {
	WriteJSONResponse(w, http.StatusCreated, data)
}

// WriteErrorResponseWithCode 写入带错误代码的错误响应
func WriteErrorResponseWithCode(w http.ResponseWriter, statusCode int, code, message string, details interface{}) {
	writeError(w, statusCode, &APIError{Code: code, Message: message, Details: details})
}

func writeError(w http.ResponseWriter, statusCode int, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(APIResponse{Success: false, Error: apiErr}); err != nil {
		logger.Error("failed to encode error response", "error", err)
	}
}

// WriteAppError 把任意错误映射为统一的错误响应
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Backend(err, "Something went wrong")
	}

	status := appErr.HTTPStatus()
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "kind", appErr.Kind, "error", err)
	} else {
		log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "kind", appErr.Kind, "error", err)
	}

	code := string(appErr.Code)
	if code == "" {
		code = string(appErr.Kind)
	}
	writeError(w, status, &APIError{
		Code:    code,
		Kind:    string(appErr.Kind),
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

// WriteBadRequestResponse 写入400错误响应
func WriteBadRequestResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusBadRequest, string(apperrors.KindValidation), message, nil)
}

// WriteUnauthorizedResponse 写入401错误响应
func WriteUnauthorizedResponse(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, &APIError{
		Code:    string(apperrors.KindUnauthenticated),
		Kind:    string(apperrors.KindUnauthenticated),
		Message: message,
	})
}

// WriteNotFoundResponse 写入404错误响应
func WriteNotFoundResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusNotFound, string(apperrors.KindNotFound), message, nil)
}

// WriteValidationErrorResponse 写入验证错误响应
func WriteValidationErrorResponse(w http.ResponseWriter, message string, details interface{}) {
	writeError(w, http.StatusBadRequest, &APIError{
		Code:    string(apperrors.KindValidation),
		Kind:    string(apperrors.KindValidation),
		Message: message,
		Details: details,
	})
}

// ParseJSONBody 解析JSON请求体；空请求体或格式错误返回 ValidationError
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("Request body is required")
		}
		return apperrors.Wrap(err, apperrors.KindValidation, "Invalid JSON body")
	}
	return nil
}

// GetQueryParam 获取查询参数，如果不存在则返回默认值
func GetQueryParam(r *http.Request, key, defaultValue string) string {
	if value := r.URL.Query().Get(key); value != "" {
		return value
	}
	return defaultValue
}
