package embedding

import (
	"context"
	"errors"
	"fmt"
)

// EmbeddingError 嵌入错误类型
type EmbeddingError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey  = 1001 // 无效的API密钥
	ErrCodeInvalidRequest = 1002 // 无效的请求
	ErrCodeNetworkError   = 1003 // 网络连接错误
	ErrCodeRateLimited    = 1004 // 请求频率超限
	ErrCodeServerError    = 1005 // 服务器错误
	ErrCodeTimeout        = 1006 // 请求超时
	ErrCodeEmptyInput     = 1007 // 输入为空
)

var (
	// ErrEmptyText 输入文本为空
	ErrEmptyText = NewEmbeddingError(ErrCodeEmptyInput, "input text cannot be empty")
	// ErrMissingAPIKey 缺少API密钥
	ErrMissingAPIKey = NewEmbeddingError(ErrCodeInvalidAPIKey, "api key is required")
)

// NewEmbeddingError 创建新的嵌入错误
func NewEmbeddingError(code int, message string) EmbeddingError {
	return EmbeddingError{
		Code:    code,
		Message: message,
	}
}

// WrapError 把底层错误转换为嵌入错误，超时单独归类
func WrapError(err error, code int) EmbeddingError {
	if err == nil {
		return EmbeddingError{Code: code, Message: "unknown error"}
	}
	var embErr EmbeddingError
	if errors.As(err, &embErr) {
		return embErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		code = ErrCodeTimeout
	}
	return EmbeddingError{Code: code, Message: err.Error()}
}
