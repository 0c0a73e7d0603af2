// Package provider 封装外部模型服务的HTTP调用
// 包括版面解析、重排序和向量嵌入服务
package provider

import (
	"time"
)

// ServiceConfig 外部服务连接配置
type ServiceConfig struct {
	BaseURL    string        // 服务基础URL
	APIKey     string        // Bearer令牌，可为空
	Timeout    time.Duration // 单次请求超时时间
	MaxRetries int           // 传输错误的最大重试次数
	RetryDelay time.Duration // 重试间隔，按尝试次数线性增加
}

// DefaultConfig 返回默认配置
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		BaseURL:    "http://localhost:8000/api",
		Timeout:    120 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Second,
	}
}

// WithBaseURL 设置基础URL
func (c *ServiceConfig) WithBaseURL(url string) *ServiceConfig {
	c.BaseURL = url
	return c
}

// WithAPIKey 设置访问令牌
func (c *ServiceConfig) WithAPIKey(key string) *ServiceConfig {
	c.APIKey = key
	return c
}

// WithTimeout 设置请求超时时间
func (c *ServiceConfig) WithTimeout(timeout time.Duration) *ServiceConfig {
	c.Timeout = timeout
	return c
}

// WithRetry 设置重试参数
func (c *ServiceConfig) WithRetry(maxRetries int, retryDelay time.Duration) *ServiceConfig {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
	return c
}
