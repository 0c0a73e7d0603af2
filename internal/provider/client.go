package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client 外部服务的HTTP客户端接口
type Client interface {
	// Get 发送GET请求
	Get(ctx context.Context, path string, result interface{}) error
	// Post 发送JSON POST请求
	Post(ctx context.Context, path string, data interface{}, result interface{}) error
	// PostMultipart 上传文件并附带表单字段
	PostMultipart(ctx context.Context, path string, form MultipartForm, result interface{}) error
	// GetConfig 获取客户端配置
	GetConfig() *ServiceConfig
}

// MultipartForm multipart请求内容
type MultipartForm struct {
	Fields    map[string]string
	FileField string
	FileName  string
	FileData  []byte
}

// APIError 表示服务返回的错误状态
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status code: %d): %s - %s", e.StatusCode, e.Message, e.Detail)
}

// HTTPClient 实现了外部服务的HTTP客户端
type HTTPClient struct {
	client  *http.Client
	config  *ServiceConfig
	headers map[string]string
	logger  *logrus.Logger
}

// NewClient 创建一个新的HTTP客户端
func NewClient(config *ServiceConfig, logger *logrus.Logger) (*HTTPClient, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		return nil, errors.New("provider base url is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	client := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": "multimodal-rag-go/1.0",
	}
	if config.APIKey != "" {
		headers["Authorization"] = "Bearer " + config.APIKey
	}

	return &HTTPClient{
		client:  client,
		config:  config,
		headers: headers,
		logger:  logger,
	}, nil
}

// Get 发送GET请求
func (c *HTTPClient) Get(ctx context.Context, path string, result interface{}) error {
	return c.doRequestWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	}, result)
}

// Post 发送JSON POST请求
func (c *HTTPClient) Post(ctx context.Context, path string, data interface{}, result interface{}) error {
	var payload []byte
	if data != nil {
		var err error
		payload, err = json.Marshal(data)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request data")
		}
	}

	return c.doRequestWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, result)
}

// PostMultipart 上传文件
func (c *HTTPClient) PostMultipart(ctx context.Context, path string, form MultipartForm, result interface{}) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for key, value := range form.Fields {
		if err := writer.WriteField(key, value); err != nil {
			return errors.Wrapf(err, "failed to write field %s", key)
		}
	}

	field := form.FileField
	if field == "" {
		field = "file"
	}
	part, err := writer.CreateFormFile(field, form.FileName)
	if err != nil {
		return errors.Wrap(err, "failed to create form file")
	}
	if _, err := part.Write(form.FileData); err != nil {
		return errors.Wrap(err, "failed to write file data")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "failed to close multipart writer")
	}

	payload := body.Bytes()
	contentType := writer.FormDataContentType()

	return c.doRequestWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, result)
}

// doRequestWithRetry 执行HTTP请求，只对传输错误重试
// 每次尝试都重新构造请求，保证请求体可以重复发送
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, newRequest func() (*http.Request, error), result interface{}) error {
	var (
		lastErr error
		resp    *http.Response
	)

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "request context canceled")
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := newRequest()
		if err != nil {
			return errors.Wrap(err, "failed to create request")
		}
		for key, value := range c.headers {
			req.Header.Set(key, value)
		}

		resp, lastErr = c.client.Do(req)
		if lastErr == nil {
			break
		}

		c.logger.WithFields(logrus.Fields{
			"url":     req.URL.String(),
			"attempt": attempt + 1,
		}).Warnf("Provider request failed: %v", lastErr)
	}

	if lastErr != nil {
		return errors.Wrap(lastErr, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    "API call failed",
		}
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
			apiErr.Detail = errResp.Detail
		} else {
			apiErr.Detail = string(body)
		}
		return apiErr
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return errors.Wrap(err, "failed to unmarshal response JSON")
		}
	}

	return nil
}

// GetConfig 返回客户端配置
func (c *HTTPClient) GetConfig() *ServiceConfig {
	return c.config
}

// WithHeader 添加自定义请求头
func (c *HTTPClient) WithHeader(key, value string) *HTTPClient {
	c.headers[key] = value
	return c
}

func (c *HTTPClient) url(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}
