package provider

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/fyerfyer/multimodal-rag/internal/document"
)

// DefaultParsingInstruction 发给版面解析服务的解析指令
const DefaultParsingInstruction = "Extract all text. For tables, preserve the structure exactly. " +
	"For charts or graphs, provide a detailed textual description of the trends and data points."

// DefaultVisionModel 解析图表时使用的视觉模型
const DefaultVisionModel = "openai-gpt-4o-mini"

// ParseResponse 版面解析服务的响应
type ParseResponse struct {
	Pages []document.ParsedPage `json:"pages"`
	Error string                `json:"error,omitempty"`
}

// ParserClient 版面/视觉解析服务客户端
// 把PDF和图片转换为按页组织的Markdown
type ParserClient struct {
	client      Client
	instruction string
	visionModel string
	language    string
}

// ParserOption 解析客户端选项
type ParserOption func(*ParserClient)

// WithInstruction 设置解析指令
func WithInstruction(instruction string) ParserOption {
	return func(c *ParserClient) {
		if instruction != "" {
			c.instruction = instruction
		}
	}
}

// WithVisionModel 设置视觉模型
func WithVisionModel(model string) ParserOption {
	return func(c *ParserClient) {
		if model != "" {
			c.visionModel = model
		}
	}
}

// WithLanguage 设置文档语言
func WithLanguage(lang string) ParserOption {
	return func(c *ParserClient) {
		if lang != "" {
			c.language = lang
		}
	}
}

// NewParserClient 创建解析服务客户端
func NewParserClient(client Client, opts ...ParserOption) *ParserClient {
	c := &ParserClient{
		client:      client,
		instruction: DefaultParsingInstruction,
		visionModel: DefaultVisionModel,
		language:    "en",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtractPages 上传文件并返回解析后的页面
func (c *ParserClient) ExtractPages(ctx context.Context, data []byte, filename string) ([]document.ParsedPage, error) {
	if len(data) == 0 {
		return nil, errors.New("empty file content")
	}

	var resp ParseResponse
	err := c.client.PostMultipart(ctx, "/parse", MultipartForm{
		Fields: map[string]string{
			"result_type":  "markdown",
			"user_prompt":  c.instruction,
			"vision_model": c.visionModel,
			"language":     c.language,
		},
		FileField: "file",
		FileName:  filename,
		FileData:  data,
	}, &resp)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", filename)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("parser service error for %s: %s", filename, resp.Error)
	}

	return resp.Pages, nil
}
