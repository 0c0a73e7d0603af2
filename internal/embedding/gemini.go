package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini嵌入任务类型
const (
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// GeminiClient 基于Gemini API的嵌入客户端
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient 创建Gemini嵌入客户端
func NewGeminiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(ProviderGemini, opts...)
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, WrapError(err, ErrCodeInvalidRequest)
	}

	return &GeminiClient{client: client, config: cfg}, nil
}

// Embed 生成查询向量
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := c.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 生成文档向量
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return c.embed(ctx, texts, taskRetrievalDocument)
}

func (c *GeminiClient) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	embedCfg := &genai.EmbedContentConfig{TaskType: taskType}
	if c.config.Dimensions > 0 {
		embedCfg.OutputDimensionality = genai.Ptr(int32(c.config.Dimensions))
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.config.Model, contents, embedCfg)
	if err != nil {
		return nil, WrapError(err, ErrCodeServerError)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

// Name 返回模型名称
func (c *GeminiClient) Name() string {
	return c.config.Model
}

func init() {
	RegisterClient(ProviderGemini, NewGeminiClient)
}
