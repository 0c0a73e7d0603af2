package embedding

import (
	"context"

	"github.com/fyerfyer/multimodal-rag/internal/provider"
)

// RemoteClient 调用自建向量化服务的客户端
type RemoteClient struct {
	client *provider.EmbeddingClient
	config *Config
}

// NewRemoteClient 创建自建服务嵌入客户端
func NewRemoteClient(opts ...Option) (Client, error) {
	cfg := NewConfig(ProviderRemote, opts...)
	if cfg.BaseURL == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, "remote embedding service requires a base url")
	}

	httpClient, err := provider.NewClient(&provider.ServiceConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	}, nil)
	if err != nil {
		return nil, WrapError(err, ErrCodeInvalidRequest)
	}

	return NewRemoteClientWithProvider(provider.NewEmbeddingClient(httpClient), cfg), nil
}

// NewRemoteClientWithProvider 使用已有的服务客户端创建嵌入客户端
func NewRemoteClientWithProvider(client *provider.EmbeddingClient, cfg *Config) Client {
	if cfg == nil {
		cfg = NewConfig(ProviderRemote)
	}
	return &RemoteClient{client: client, config: cfg}
}

// Embed 生成单条文本的向量
func (c *RemoteClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成向量
func (c *RemoteClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := c.client.EmbedBatch(ctx, texts, c.config.Model, c.config.Dimensions)
	if err != nil {
		return nil, WrapError(err, ErrCodeNetworkError)
	}
	return vectors, nil
}

// Name 返回模型名称
func (c *RemoteClient) Name() string {
	return c.config.Model
}

func init() {
	RegisterClient(ProviderRemote, NewRemoteClient)
}
