package provider

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// EmbeddingRequest 向量化请求
type EmbeddingRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model,omitempty"`
	Dimension int      `json:"dimension,omitempty"`
	Normalize bool     `json:"normalize"`
}

// EmbeddingResponse 向量化响应
type EmbeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Model      string      `json:"model"`
	Dimension  int         `json:"dimension"`
}

// EmbeddingClient 自建向量化服务客户端
type EmbeddingClient struct {
	client Client
}

// NewEmbeddingClient 创建向量化服务客户端
func NewEmbeddingClient(client Client) *EmbeddingClient {
	return &EmbeddingClient{client: client}
}

// EmbedBatch 批量向量化
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string, model string, dimension int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var resp EmbeddingResponse
	err := c.client.Post(ctx, "/embed", EmbeddingRequest{
		Texts:     texts,
		Model:     model,
		Dimension: dimension,
		Normalize: true,
	}, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "embedding request failed")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}
