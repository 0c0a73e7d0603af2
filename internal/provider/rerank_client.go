package provider

import (
	"context"

	"github.com/pkg/errors"
)

// DefaultRerankModel 默认交叉编码重排模型
const DefaultRerankModel = "ms-marco-MiniLM-L-12-v2"

// Passage 待重排的段落
type Passage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RerankRequest 重排请求
type RerankRequest struct {
	Query    string    `json:"query"`
	Passages []Passage `json:"passages"`
	TopN     int       `json:"top_n,omitempty"`
	Model    string    `json:"model"`
}

// RerankResult 单个段落的重排结果
type RerankResult struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// RerankResponse 重排响应，结果按分数降序
type RerankResponse struct {
	Results []RerankResult `json:"results"`
}

// RerankClient 重排服务客户端
type RerankClient struct {
	client Client
	model  string
}

// NewRerankClient 创建重排服务客户端
func NewRerankClient(client Client, model string) *RerankClient {
	if model == "" {
		model = DefaultRerankModel
	}
	return &RerankClient{client: client, model: model}
}

// Model 返回模型名称
func (c *RerankClient) Model() string {
	return c.model
}

// Rerank 对段落按与查询的相关性打分
func (c *RerankClient) Rerank(ctx context.Context, query string, passages []Passage, topN int) ([]RerankResult, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	var resp RerankResponse
	err := c.client.Post(ctx, "/rerank", RerankRequest{
		Query:    query,
		Passages: passages,
		TopN:     topN,
		Model:    c.model,
	}, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "rerank request failed")
	}
	return resp.Results, nil
}
