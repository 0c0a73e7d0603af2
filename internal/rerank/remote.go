package rerank

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/provider"
)

// RemoteReranker 调用交叉编码重排服务
type RemoteReranker struct {
	client *provider.RerankClient
}

// NewRemoteReranker 创建远程重排器
func NewRemoteReranker(client *provider.RerankClient) *RemoteReranker {
	return &RemoteReranker{client: client}
}

// Name 返回重排模型名称
func (r *RemoteReranker) Name() string {
	return r.client.Model()
}

// Rerank 调用重排服务打分，服务未返回的候选被丢弃
func (r *RemoteReranker) Rerank(ctx context.Context, query string, candidates []document.Chunk, topN int) ([]document.Evidence, error) {
	if len(candidates) == 0 {
		return []document.Evidence{}, nil
	}

	passages := make([]provider.Passage, len(candidates))
	for i, c := range candidates {
		passages[i] = provider.Passage{ID: strconv.Itoa(i), Text: c.Content}
	}

	results, err := r.client.Rerank(ctx, query, passages, topN)
	if err != nil {
		return nil, err
	}

	scores := make([]scored, 0, len(results))
	seen := make(map[int]bool, len(results))
	for _, res := range results {
		idx, err := strconv.Atoi(res.ID)
		if err != nil || idx < 0 || idx >= len(candidates) {
			return nil, fmt.Errorf("rerank service returned unknown passage id %q", res.ID)
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		scores = append(scores, scored{index: idx, score: res.Score})
	}
	return toEvidence(candidates, scores, topN), nil
}

func init() {
	Register(TypeRemote, func(cfg Config) (Reranker, error) {
		client, err := provider.NewClient(provider.DefaultConfig().
			WithBaseURL(cfg.BaseURL).
			WithAPIKey(cfg.APIKey), nil)
		if err != nil {
			return nil, err
		}
		return NewRemoteReranker(provider.NewRerankClient(client, cfg.Model)), nil
	})
}
