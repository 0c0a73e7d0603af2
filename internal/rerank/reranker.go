package rerank

import (
	"context"
	"fmt"
	"sort"

	"github.com/fyerfyer/multimodal-rag/internal/document"
)

// Reranker 按查询相关性对候选分块重新排序
type Reranker interface {
	// Rerank 返回最多topN条证据，按相关性降序，Rank从1开始
	Rerank(ctx context.Context, query string, candidates []document.Chunk, topN int) ([]document.Evidence, error)

	// Name 返回重排器名称
	Name() string
}

// 已注册的重排器类型
const (
	TypeRemote  = "remote"
	TypeLexical = "lexical"
)

// scored 候选分块在原列表中的位置和得分
type scored struct {
	index int
	score float32
}

// toEvidence 按得分降序截取topN并编号
func toEvidence(candidates []document.Chunk, scores []scored, topN int) []document.Evidence {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})
	if topN > 0 && len(scores) > topN {
		scores = scores[:topN]
	}

	evidence := make([]document.Evidence, len(scores))
	for i, s := range scores {
		evidence[i] = document.Evidence{
			Chunk: candidates[s.index],
			Rank:  i + 1,
			Score: s.score,
		}
	}
	return evidence
}

// Factory 重排器工厂函数
type Factory func(cfg Config) (Reranker, error)

// Config 重排器配置
type Config struct {
	Type    string // 重排器类型
	BaseURL string // 远程重排服务地址
	APIKey  string
	Model   string
}

var factories = map[string]Factory{}

// Register 注册重排器工厂函数
func Register(name string, factory Factory) {
	factories[name] = factory
}

// New 根据配置创建重排器
func New(cfg Config) (Reranker, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("reranker type not registered: %s", cfg.Type)
	}
	return factory(cfg)
}
