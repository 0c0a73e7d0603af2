package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/llm"
	"github.com/fyerfyer/multimodal-rag/internal/models"
	"github.com/fyerfyer/multimodal-rag/internal/rerank"
	"github.com/fyerfyer/multimodal-rag/internal/textnorm"
	"github.com/fyerfyer/multimodal-rag/internal/vectordb"
)

// DefaultRerankTopN 重排序后保留的结果数
const DefaultRerankTopN = 3

// Searcher 向量检索接口，vectordb.Handle实现了该接口
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]document.Chunk, error)
}

// RetrievalPipeline 检索管道
// 改写后的查询用于召回，原始问题用于重排序
type RetrievalPipeline struct {
	rewriter      *llm.QueryRewriter
	reranker      rerank.Reranker
	k             int
	topN          int
	minScore      float32
	rerankTimeout time.Duration
	logger        *logrus.Logger
}

// RetrievalOption 检索管道配置选项
type RetrievalOption func(*RetrievalPipeline)

// WithSearchK 设置向量召回数量
func WithSearchK(k int) RetrievalOption {
	return func(p *RetrievalPipeline) {
		if k > 0 {
			p.k = k
		}
	}
}

// WithTopN 设置重排序后保留的数量
func WithTopN(n int) RetrievalOption {
	return func(p *RetrievalPipeline) {
		if n > 0 {
			p.topN = n
		}
	}
}

// WithMinScore 设置重排序分数下限，低于下限的结果被丢弃
func WithMinScore(score float32) RetrievalOption {
	return func(p *RetrievalPipeline) {
		p.minScore = score
	}
}

// WithRerankTimeout 设置重排序超时时间
func WithRerankTimeout(timeout time.Duration) RetrievalOption {
	return func(p *RetrievalPipeline) {
		if timeout > 0 {
			p.rerankTimeout = timeout
		}
	}
}

// WithRetrievalLogger 设置日志记录器
func WithRetrievalLogger(logger *logrus.Logger) RetrievalOption {
	return func(p *RetrievalPipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewRetrievalPipeline 创建检索管道
// rewriter为nil时不改写查询，reranker为nil时使用本地BM25重排序
func NewRetrievalPipeline(rewriter *llm.QueryRewriter, reranker rerank.Reranker, opts ...RetrievalOption) *RetrievalPipeline {
	if reranker == nil {
		reranker = rerank.NewLexicalReranker()
	}
	p := &RetrievalPipeline{
		rewriter:      rewriter,
		reranker:      reranker,
		k:             vectordb.DefaultSearchK,
		topN:          DefaultRerankTopN,
		rerankTimeout: 30 * time.Second,
		logger:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Retrieve 检索与问题相关的证据，按重排序结果排列
// 没有召回结果时返回空切片而不是错误
func (p *RetrievalPipeline) Retrieve(ctx context.Context, query string, searcher Searcher) ([]document.Evidence, error) {
	searchQuery := query
	if p.rewriter != nil {
		result := p.rewriter.Rewrite(ctx, query)
		if result.Failed() {
			p.logger.WithError(result.Failure).
				WithField("query", textnorm.ShortenPreview(query, 0)).
				Warn("Query rewrite failed, using original query")
		}
		searchQuery = result.QueryOr(query)
	}

	candidates, err := searcher.Search(ctx, searchQuery, p.k)
	if err != nil {
		if _, tagged := models.StageOf(err); tagged {
			return nil, err
		}
		return nil, models.NewSearchError("", err)
	}
	candidates = dedupeChunks(candidates)
	if len(candidates) == 0 {
		return []document.Evidence{}, nil
	}

	rerankCtx, cancel := context.WithTimeout(ctx, p.rerankTimeout)
	defer cancel()
	evidence, err := p.reranker.Rerank(rerankCtx, query, candidates, p.topN)
	if err != nil {
		return nil, models.NewRerankError(err)
	}

	kept := make([]document.Evidence, 0, len(evidence))
	for _, ev := range evidence {
		if ev.Score < p.minScore {
			continue
		}
		ev.Rank = len(kept) + 1
		kept = append(kept, ev)
	}

	p.logger.WithFields(logrus.Fields{
		"rewritten":  searchQuery != query,
		"candidates": len(candidates),
		"evidence":   len(kept),
		"reranker":   p.reranker.Name(),
	}).Debug("Retrieval completed")

	return kept, nil
}

// dedupeChunks 去掉哈希重复的分块，保留第一次出现的
func dedupeChunks(chunks []document.Chunk) []document.Chunk {
	seen := make(map[string]bool, len(chunks))
	out := make([]document.Chunk, 0, len(chunks))
	for _, c := range chunks {
		hash := c.ChunkHash
		if hash == "" {
			hash = document.ContentHash(c.Content)
		}
		if seen[hash] {
			continue
		}
		seen[hash] = true
		out = append(out, c)
	}
	return out
}
