package services

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/llm"
	"github.com/fyerfyer/multimodal-rag/internal/vectordb"
)

const testDim = 64

// MockLLM 大模型客户端mock
type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Generate(ctx context.Context, prompt string, options ...llm.GenerateOption) (*llm.Response, error) {
	args := m.Called(ctx, prompt)
	if resp := args.Get(0); resp != nil {
		return resp.(*llm.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLLM) Chat(ctx context.Context, messages []llm.Message, options ...llm.ChatOption) (*llm.Response, error) {
	args := m.Called(ctx, messages)
	if resp := args.Get(0); resp != nil {
		return resp.(*llm.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLLM) Name() string { return "mock" }

// isRewrite 匹配查询改写请求
func isRewrite(messages []llm.Message) bool {
	return len(messages) > 0 && messages[0].Content == llm.DefaultRewritePrompt
}

// isAnswer 匹配答案生成请求
func isAnswer(messages []llm.Message) bool {
	return len(messages) > 0 && !isRewrite(messages)
}

// hashEmbedder 词袋哈希向量
type hashEmbedder struct {
	mu    sync.Mutex
	fail  error
	calls int
}

func (e *hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	fail := e.fail
	e.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	vec := make([]float32, testDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(word, ".,?!%")))
		vec[h.Sum32()%testDim]++
	}
	return vec, nil
}

func (e *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *hashEmbedder) Name() string { return "hash" }

func (e *hashEmbedder) setFail(err error) {
	e.mu.Lock()
	e.fail = err
	e.mu.Unlock()
}

// stubSearcher 记录检索请求并返回固定结果
type stubSearcher struct {
	results []document.Chunk
	err     error
	query   string
	k       int
}

func (s *stubSearcher) Search(ctx context.Context, query string, k int) ([]document.Chunk, error) {
	s.query = query
	s.k = k
	return s.results, s.err
}

// stubReranker 按给定分数重排
type stubReranker struct {
	scores []float32
	err    error
	query  string
	calls  int
}

func (r *stubReranker) Name() string { return "stub" }

func (r *stubReranker) Rerank(ctx context.Context, query string, candidates []document.Chunk, topN int) ([]document.Evidence, error) {
	r.calls++
	r.query = query
	if r.err != nil {
		return nil, r.err
	}
	evidence := make([]document.Evidence, 0, len(candidates))
	for i, c := range candidates {
		var score float32
		if i < len(r.scores) {
			score = r.scores[i]
		}
		evidence = append(evidence, document.Evidence{Chunk: c, Rank: i + 1, Score: score})
	}
	if topN > 0 && len(evidence) > topN {
		evidence = evidence[:topN]
	}
	return evidence, nil
}

func newChunk(source string, page int, content string) document.Chunk {
	return document.Chunk{
		Document: document.Document{
			Content:  content,
			Metadata: document.Metadata{Source: source, Page: page},
		},
		ChunkHash: document.ContentHash(content),
	}
}

func newMemoryGateway(t *testing.T, embedder *hashEmbedder) *vectordb.Gateway {
	t.Helper()
	cfg := vectordb.DefaultGatewayConfig()
	cfg.Backend = "memory"
	cfg.Collection = "test_rag"
	g, err := vectordb.NewGateway(cfg, embedder)
	require.NoError(t, err)
	return g
}
