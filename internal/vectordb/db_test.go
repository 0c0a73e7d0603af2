package vectordb

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/models"
)

const testDim = 64

// hashEmbedder 词袋哈希向量，相同词汇的文本向量相近
type hashEmbedder struct {
	fail error
}

func (e *hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	vec := make([]float32, testDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(word, ".,?!")))
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

func testChunk(source string, page int, content string) document.Chunk {
	return document.Chunk{
		Document: document.Document{
			Content:  content,
			Metadata: document.Metadata{Source: source, Page: page},
		},
		ChunkHash: document.ContentHash(content),
	}
}

func sampleChunks() []document.Chunk {
	return []document.Chunk{
		testChunk("economy.pdf", 1, "GDP growth reached 3.1 percent in 2023"),
		testChunk("economy.pdf", 2, "Inflation eased to 2.4 percent by December"),
		testChunk("weather.txt", 1, "Heavy rain is expected across the northern coast"),
	}
}

func newMemoryGateway(t *testing.T, embedder *hashEmbedder) *Gateway {
	t.Helper()
	cfg := DefaultGatewayConfig()
	cfg.Backend = "memory"
	cfg.Collection = "test"
	g, err := NewGateway(cfg, embedder)
	require.NoError(t, err)
	return g
}

func TestGatewayOpenWithoutIndex(t *testing.T) {
	g := newMemoryGateway(t, &hashEmbedder{})

	handle, err := g.Open(context.Background())
	require.NoError(t, err)
	assert.Nil(t, handle)

	stats, err := g.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, stats.Exists)
}

func TestGatewayBuildAndSearch(t *testing.T) {
	g := newMemoryGateway(t, &hashEmbedder{})
	ctx := context.Background()

	handle, err := g.Build(ctx, sampleChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, handle.Count())

	results, err := handle.Search(ctx, "GDP growth 2023", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "economy.pdf", results[0].Metadata.Source)
	assert.Equal(t, 1, results[0].Metadata.Page)

	// k大于集合大小时返回全部
	results, err = handle.Search(ctx, "percent", 5)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// k<=0使用默认值5
	results, err = handle.Search(ctx, "heavy rain northern coast", 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "weather.txt", results[0].Metadata.Source)

	opened, err := g.Open(ctx)
	require.NoError(t, err)
	require.NotNil(t, opened)
	assert.Equal(t, 3, opened.Count())
}

func TestGatewayBuildExtends(t *testing.T) {
	g := newMemoryGateway(t, &hashEmbedder{})
	ctx := context.Background()

	_, err := g.Build(ctx, sampleChunks()[:2])
	require.NoError(t, err)
	handle, err := g.Build(ctx, sampleChunks()[2:])
	require.NoError(t, err)
	assert.Equal(t, 3, handle.Count())

	handle, err = g.Rebuild(ctx, sampleChunks()[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, handle.Count())
}

func TestGatewayBuildErrors(t *testing.T) {
	g := newMemoryGateway(t, &hashEmbedder{})

	_, err := g.Build(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, models.IsStage(err, models.StageIndex))
	assert.ErrorIs(t, err, models.ErrEmptyChunks)

	failing := newMemoryGateway(t, &hashEmbedder{fail: errors.New("quota exceeded")})
	_, err = failing.Build(context.Background(), sampleChunks())
	require.Error(t, err)
	assert.True(t, models.IsStage(err, models.StageIndex))
}

func TestGatewayConcurrentSearch(t *testing.T) {
	g := newMemoryGateway(t, &hashEmbedder{})
	handle, err := g.Build(context.Background(), sampleChunks())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := handle.Search(context.Background(), "inflation percent", 2)
			assert.NoError(t, err)
			assert.Len(t, results, 2)
		}()
	}
	wg.Wait()
}

func TestMemoryRepository(t *testing.T) {
	repo, err := NewRepository(Config{Type: "memory", Dimension: 3, DistanceType: Cosine})
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.AddBatch([]Record{
		{ID: "a", Chunk: testChunk("a", 1, "a"), Vector: []float32{1, 0, 0}},
		{ID: "b", Chunk: testChunk("b", 1, "b"), Vector: []float32{0, 1, 0}},
		{ID: "c", Chunk: testChunk("c", 1, "c"), Vector: []float32{0.9, 0.1, 0}},
	}))
	assert.Equal(t, 3, repo.Count())

	hits, err := repo.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Record.ID)
	assert.Equal(t, "c", hits[1].Record.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)

	err = repo.AddBatch([]Record{{ID: "bad", Vector: []float32{1, 2}}})
	assert.ErrorIs(t, err, ErrInvalidDimension)

	require.NoError(t, repo.Reset())
	assert.Equal(t, 0, repo.Count())

	_, err = NewRepository(Config{Type: "memory"})
	assert.ErrorIs(t, err, ErrMissingDimension)
}

func TestMemoryParallelSearch(t *testing.T) {
	repo, err := NewMemoryRepository(Config{Dimension: 2, DistanceType: Euclidean})
	require.NoError(t, err)

	records := make([]Record, parallelThreshold+10)
	for i := range records {
		records[i] = Record{ID: fmt.Sprintf("r%d", i), Vector: []float32{float32(i), 0}}
	}
	require.NoError(t, repo.AddBatch(records))

	hits, err := repo.Search([]float32{42, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "r42", hits[0].Record.ID)
}

func TestSimilarity(t *testing.T) {
	s, err := Similarity([]float32{1, 0}, []float32{1, 0}, Cosine)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-6)

	s, err = Similarity([]float32{1, 2}, []float32{3, 4}, DotProduct)
	require.NoError(t, err)
	assert.Equal(t, float32(11), s)

	s, err = Similarity([]float32{0, 0}, []float32{0, 0}, Euclidean)
	require.NoError(t, err)
	assert.Equal(t, float32(1), s)

	_, err = Similarity([]float32{1}, []float32{1, 2}, Cosine)
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestGatewayRebuildEmbeddingFailureKeepsCollection(t *testing.T) {
	embedder := &hashEmbedder{}
	g := newMemoryGateway(t, embedder)
	ctx := context.Background()

	_, err := g.Build(ctx, sampleChunks())
	require.NoError(t, err)

	embedder.fail = errors.New("quota exceeded")
	_, err = g.Rebuild(ctx, sampleChunks()[:1])
	require.Error(t, err)
	assert.True(t, models.IsStage(err, models.StageIndex))

	embedder.fail = nil
	handle, err := g.Open(ctx)
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, 3, handle.Count())

	_, err = g.Rebuild(ctx, nil)
	assert.ErrorIs(t, err, models.ErrEmptyChunks)
	assert.Equal(t, 3, handle.Count())
}

func TestFaissRepositoryClosed(t *testing.T) {
	var repo FaissRepository
	repo.dimension = 2

	_, err := repo.Search([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, repo.AddBatch([]Record{{ID: "a", Vector: []float32{1, 0}}}), ErrClosed)
	assert.ErrorIs(t, repo.Reset(), ErrClosed)
	assert.ErrorIs(t, repo.Save(), ErrClosed)
	assert.NoError(t, repo.Close())
}

func TestFaissGatewayPersistence(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultGatewayConfig()
	cfg.Dir = dir
	cfg.Collection = "persisted"

	g, err := NewGateway(cfg, &hashEmbedder{})
	require.NoError(t, err)

	handle, err := g.Open(context.Background())
	require.NoError(t, err)
	assert.Nil(t, handle)

	if _, err := g.Build(context.Background(), sampleChunks()); err != nil {
		t.Skip("FAISS may not be installed correctly, skipping test: " + err.Error())
	}
	require.NoError(t, g.Close())
	assert.FileExists(t, dir+"/persisted.index")
	assert.FileExists(t, dir+"/persisted.meta.json")

	// 新的网关从磁盘加载同一集合
	reopened, err := NewGateway(cfg, &hashEmbedder{})
	require.NoError(t, err)
	defer reopened.Close()

	handle, err = reopened.Open(context.Background())
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, 3, handle.Count())

	results, err := handle.Search(context.Background(), "heavy rain coast", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "weather.txt", results[0].Metadata.Source)
	assert.Equal(t, "Heavy rain is expected across the northern coast", results[0].Content)

	stats, err := reopened.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testDim, stats.Dimension)

	_, err = reopened.Rebuild(context.Background(), sampleChunks()[:1])
	require.NoError(t, err)
	handle, err = reopened.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handle.Count())

	// 关闭后旧句柄返回错误而不是访问已释放的索引
	require.NoError(t, reopened.Close())
	_, err = handle.Search(context.Background(), "heavy rain", 1)
	assert.ErrorIs(t, err, ErrClosed)
}
