package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockClient 实现了Client接口的模拟客户端
type MockClient struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
	failOn  string
}

func NewMockClient() *MockClient {
	return &MockClient{
		vectors: map[string][]float32{
			"hello": {0.1, 0.2, 0.3},
			"world": {0.4, 0.5, 0.6},
		},
	}
}

func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	results := make([][]float32, len(texts))
	for i, text := range texts {
		if m.failOn != "" && text == m.failOn {
			return nil, errors.New("mock failure")
		}
		if vec, ok := m.vectors[text]; ok {
			results[i] = vec
			continue
		}
		results[i] = []float32{float32(len(text)), 0, 0}
	}
	return results, nil
}

func (m *MockClient) Name() string {
	return "mock"
}

func TestClientRegistry(t *testing.T) {
	RegisterClient("mock", func(opts ...Option) (Client, error) {
		return NewMockClient(), nil
	})

	client, err := NewClient("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock", client.Name())

	_, err = NewClient("missing")
	require.Error(t, err)
	var embErr EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, ErrCodeInvalidRequest, embErr.Code)
	assert.Contains(t, embErr.Message, "gemini, mock, openai, remote")

	assert.Subset(t, Providers(), []string{ProviderGemini, ProviderOpenAI, ProviderRemote, "mock"})

	// 未指定提供商时使用gemini
	_, err = NewClient("")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestProvidersRequireCredentials(t *testing.T) {
	_, err := NewClient(ProviderGemini)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewClient(ProviderOpenAI)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewClient(ProviderRemote)
	assert.Error(t, err)
}

func TestConfigOptions(t *testing.T) {
	cfg := NewConfig(ProviderGemini,
		WithAPIKey("key"),
		WithModel("custom"),
		WithTimeout(5*time.Second),
		WithDimensions(256),
		WithBatchSize(8),
		WithModel(""),
	)

	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "custom", cfg.Model)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 256, cfg.Dimensions)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxRetries)

	// 零值不覆盖默认值，重试次数允许为0
	cfg = NewConfig(ProviderOpenAI, WithTimeout(0), WithBatchSize(0), WithMaxRetries(0))
	assert.Equal(t, "text-embedding-3-small", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Zero(t, cfg.MaxRetries)

	assert.Equal(t, "text-embedding-004", DefaultModel(ProviderGemini))
	assert.Empty(t, DefaultModel("tongyi"))
}

func TestWrapError(t *testing.T) {
	err := WrapError(context.DeadlineExceeded, ErrCodeServerError)
	assert.Equal(t, ErrCodeTimeout, err.Code)

	err = WrapError(ErrEmptyText, ErrCodeServerError)
	assert.Equal(t, ErrCodeEmptyInput, err.Code)
}

func TestBatchProcessor(t *testing.T) {
	mock := NewMockClient()
	processor := NewBatchProcessor(mock, 2, 3)

	texts := []string{"hello", "", "world", "abcd", "xy"}
	vectors, err := processor.Process(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
	assert.Nil(t, vectors[1])
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, vectors[2])
	assert.Equal(t, []float32{4, 0, 0}, vectors[3])
	assert.Equal(t, []float32{2, 0, 0}, vectors[4])
	assert.Equal(t, 2, mock.calls)
}

func TestBatchProcessorError(t *testing.T) {
	mock := NewMockClient()
	mock.failOn = "world"
	processor := NewBatchProcessor(mock, 1, 2)

	_, err := processor.Process(context.Background(), []string{"hello", "world"})
	assert.Error(t, err)
}

func TestBatchProcessorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := NewBatchProcessor(NewMockClient(), 1, 1)
	_, err := processor.Process(ctx, []string{"hello"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatchProcessorEmpty(t *testing.T) {
	processor := NewBatchProcessor(NewMockClient(), 0, 0)

	vectors, err := processor.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)

	vectors, err = processor.Process(context.Background(), []string{"", ""})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{nil, nil}, vectors)
}

func TestRemoteClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)

		var req struct {
			Texts []string `json:"texts"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-004", req.Model)

		embeddings := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			embeddings[i] = []float32{float32(i), 1}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": embeddings})
	}))
	defer server.Close()

	client, err := NewClient(ProviderRemote, WithBaseURL(server.URL), WithMaxRetries(0))
	require.NoError(t, err)

	vec, err := client.Embed(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vec)

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)

	_, err = client.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}
