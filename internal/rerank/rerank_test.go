package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/multimodal-rag/internal/document"
)

func chunk(content string) document.Chunk {
	return document.Chunk{Document: document.Document{Content: content}, ChunkHash: document.ContentHash(content)}
}

func TestLexicalRerankOrdersByRelevance(t *testing.T) {
	candidates := []document.Chunk{
		chunk("Heavy rain is expected along the coast."),
		chunk("GDP growth reached 3.1% in 2023, driven by exports."),
		chunk("Exports fell slightly while GDP stayed flat."),
	}

	reranker, err := New(Config{Type: TypeLexical})
	require.NoError(t, err)

	evidence, err := reranker.Rerank(context.Background(), "What was GDP growth in 2023?", candidates, 2)
	require.NoError(t, err)
	require.Len(t, evidence, 2)

	assert.Equal(t, candidates[1].Content, evidence[0].Content)
	assert.Equal(t, 1, evidence[0].Rank)
	assert.Equal(t, float32(1), evidence[0].Score)
	assert.Equal(t, candidates[2].Content, evidence[1].Content)
	assert.Equal(t, 2, evidence[1].Rank)
	assert.Less(t, evidence[1].Score, evidence[0].Score)
}

func TestLexicalRerankEmpty(t *testing.T) {
	evidence, err := NewLexicalReranker().Rerank(context.Background(), "q", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, evidence)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"gdp", "增", "长", "3", "1"}, tokenize("GDP增长 3.1"))
	assert.Empty(t, tokenize("  ,.; "))
}

func TestRemoteRerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)

		var req struct {
			Query    string `json:"query"`
			Passages []struct {
				ID   string `json:"id"`
				Text string `json:"text"`
			} `json:"passages"`
			Model string `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "original question", req.Query)
		assert.Equal(t, "ms-marco-MiniLM-L-12-v2", req.Model)
		assert.Len(t, req.Passages, 3)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":"2","score":0.91},{"id":"0","score":0.35},{"id":"1","score":0.02}]}`))
	}))
	defer server.Close()

	reranker, err := New(Config{Type: TypeRemote, BaseURL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "ms-marco-MiniLM-L-12-v2", reranker.Name())

	candidates := []document.Chunk{chunk("a"), chunk("b"), chunk("c")}
	evidence, err := reranker.Rerank(context.Background(), "original question", candidates, 2)
	require.NoError(t, err)
	require.Len(t, evidence, 2)
	assert.Equal(t, "c", evidence[0].Content)
	assert.Equal(t, float32(0.91), evidence[0].Score)
	assert.Equal(t, "a", evidence[1].Content)
}

func TestRemoteRerankUnknownID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":"9","score":0.5}]}`))
	}))
	defer server.Close()

	reranker, err := New(Config{Type: TypeRemote, BaseURL: server.URL})
	require.NoError(t, err)

	_, err = reranker.Rerank(context.Background(), "q", []document.Chunk{chunk("a")}, 1)
	assert.Error(t, err)
}

func TestUnknownType(t *testing.T) {
	_, err := New(Config{Type: "flashrank"})
	assert.Error(t, err)
}
