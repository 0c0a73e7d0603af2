package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig 写出使用内存索引和模拟向量化服务的配置文件
func writeConfig(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		vectors := make([][]float32, len(req.Texts))
		for i, text := range req.Texts {
			vec := make([]float32, 16)
			for _, word := range strings.Fields(strings.ToLower(text)) {
				h := fnv.New32a()
				_, _ = h.Write([]byte(word))
				vec[h.Sum32()%16]++
			}
			vectors[i] = vec
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": vectors})
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	content := fmt.Sprintf(`log:
  level: error
storage:
  type: local
  path: %s
database:
  type: sqlite
  dsn: %s
index:
  backend: memory
  collection: ragctl_test
embed:
  provider: remote
  base_url: %s
llm:
  provider: groq
  api_key: test
rerank:
  type: lexical
`, filepath.Join(dir, "uploads"), filepath.Join(dir, "registry.db"), server.URL)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestIndexEmptyDirectory(t *testing.T) {
	cfgPath := writeConfig(t)
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "notes.csv"), []byte("a,b"), 0o644))

	_, err := execute(t, "index", docs, "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, exitNoInput, exitCode(err))
	assert.Contains(t, err.Error(), "no supported files")
}

func TestIndexDirectory(t *testing.T) {
	cfgPath := writeConfig(t)
	docs := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(docs, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "economy.txt"),
		[]byte("GDP growth reached 3.1 percent in 2023."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "nested", "weather.md"),
		[]byte("# Weather\n\nHeavy rain is expected along the coast."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "ignored.csv"), []byte("x"), 0o644))

	out, err := execute(t, "index", docs, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 file(s)")
	assert.Contains(t, out, "[ok]      economy.txt")
	assert.Contains(t, out, "[ok]      weather.md")
	assert.Contains(t, out, "Indexed 2, skipped 0, failed 0")
	assert.Contains(t, out, `Collection "ragctl_test" now holds`)
}

func TestIndexNoChunks(t *testing.T) {
	cfgPath := writeConfig(t)
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "blank.txt"), []byte("   \n\n "), 0o644))

	out, err := execute(t, "index", docs, "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, exitNoInput, exitCode(err))
	assert.Contains(t, out, "[failed]  blank.txt")
}

func TestAskWithoutIndex(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := execute(t, "ask", "What was GDP growth?", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, exitNoInput, exitCode(err))
	assert.Contains(t, err.Error(), "ragctl_test")
}

func TestStatsWithoutIndex(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "stats", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Collection: ragctl_test")
	assert.Contains(t, out, "Backend:    memory")
	assert.Contains(t, out, "Index:      not built")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("plain")))
	assert.Equal(t, exitBuildError, exitCode(exitWith(exitBuildError, "index build failed: %w", errors.New("boom"))))
	wrapped := fmt.Errorf("outer: %w", exitWith(exitNoInput, "nothing"))
	assert.Equal(t, exitNoInput, exitCode(wrapped))
}

func TestIndexRebuildReindexesKnownFiles(t *testing.T) {
	cfgPath := writeConfig(t)
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "economy.txt"),
		[]byte("GDP growth reached 3.1 percent in 2023."), 0o644))
	t.Cleanup(func() { indexRebuild = false })

	_, err := execute(t, "index", docs, "--config", cfgPath)
	require.NoError(t, err)

	out, err := execute(t, "index", docs, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "All files are already indexed")

	out, err = execute(t, "index", docs, "--rebuild", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[ok]      economy.txt")
	assert.Contains(t, out, "Indexed 1, skipped 0, failed 0")
}
