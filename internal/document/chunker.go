package document

import "strings"

// ChunkConfig 分块配置
type ChunkConfig struct {
	Size    int  // 分块大小
	Overlap int  // 重叠大小
	Dedupe  bool // 是否在一次分块调用内去除重复内容
}

// DefaultChunkConfig 默认分块配置
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Size: 1000, Overlap: 200, Dedupe: true}
}

// Chunker 文档分块器
// 先按标题结构切分，再按长度递归切分，最后合并元数据并去重
type Chunker struct {
	config   ChunkConfig
	headers  *HeaderSplitter
	splitter *RecursiveSplitter
}

// NewChunker 创建分块器，参数不合法时返回错误
func NewChunker(config ChunkConfig) (*Chunker, error) {
	splitter, err := NewRecursiveSplitter(SplitterConfig{
		ChunkSize:    config.Size,
		ChunkOverlap: config.Overlap,
		Separators:   DefaultSeparators,
	})
	if err != nil {
		return nil, err
	}
	return &Chunker{
		config:   config,
		headers:  NewHeaderSplitter(),
		splitter: splitter,
	}, nil
}

// Config 返回分块配置
func (c *Chunker) Config() ChunkConfig {
	return c.config
}

// Chunk 把文档切分成分块，输出顺序与输入文档和片段顺序一致
// 去重只在本次调用内生效，不会与已有索引比较
func (c *Chunker) Chunk(docs []Document) []Chunk {
	var (
		chunks []Chunk
		seen   = make(map[string]struct{})
	)

	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}

		index := 0
		for _, section := range c.headers.Split(doc.Content) {
			meta := doc.Metadata.Merge(Metadata{Extra: section.Headers})

			for _, piece := range c.splitter.Split(section.Content) {
				hash := ContentHash(piece)
				if c.config.Dedupe {
					if _, dup := seen[hash]; dup {
						continue
					}
					seen[hash] = struct{}{}
				}

				chunks = append(chunks, Chunk{
					Document: Document{
						Content:  piece,
						Metadata: meta.Clone(),
					},
					ChunkIndex: index,
					ChunkHash:  hash,
				})
				index++
			}
		}
	}

	return chunks
}
