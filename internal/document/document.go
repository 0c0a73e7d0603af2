package document

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// 扩展元数据中使用的键
const (
	MetaHeader1          = "Header 1"
	MetaHeader2          = "Header 2"
	MetaHeader3          = "Header 3"
	MetaOriginalFilename = "original_filename"
	MetaContentType      = "content_type"
)

// headerKeys 结构化分割识别的标题层级，对应1~3级标题
var headerKeys = []string{MetaHeader1, MetaHeader2, MetaHeader3}

// Metadata 文档元数据
// Source和Page是固定字段，其余信息放在Extra扩展表中
type Metadata struct {
	Source string            `json:"source"`          // 来源标识，通常是清洗后的文件名
	Page   int               `json:"page"`            // 页码，从1开始
	Extra  map[string]string `json:"extra,omitempty"` // 扩展字段，例如标题路径
}

// Get 读取扩展字段
func (m Metadata) Get(key string) string {
	if m.Extra == nil {
		return ""
	}
	return m.Extra[key]
}

// Clone 深拷贝元数据
func (m Metadata) Clone() Metadata {
	c := Metadata{Source: m.Source, Page: m.Page}
	if len(m.Extra) > 0 {
		c.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// Merge 用overlay覆盖当前元数据，返回新的元数据
// overlay中非零的固定字段和所有扩展键都会覆盖原值，原有的键不会丢失
func (m Metadata) Merge(overlay Metadata) Metadata {
	out := m.Clone()
	if overlay.Source != "" {
		out.Source = overlay.Source
	}
	if overlay.Page != 0 {
		out.Page = overlay.Page
	}
	if len(overlay.Extra) > 0 && out.Extra == nil {
		out.Extra = make(map[string]string, len(overlay.Extra))
	}
	for k, v := range overlay.Extra {
		out.Extra[k] = v
	}
	return out
}

// SectionPath 返回"H1 > H2"形式的章节路径，缺失的层级会被跳过
func (m Metadata) SectionPath() string {
	parts := make([]string, 0, 2)
	for _, key := range []string{MetaHeader1, MetaHeader2} {
		if v := m.Get(key); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " > ")
}

// Document 解析得到的一段文本，通常对应一页
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Chunk 可索引的文本分块
type Chunk struct {
	Document
	ChunkIndex int    `json:"chunk_index"` // 在所属文档中的序号，从0开始
	ChunkHash  string `json:"chunk_hash"`  // 内容哈希
}

// Evidence 检索得到的证据，只在一次查询内有效
type Evidence struct {
	Chunk
	Rank  int     `json:"rank"`  // 重排后的名次，从1开始
	Score float32 `json:"score"` // 相关性分数
}

// SourceRef 答案引用的来源
type SourceRef struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Preview string `json:"preview"`
}

// QueryResult 问答结果
type QueryResult struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

// PreviewLength 来源预览保留的字符数
const PreviewLength = 150

// ContentHash 计算内容哈希，取SHA-1十六进制的前12位
func ContentHash(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])[:12]
}

// SourcePreview 截取内容前150个字符并把换行替换为空格
func SourcePreview(content string) string {
	r := []rune(content)
	if len(r) > PreviewLength {
		r = r[:PreviewLength]
	}
	return strings.ReplaceAll(string(r), "\n", " ")
}

// BuildSources 按(来源, 页码)去重生成引用列表，保留证据顺序中第一次出现的条目
func BuildSources(evidence []Evidence) []SourceRef {
	type key struct {
		source string
		page   int
	}
	seen := make(map[key]struct{}, len(evidence))
	sources := make([]SourceRef, 0, len(evidence))
	for _, ev := range evidence {
		k := key{ev.Metadata.Source, ev.Metadata.Page}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sources = append(sources, SourceRef{
			Source:  ev.Metadata.Source,
			Page:    ev.Metadata.Page,
			Preview: SourcePreview(ev.Content),
		})
	}
	return sources
}
