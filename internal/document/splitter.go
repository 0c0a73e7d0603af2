package document

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators 递归分割使用的分隔符，按优先级排列
// 段落 -> 行 -> 句子 -> 单词 -> 按字符硬切
var DefaultSeparators = []string{
	"\n\n",
	"\n",
	". ", "! ", "? ", "。", "！", "？",
	" ",
	"",
}

// Splitter 文本分段器接口
// 负责将长文本分割成适合向量化的小段
type Splitter interface {
	// Split 将文本分割成片段
	Split(text string) []string
}

// SplitterConfig 分段器配置
type SplitterConfig struct {
	ChunkSize    int      // 分块大小（按字符数）
	ChunkOverlap int      // 相邻分块的重叠字符数
	Separators   []string // 分隔符，为空时使用DefaultSeparators
}

// DefaultSplitterConfig 返回默认分段器配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Separators:   DefaultSeparators,
	}
}

// Validate 检查分段参数
func (c SplitterConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// RecursiveSplitter 递归字符分割器
// 先用优先级最高且在文本中出现的分隔符切分，过长的片段再用下一级分隔符继续切分，
// 最后把小片段合并成不超过ChunkSize的分块，相邻分块之间保留ChunkOverlap的重叠
type RecursiveSplitter struct {
	config SplitterConfig
}

// NewRecursiveSplitter 创建递归分割器
func NewRecursiveSplitter(config SplitterConfig) (*RecursiveSplitter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(config.Separators) == 0 {
		config.Separators = DefaultSeparators
	}
	return &RecursiveSplitter{config: config}, nil
}

// Split 将文本分割成片段，片段已去除首尾空白，空片段被丢弃
func (s *RecursiveSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.config.Separators)
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	separator := ""
	var next []string
	for i, sep := range separators {
		if sep == "" {
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var (
		out  []string
		good []string
	)
	for _, piece := range splitKeepSeparator(text, separator) {
		if utf8.RuneCountInString(piece) < s.config.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				out = append(out, trimmed)
			}
			continue
		}
		out = append(out, s.split(piece, next)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}
	return out
}

// merge 把小片段合并为分块
func (s *RecursiveSplitter) merge(splits []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	size, overlap := s.config.ChunkSize, s.config.ChunkOverlap

	for _, piece := range splits {
		n := utf8.RuneCountInString(piece)
		if total+n > size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			// 从头部弹出片段，直到剩余部分不超过重叠长度且能容纳下一个片段
			for total > overlap || (total+n > size && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepSeparator 按分隔符切分，分隔符保留在前一个片段末尾
// 分隔符为空时按字符切分
func splitKeepSeparator(text, separator string) []string {
	if separator == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.SplitAfter(text, separator)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
