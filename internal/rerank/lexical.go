package rerank

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/fyerfyer/multimodal-rag/internal/document"
)

// BM25参数
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// LexicalReranker 本地BM25重排器，不依赖外部服务
// 得分按候选集内最高分归一化到[0, 1]
type LexicalReranker struct{}

// NewLexicalReranker 创建本地重排器
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Name 返回重排器名称
func (r *LexicalReranker) Name() string {
	return "bm25"
}

// Rerank 按BM25得分重排
func (r *LexicalReranker) Rerank(ctx context.Context, query string, candidates []document.Chunk, topN int) ([]document.Evidence, error) {
	if len(candidates) == 0 {
		return []document.Evidence{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := make([][]string, len(candidates))
	df := make(map[string]int)
	var totalLen int
	for i, c := range candidates {
		docs[i] = tokenize(c.Content)
		totalLen += len(docs[i])
		seen := make(map[string]bool)
		for _, tok := range docs[i] {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}
	avgLen := float64(totalLen) / float64(len(docs))
	if avgLen == 0 {
		avgLen = 1
	}

	queryTerms := unique(tokenize(query))
	n := float64(len(docs))

	scores := make([]scored, len(docs))
	var maxScore float64
	for i, tokens := range docs {
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}

		var s float64
		for _, term := range queryTerms {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			s += idf * f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*float64(len(tokens))/avgLen))
		}
		if s > maxScore {
			maxScore = s
		}
		scores[i] = scored{index: i, score: float32(s)}
	}

	if maxScore > 0 {
		for i := range scores {
			scores[i].score = float32(float64(scores[i].score) / maxScore)
		}
	}
	return toEvidence(candidates, scores, topN), nil
}

// tokenize 小写化并按非字母数字切分，CJK字符逐字成词
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func unique(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func init() {
	Register(TypeLexical, func(cfg Config) (Reranker, error) {
		return NewLexicalReranker(), nil
	})
}
