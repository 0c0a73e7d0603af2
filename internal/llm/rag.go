package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/models"
)

// NoEvidenceAnswer 没有检索到证据时的固定回答
const NoEvidenceAnswer = "I couldn't find relevant information."

// DefaultAnswerTemplate 回答生成的系统指令模板
// {{.Context}} - 检索到的证据块
const DefaultAnswerTemplate = `You are an expert analyst. Answer the question based strictly on the provided context.

CRITICAL CITATION RULE:
- Every factual statement must be backed by a citation from the context.
- Use the format [Page X] at the end of the sentence.
- If the answer is not in the context, state that you do not know.

Context:
{{.Context}}`

// FormatContext 把证据格式化为带来源标注的上下文
func FormatContext(evidence []document.Evidence) string {
	blocks := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		meta := ev.Metadata
		blocks = append(blocks, fmt.Sprintf("--- SOURCE: %s | Page: %d | Section: %s ---\n%s",
			meta.Source, meta.Page, meta.SectionPath(), ev.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// SynthesizerConfig 回答生成配置
type SynthesizerConfig struct {
	Template    string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// DefaultSynthesizerConfig 默认回答生成配置
func DefaultSynthesizerConfig() *SynthesizerConfig {
	return &SynthesizerConfig{
		Template:    DefaultAnswerTemplate,
		MaxTokens:   1024,
		Temperature: 0,
		Timeout:     60 * time.Second,
	}
}

// SynthesizerOption 回答生成配置选项
type SynthesizerOption func(*SynthesizerConfig)

// WithTemplate 设置系统指令模板
func WithTemplate(template string) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		if template != "" {
			c.Template = template
		}
	}
}

// WithAnswerMaxTokens 设置最大Token数
func WithAnswerMaxTokens(tokens int) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		c.MaxTokens = tokens
	}
}

// WithAnswerTemperature 设置温度参数
func WithAnswerTemperature(temp float32) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		c.Temperature = temp
	}
}

// WithAnswerTimeout 设置请求超时时间
func WithAnswerTimeout(timeout time.Duration) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// Synthesizer 基于证据生成带引用的回答
type Synthesizer struct {
	client Client
	config *SynthesizerConfig
}

// NewSynthesizer 创建回答生成器
func NewSynthesizer(client Client, opts ...SynthesizerOption) *Synthesizer {
	cfg := DefaultSynthesizerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Synthesizer{client: client, config: cfg}
}

// Synthesize 根据问题和证据生成回答
// 证据为空时直接返回固定回答，不调用模型
func (s *Synthesizer) Synthesize(ctx context.Context, query string, evidence []document.Evidence) (*document.QueryResult, error) {
	if len(evidence) == 0 {
		return &document.QueryResult{Answer: NoEvidenceAnswer, Sources: []document.SourceRef{}}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	system := strings.ReplaceAll(s.config.Template, "{{.Context}}", FormatContext(evidence))
	resp, err := s.client.Chat(ctx, []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: query},
	}, WithChatMaxTokens(s.config.MaxTokens), WithChatTemperature(s.config.Temperature))
	if err != nil {
		return nil, models.NewSynthesisError(err)
	}

	return &document.QueryResult{
		Answer:  resp.Text,
		Sources: document.BuildSources(evidence),
	}, nil
}
