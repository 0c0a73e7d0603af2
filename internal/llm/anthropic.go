package llm

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient Claude对话客户端
type AnthropicClient struct {
	client anthropic.Client
	config *Config
}

// NewAnthropicClient 创建Claude客户端
func NewAnthropicClient(opts ...Option) (Client, error) {
	cfg := NewConfig(append([]Option{WithBaseURL(""), WithModel(ModelClaude)}, opts...)...)
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(reqOpts...),
		config: cfg,
	}, nil
}

// Generate 根据提示词生成回答
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	return generateAsChat(ctx, c, prompt, options)
}

// Chat 进行多轮对话
func (c *AnthropicClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	system, turns := splitSystem(messages)
	if len(turns) == 0 {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}
	maxTokens, temperature := resolveChatOptions(c.config, options)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.config.Model),
		MaxTokens:   int64(maxTokens),
		Messages:    make([]anthropic.MessageParam, len(turns)),
		Temperature: anthropic.Float(float64(temperature)),
	}
	for i, m := range turns {
		if m.Role == RoleAssistant {
			params.Messages[i] = anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content))
		} else {
			params.Messages[i] = anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content))
		}
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var resp *anthropic.Message
	err := doWithRetry(ctx, c.config.MaxRetries, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, WrapError(err, ErrCodeServerError)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, NewLLMError(ErrCodeEmptyOutput, ErrMsgEmptyOutput)
	}

	return &Response{
		Text:       strings.TrimSpace(text.String()),
		TokenCount: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		ModelName:  string(resp.Model),
		FinishTime: time.Now(),
	}, nil
}

// Name 返回模型名称
func (c *AnthropicClient) Name() string {
	return c.config.Model
}

func init() {
	RegisterClient(ProviderAnthropic, NewAnthropicClient)
}
