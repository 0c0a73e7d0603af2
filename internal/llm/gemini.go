package llm

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiClient Gemini对话客户端
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient 创建Gemini客户端
func NewGeminiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(append([]Option{WithBaseURL(""), WithModel(ModelGemini)}, opts...)...)
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, WrapError(err, ErrCodeInvalidRequest)
	}
	return &GeminiClient{client: client, config: cfg}, nil
}

// Generate 根据提示词生成回答
func (c *GeminiClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	return generateAsChat(ctx, c, prompt, options)
}

// Chat 进行多轮对话
func (c *GeminiClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	system, turns := splitSystem(messages)
	if len(turns) == 0 {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}
	maxTokens, temperature := resolveChatOptions(c.config, options)

	contents := make([]*genai.Content, len(turns))
	for i, m := range turns {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents[i] = &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		}
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: int32(maxTokens),
	}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var resp *genai.GenerateContentResponse
	err := doWithRetry(ctx, c.config.MaxRetries, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.client.Models.GenerateContent(ctx, c.config.Model, contents, genCfg)
		return callErr
	})
	if err != nil {
		return nil, WrapError(err, ErrCodeServerError)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, NewLLMError(ErrCodeEmptyOutput, ErrMsgEmptyOutput)
	}

	result := &Response{
		Text:       text,
		ModelName:  c.config.Model,
		FinishTime: time.Now(),
	}
	if resp.UsageMetadata != nil {
		result.TokenCount = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

// Name 返回模型名称
func (c *GeminiClient) Name() string {
	return c.config.Model
}

func init() {
	RegisterClient(ProviderGemini, NewGeminiClient)
}
