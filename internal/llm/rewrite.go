package llm

import (
	"context"
	"strings"
	"time"
)

// DefaultRewritePrompt 查询改写的系统指令
const DefaultRewritePrompt = "Rewrite the search query to be precise and standalone."

// RewriteResult 查询改写结果
// Failure为nil时Query是改写后的查询，否则调用方应回退到原始查询
type RewriteResult struct {
	Query   string
	Failure error
}

// Failed 改写是否失败
func (r RewriteResult) Failed() bool {
	return r.Failure != nil
}

// QueryOr 改写成功时返回改写结果，否则返回fallback
func (r RewriteResult) QueryOr(fallback string) string {
	if r.Failure != nil || r.Query == "" {
		return fallback
	}
	return r.Query
}

// QueryRewriter 检索前的查询改写器
type QueryRewriter struct {
	client  Client
	prompt  string
	timeout time.Duration
}

// RewriterOption 改写器配置选项
type RewriterOption func(*QueryRewriter)

// WithRewritePrompt 设置改写指令
func WithRewritePrompt(prompt string) RewriterOption {
	return func(r *QueryRewriter) {
		if prompt != "" {
			r.prompt = prompt
		}
	}
}

// WithRewriteTimeout 设置改写超时时间
func WithRewriteTimeout(timeout time.Duration) RewriterOption {
	return func(r *QueryRewriter) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// NewQueryRewriter 创建查询改写器
func NewQueryRewriter(client Client, opts ...RewriterOption) *QueryRewriter {
	r := &QueryRewriter{
		client:  client,
		prompt:  DefaultRewritePrompt,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite 改写查询，任何失败都放在结果的Failure中，不会中断检索
func (r *QueryRewriter) Rewrite(ctx context.Context, query string) RewriteResult {
	if r == nil || r.client == nil {
		return RewriteResult{Failure: NewLLMError(ErrCodeInvalidRequest, "rewriter is not configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.Chat(ctx, []Message{
		{Role: RoleSystem, Content: r.prompt},
		{Role: RoleUser, Content: query},
	}, WithChatTemperature(0))
	if err != nil {
		return RewriteResult{Failure: WrapError(err, ErrCodeServerError)}
	}

	rewritten := strings.TrimSpace(resp.Text)
	if rewritten == "" {
		return RewriteResult{Failure: NewLLMError(ErrCodeEmptyOutput, ErrMsgEmptyOutput)}
	}
	return RewriteResult{Query: rewritten}
}
