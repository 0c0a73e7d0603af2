package llm

import "time"

// MessageRole 消息角色类型
type MessageRole string

const (
	// RoleSystem 系统角色
	RoleSystem MessageRole = "system"
	// RoleUser 用户角色
	RoleUser MessageRole = "user"
	// RoleAssistant 助手角色
	RoleAssistant MessageRole = "assistant"
)

// Message 对话消息结构
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Response 统一的响应结构
type Response struct {
	Text       string    // 生成的文本
	TokenCount int       // 使用的token数
	ModelName  string    // 使用的模型名称
	FinishTime time.Time // 完成时间
}

// GroqBaseURL Groq的OpenAI兼容接口地址
const GroqBaseURL = "https://api.groq.com/openai/v1"

// 常用模型名称
const (
	ModelGroqRewrite = "llama-3.1-8b-instant"    // 查询改写，速度优先
	ModelGroqAnswer  = "llama-3.3-70b-versatile" // 回答生成
	ModelGemini      = "gemini-2.0-flash"
	ModelClaude      = "claude-3-5-haiku-latest"
)
