package generator

import "context"

// LLMClient 抽象大模型客户端，便于替换/Mock。
// 返回空字符串表示服务没有给出文本，不视为错误。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	BaseURL  string
	// APIKey 在每次调用时解析，缺失时本次调用失败而不是启动失败。
	APIKey func() (string, error)
}

const (
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)
