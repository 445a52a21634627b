package generator

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM implements LLMClient using the official openai-go SDK (chat completions).
// Any OpenAI-compatible endpoint works, including Gemini and DeepSeek gateways.
type OpenAILLM struct {
	Model   string
	BaseURL string
	Key     func() (string, error)
	Opts    []option.RequestOption
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	model := cfg.Model
	baseURL := cfg.BaseURL
	if cfg.Provider == "gemini" {
		if model == "" {
			model = defaultGeminiModel
		}
		if baseURL == "" {
			baseURL = defaultGeminiBaseURL
		}
	}
	if model == "" {
		return nil, errors.New("llm model is required")
	}
	key := cfg.APIKey
	if key == nil {
		key = func() (string, error) { return "", nil }
	}
	return &OpenAILLM{Model: model, BaseURL: baseURL, Key: key}, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	apiKey, err := o.Key()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", errors.New("openai: api key missing; set llm.api_key or the secrets file")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	opts = append(opts, o.Opts...)
	// 不做 SDK 内部重试：单次调用，失败即返回。
	opts = append(opts, option.WithMaxRetries(0))
	client := openai.NewClient(opts...)

	var msgs []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	msgs = append(msgs, openai.UserMessage(prompt.User))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: msgs,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
