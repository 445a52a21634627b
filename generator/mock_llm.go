package generator

import (
	"bytes"
	"context"

	"github.com/yuin/goldmark"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
// Repair 原样返回；Convert 用 goldmark 渲染（公式保持 TeX 文本，不产生 MathML）。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	if prompt.Kind != Convert {
		return prompt.Source, nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(prompt.Source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
