package generator

import (
	"fmt"
	"strings"
)

// Prompt 表示发送给 LLM 的消息集合。
// Kind/Source 只供本地实现（如 MockLLM）使用，不会发送给服务。
type Prompt struct {
	System string
	User   string
	Kind   Kind
	Source string
}

// BuildPrompt 按操作类型选择提示词模板。
func BuildPrompt(req Request) (Prompt, error) {
	switch req.Kind {
	case Repair:
		return BuildRepairPrompt(req.Source), nil
	case Convert:
		return BuildConvertPrompt(req.Source), nil
	default:
		return Prompt{}, fmt.Errorf("no prompt for %s", req.Kind)
	}
}

// BuildRepairPrompt 生成修复 Markdown/LaTeX 的提示词。
func BuildRepairPrompt(source string) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a technical document expert. Fix the following Markdown text.\n")
	sb.WriteString("1. Correct any LaTeX syntax errors (e.g., ensure commands like \\mathcal or \\nabla are used correctly).\n")
	sb.WriteString("2. Ensure LaTeX blocks use correct delimiters ($...$ for inline, $$...$$ for block).\n")
	sb.WriteString("3. Fix general Markdown syntax errors.\n")
	sb.WriteString("4. Do NOT change the meaning or the structure of the text significantly.\n")
	sb.WriteString("5. Return ONLY the fixed markdown content. Do not include any explanation or wrapping code blocks.\n")
	sb.WriteString("\nText to fix:\n")
	sb.WriteString(source)

	return Prompt{
		System: "Output Markdown only. Never add commentary.",
		User:   sb.String(),
		Kind:   Repair,
		Source: source,
	}
}

// BuildConvertPrompt 生成 Markdown -> HTML(MathML) 的提示词。
func BuildConvertPrompt(source string) Prompt {
	var sb strings.Builder
	sb.WriteString("Convert the following Markdown content into a clean HTML body suitable for Microsoft Word.\n\n")
	sb.WriteString("CRITICAL INSTRUCTIONS:\n")
	sb.WriteString("1. Convert all LaTeX equations (both inline $...$ and block $$...$$) into standard Presentation MathML (<math>...</math>).\n")
	sb.WriteString("2. Do NOT use <img> tags for math. Use <math> tags.\n")
	sb.WriteString("3. Ensure headings, lists, and bold/italic text are converted to semantic HTML tags (h1, h2, ul, li, strong, em).\n")
	sb.WriteString("4. Do NOT include <html>, <head>, or <body> tags. Just return the inner body content.\n")
	sb.WriteString("5. Do NOT use markdown code blocks in your response. Just plain text.\n")
	sb.WriteString("\nMarkdown content:\n")
	sb.WriteString(source)

	return Prompt{
		System: "Output an HTML body fragment only. Never add commentary.",
		User:   sb.String(),
		Kind:   Convert,
		Source: source,
	}
}
