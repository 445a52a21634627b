package generator

import (
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var bodyRe = regexp.MustCompile(`(?i)<body[\s>]`)

// 允许被剥掉的外层代码块语言标记，其余语言视为用户内容。
var (
	repairFenceLangs  = []string{"", "markdown", "md"}
	convertFenceLangs = []string{"", "html"}
)

// PostProcess 把服务返回的原始文本归一化为 Result。
// 空结果不是错误：Repair 退回原文，Convert 退回空片段。
func PostProcess(kind Kind, raw, source string) Result {
	text := strings.TrimSpace(raw)

	switch kind {
	case Repair:
		text = unwrapFence(text, repairFenceLangs)
		if text == "" {
			return Result{Kind: Repair, Text: source}
		}
		return Result{Kind: Repair, Text: text}
	default:
		text = unwrapFence(text, convertFenceLangs)
		if text == "" {
			return Result{Kind: Convert, Text: ""}
		}
		return Result{Kind: Convert, Text: extractBody(text)}
	}
}

// unwrapFence 去掉模型违背指令时包裹整段输出的 ``` 代码块。
// 只处理恰好一个外层代码块：语言标记须在 langs 中，内部不能再有 fence 行，
// 否则原样返回。
func unwrapFence(s string, langs []string) string {
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	open := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(open, "```") || strings.TrimSpace(lines[len(lines)-1]) != "```" {
		return s
	}
	lang := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(open, "```")))
	if !slices.Contains(langs, lang) {
		return s
	}
	inner := lines[1 : len(lines)-1]
	for _, line := range inner {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~") {
			return s
		}
	}
	return strings.TrimSpace(strings.Join(inner, "\n"))
}

// extractBody keeps only the inner HTML of <body> when the service returned a
// whole document instead of a fragment.
func extractBody(s string) string {
	if !bodyRe.MatchString(s) {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	inner, err := doc.Find("body").First().Html()
	if err != nil {
		return s
	}
	return strings.TrimSpace(inner)
}

// Stats summarizes how math ended up in a converted fragment.
type Stats struct {
	Math   int
	Images int
}

// FragmentStats counts <math> and <img> elements in an HTML fragment.
func FragmentStats(fragment string) Stats {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return Stats{}
	}
	return Stats{
		Math:   doc.Find("math").Length(),
		Images: doc.Find("img").Length(),
	}
}
