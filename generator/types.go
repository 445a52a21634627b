package generator

import (
	"fmt"
	"strings"
)

// Kind 区分两类外部转换：修复 Markdown/LaTeX，或转换为 Word 可编辑的 HTML。
type Kind int

const (
	Repair Kind = iota
	Convert
)

func (k Kind) String() string {
	switch k {
	case Repair:
		return "repair"
	case Convert:
		return "convert"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "repair", "convert" and the alias "export".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "repair":
		return Repair, nil
	case "convert", "export":
		return Convert, nil
	default:
		return 0, fmt.Errorf("unknown operation %q", s)
	}
}

// Request 是一次转换请求，构造后不再修改。
type Request struct {
	Kind   Kind
	Source string
}

// Result 为归一化后的结果：Repair 为完整替换文本，Convert 为 HTML body 片段。
type Result struct {
	Kind Kind
	Text string
}

// Failure wraps any error raised while calling the text service.
type Failure struct {
	Op    Kind
	Cause error
}

func (f *Failure) Error() string {
	if f.Cause == nil {
		return f.Op.String() + " failed"
	}
	return fmt.Sprintf("%s failed: %v", f.Op, f.Cause)
}

func (f *Failure) Unwrap() error { return f.Cause }
