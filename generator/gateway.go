package generator

import (
	"context"
	"errors"
	"log"
	"time"
)

// Gateway 负责构造提示词、调用模型并把结果或错误归一化。
// 单次调用，不重试；超时由外部服务或调用方决定。
type Gateway struct {
	llm     LLMClient
	logger  *log.Logger
	verbose bool
}

func NewGateway(llm LLMClient, logger *log.Logger, verbose bool) (*Gateway, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{llm: llm, logger: logger, verbose: verbose}, nil
}

func (g *Gateway) infof(format string, args ...interface{}) {
	if !g.verbose {
		return
	}
	g.logger.Printf("[INFO] "+format, args...)
}

// Execute runs one transformation. Errors are always *Failure tagged with kind.
func (g *Gateway) Execute(ctx context.Context, kind Kind, source string) (Result, error) {
	req := Request{Kind: kind, Source: source}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return Result{}, &Failure{Op: kind, Cause: err}
	}

	start := time.Now()
	g.infof("%s: calling model (%d bytes of source)", kind, len(source))
	raw, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		g.logger.Printf("[ERROR] %s: model call failed after %s: %v", kind, time.Since(start).Round(time.Millisecond), err)
		return Result{}, &Failure{Op: kind, Cause: err}
	}
	if raw == "" {
		g.infof("%s: model returned no text, using fallback", kind)
	}

	res := PostProcess(kind, raw, source)
	g.infof("%s: done in %s (%d bytes)", kind, time.Since(start).Round(time.Millisecond), len(res.Text))
	return res, nil
}
