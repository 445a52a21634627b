package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/coolboyler/md2word/config"
	"github.com/coolboyler/md2word/editor"
	"github.com/coolboyler/md2word/generator"
)

// app carries what every subcommand needs once flags and config are resolved.
type app struct {
	configPath string
	verbose    bool
	cfg        config.Config
	logger     *log.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "md2word",
		Short: "Repair Markdown with LaTeX and export it as a Word document",
		Long: `md2word edits Markdown with embedded LaTeX ($...$ inline, $$...$$ block).

repair asks the text service to fix LaTeX and Markdown syntax; export asks it for
an HTML body with Presentation MathML and packages the result as a .doc file Word
opens natively with editable equations. serve exposes the same operations over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.verbose {
				cfg.Log.Verbose = true
			}
			a.cfg = cfg
			a.logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags|log.Lshortfile)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: ./md2word.yaml or ~/.config/md2word/md2word.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable info logs")

	root.AddCommand(
		newServeCmd(a),
		newRepairCmd(a),
		newExportCmd(a),
		newPreviewCmd(a),
		newConfigCmd(a),
	)
	return root
}

func buildLLM(cfg config.Config) (generator.LLMClient, error) {
	switch cfg.LLM.Provider {
	case "mock":
		return generator.MockLLM{}, nil
	case "openai", "gemini", "deepseek":
		return generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			BaseURL:  cfg.LLM.BaseURL,
			APIKey:   cfg.APIKey(),
		})
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

func (a *app) gateway() (*generator.Gateway, error) {
	llm, err := buildLLM(a.cfg)
	if err != nil {
		return nil, err
	}
	return generator.NewGateway(llm, a.logger, a.cfg.Log.Verbose)
}

func (a *app) controllerOptions() []editor.Option {
	return []editor.Option{
		editor.WithLogger(a.logger, a.cfg.Log.Verbose),
		editor.WithRevertDelay(a.cfg.Editor.RevertDelay),
		editor.WithExport(editor.ExportSettings{
			Title:     a.cfg.Export.Title,
			Filename:  a.cfg.Export.Filename,
			MediaType: a.cfg.Export.MediaType,
		}),
	}
}
