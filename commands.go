package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/coolboyler/md2word/delivery"
	"github.com/coolboyler/md2word/document"
	"github.com/coolboyler/md2word/editor"
	"github.com/coolboyler/md2word/server"
)

// readSource loads the buffer: "" gives the built-in sample, "-" reads stdin,
// .html/.htm files are imported as Markdown.
func readSource(path string, stdin io.Reader) (string, error) {
	switch path {
	case "":
		return editor.DefaultSample, nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return document.ImportHTML(string(data))
	default:
		return string(data), nil
	}
}

func writeOutput(path string, stdout io.Writer, text string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// settle reports the controller's terminal status as a command result.
func (a *app) settle(ctrl *editor.Controller) error {
	st := ctrl.State()
	if st.Status == editor.StatusError {
		return errors.New(st.Message)
	}
	a.logger.Printf("[cli] %s", st.Message)
	return nil
}

func newRepairCmd(a *app) *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Fix LaTeX and Markdown syntax through the text service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(in, cmd.InOrStdin())
			if err != nil {
				return err
			}
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			d, err := delivery.NewDirDeliverer(a.cfg.Export.Dir)
			if err != nil {
				return err
			}
			ctrl, err := editor.New(gw, d, append(a.controllerOptions(), editor.WithBuffer(src))...)
			if err != nil {
				return err
			}

			a.logger.Printf("[cli] repairing %d bytes", len(src))
			if err := ctrl.Repair(cmd.Context()); err != nil {
				return err
			}
			if err := a.settle(ctrl); err != nil {
				return err
			}
			return writeOutput(out, cmd.OutOrStdout(), ctrl.Buffer())
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "markdown or html source (\"-\" for stdin, default: built-in sample)")
	cmd.Flags().StringVar(&out, "out", "", "write repaired markdown here (default: stdout)")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var in, dir, title string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Convert to HTML with MathML and save a Word-compatible .doc",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(in, cmd.InOrStdin())
			if err != nil {
				return err
			}
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Export.Dir
			}
			d, err := delivery.NewDirDeliverer(dir)
			if err != nil {
				return err
			}
			opts := append(a.controllerOptions(), editor.WithBuffer(src))
			if title != "" {
				opts = append(opts, editor.WithExport(editor.ExportSettings{Title: title}))
			}
			ctrl, err := editor.New(gw, d, opts...)
			if err != nil {
				return err
			}

			a.logger.Printf("[cli] exporting %d bytes", len(src))
			if err := ctrl.Convert(cmd.Context()); err != nil {
				return err
			}
			if err := a.settle(ctrl); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), d.Path(a.cfg.Export.Filename))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "markdown or html source (\"-\" for stdin, default: built-in sample)")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default: export.dir)")
	cmd.Flags().StringVar(&title, "title", "", "document title (default: export.title)")
	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render markdown to preview HTML locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(in, cmd.InOrStdin())
			if err != nil {
				return err
			}
			html, err := document.RenderPreview(src)
			if err != nil {
				return err
			}
			return writeOutput(out, cmd.OutOrStdout(), html)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "markdown or html source (\"-\" for stdin, default: built-in sample)")
	cmd.Flags().StringVar(&out, "out", "", "write html here (default: stdout)")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg.Redacted())
			if err != nil {
				return fmt.Errorf("marshaling YAML: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			outbox := delivery.NewOutbox(a.cfg.Outbox.TTL)
			srv, err := server.New(gw, outbox, a.logger, a.controllerOptions()...)
			if err != nil {
				return err
			}
			srv.SetSessionTTL(a.cfg.Server.SessionTTL)

			listen := a.cfg.Server.Addr
			if addr != "" {
				listen = addr
			}
			if listen == "" {
				listen = ":8080"
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go srv.SweepLoop(ctx, time.Minute)

			httpSrv := &http.Server{Addr: listen, Handler: srv.Routes()}
			errCh := make(chan error, 1)
			go func() { errCh <- httpSrv.ListenAndServe() }()
			a.logger.Printf("Starting web server on %s", listen)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "http listen address (overrides server.addr)")
	return cmd
}
