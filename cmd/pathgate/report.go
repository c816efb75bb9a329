package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pathgate/pathgate/internal/config"
	"github.com/pathgate/pathgate/internal/redirect"
	"github.com/pathgate/pathgate/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var (
		configPath string
		inputPath  string
		since      time.Duration
		format     string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a decision log per redirect rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("--in is required")
			}
			if !report.Format(format).Valid() {
				return fmt.Errorf("unknown format %q", format)
			}

			var table *redirect.Table
			if configPath != "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				if table, err = cfg.Table(); err != nil {
					return err
				}
			}

			reader := report.Reader{}
			if since > 0 {
				reader.Since = time.Now().Add(-since)
			}
			decisions, err := reader.Read(inputPath)
			if err != nil {
				return fmt.Errorf("read %s: %w", inputPath, err)
			}

			out, closeOut, err := openOutput(cmd.OutOrStdout(), outPath)
			if err != nil {
				return err
			}
			if err := report.Write(out, report.Summarize(decisions, table), report.Format(format)); err != nil {
				_ = closeOut()
				return err
			}
			return closeOut()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config whose rule table the log is read against")
	cmd.Flags().StringVar(&inputPath, "in", "", "Decision log (JSONL)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only include entries newer than this (e.g. 10m)")
	cmd.Flags().StringVar(&format, "format", string(report.FormatText), "Output format: text|md|json")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (default stdout)")

	return cmd
}

// openOutput returns stdout when path is empty, otherwise a freshly
// truncated file.
func openOutput(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}
