package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"formdwatch/internal/edgar"
	"formdwatch/internal/formatter"
	"formdwatch/internal/models"
)

type fetchOptions struct {
	Start  string
	End    string
	Format string
	Input  string
	Output string
}

func newFetchCmd() *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch --start YYYY-MM-DD --end YYYY-MM-DD [--format table|json]",
		Short: "Fetch one day range of Form D filings and print them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, opts)
		},
	}

	today := models.Today()
	cmd.Flags().StringVar(&opts.Start, "start", today.StartParam(), "First filing date (inclusive)")
	cmd.Flags().StringVar(&opts.End, "end", today.EndParam(), "Last filing date (inclusive)")
	cmd.Flags().StringVar(&opts.Format, "format", formatter.FormatTable, "Output format: table or json")
	cmd.Flags().StringVar(&opts.Input, "input", "", "Normalize a saved search response instead of querying EDGAR")
	cmd.Flags().StringVar(&opts.Output, "output", "", "Write output to a file instead of stdout")

	return cmd
}

func runFetch(cmd *cobra.Command, opts fetchOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dr, err := models.ParseDateRange(opts.Start, opts.End)
	if err != nil {
		return err
	}

	client := edgar.NewClient(cfg.Edgar, newLogger(cfg))
	status := cmd.ErrOrStderr()

	var result *models.FilingResult

	if opts.Input != "" {
		fmt.Fprintf(status, "📂 Reading: %s\n", opts.Input)
		result, err = client.LoadFromFile(opts.Input, dr)
	} else {
		fmt.Fprintf(status, "🔍 Querying EDGAR for %s\n", dr)
		result, err = client.FetchFilings(cmd.Context(), dr)
	}

	if err != nil {
		return fmt.Errorf("fetch failed (%s): %w", edgar.ErrorKind(err), err)
	}

	var buf bytes.Buffer
	if err := formatter.Write(&buf, result, opts.Format); err != nil {
		return err
	}

	if opts.Output == "" {
		_, err = io.Copy(cmd.OutOrStdout(), &buf)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(opts.Output, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Fprintf(status, "✅ Saved %d filings to: %s\n", len(result.Filings), opts.Output)

	return nil
}
