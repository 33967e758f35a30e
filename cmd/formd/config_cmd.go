package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "config [--output config.yaml]",
		Short: "Print the effective configuration as YAML",
		Long:  "Print the configuration after defaults, the --config file, .env and FORMD_* variables are applied.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if output == "" {
				return cfg.WriteYAML(cmd.OutOrStdout())
			}

			if err := cfg.SaveConfig(output); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "✅ Wrote config to: %s\n", output)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}
