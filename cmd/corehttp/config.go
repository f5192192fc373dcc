package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/corehttp/internal/config"
	"github.com/vango-dev/corehttp/internal/errors"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(configPrintCmd(), configCodesCmd())
	return cmd
}

func configPrintCmd() *cobra.Command {
	var (
		path   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the configuration after defaults, file and environment are merged",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			target := "config.json"
			if format == "yaml" {
				target = "config.yaml"
			}
			data, err := cfg.Marshal(target)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "Configuration file (YAML or JSON)")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or json")

	return cmd
}

func configCodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "List the error codes corehttp can report",
		Run: func(cmd *cobra.Command, args []string) {
			for _, code := range errors.GetAllCodes() {
				tmpl, _ := errors.GetTemplate(code)
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s %s\n", code, tmpl.Category, tmpl.Message)
			}
		},
	}
}
