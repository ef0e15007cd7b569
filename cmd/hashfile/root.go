package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hashfile/internal/config"
	"hashfile/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		outputName string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "hashfile",
		Short:         "Hashfile is a content-addressed file store with per-user ownership",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}

			name := strings.TrimSpace(outputName)
			if jsonOutput {
				name = "json"
			}
			if name == "" || name == "text" {
				return nil
			}
			formatter, err := format.ForName(name)
			if err != nil {
				return err
			}
			outputFormatter = formatter
			jsonOutput = true
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&outputName, "output", "", "output format: text, json or yaml")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newMigrateCmd(cfg, &jsonOutput),
		newUserCmd(cfg, &jsonOutput),
		newLoginCmd(cfg, &jsonOutput),
		newWhoamiCmd(cfg, &jsonOutput),
		newUploadCmd(cfg, &jsonOutput),
		newDownloadCmd(cfg),
		newRmCmd(cfg, &jsonOutput),
		newLsCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
	)

	return cmd
}
