package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcarmo/guerite/internal/config"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the GUERITE_* environment, then exit",
		Long:  "Validates the configuration Guerite would start with, without connecting to a container engine. Intended for use as the container healthcheck on Guerite's own image.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fmt.Printf("configuration valid: state_file=%s http_api=%v scope=%q\n", cfg.StateFile, cfg.HTTPAPIEnabled, cfg.Scope)
			return nil
		},
	}
}
