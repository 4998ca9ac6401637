package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("guerite %s\n", buildVersion)
			fmt.Printf("commit: %s\n", buildCommit)
			fmt.Printf("built: %s\n", buildDate)
		},
	}
}
