package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/newsquant/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("NewsQuant version %s\n", common.GetFullVersion())
	},
}
