package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/tenderintel/internal/common"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			return printJSON(common.GetVersionInfo())
		}
		fmt.Printf("TenderIntel version %s\n", common.GetFullVersion())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print machine-readable version information")
}
