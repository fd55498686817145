package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "upd-processor",
	Short: "Ingest and reconcile supplier UPD XML documents",
	Long: `UPD Processor ingests supplier-issued Universal Transfer Document
(УПД) XML files, extracts their line items defensively across vendor
dialects (1С, СБИС, Диадок, Астрал) and reconciles distributions of
quantities and amounts to cost objects.

Examples:
  # Parse a single file and print the extracted document
  upd-processor parse upd.xml

  # Check arithmetic consistency of one or more files
  upd-processor validate *.xml

  # Show encoding and generator info without full extraction
  upd-processor info upd.xml

  # Start the HTTP API (requires UPD_DATABASE_DSN)
  upd-processor serve`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format, args...)
	}
}
