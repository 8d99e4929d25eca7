package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "smartdoc",
	Short: "SmartDoc - document image parsing powered by a vision model",
	Long: `SmartDoc parses document images into structured output: text blocks,
tables, figures, and formulas in reading order. The serve command runs the
HTTP API; the parse command submits a document to a running server and
fetches the result.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
