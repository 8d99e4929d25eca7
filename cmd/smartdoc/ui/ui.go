// Package ui provides colored terminal output helpers for the smartdoc CLI.
package ui

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var verboseFlag bool

// Init configures color and verbose settings for the CLI session.
func Init(noColor, verbose bool) {
	verboseFlag = verbose
	if noColor {
		color.NoColor = true
	}
}

// Success displays a success message.
func Success(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

// Error displays an error message to stderr.
func Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), fmt.Sprintf(format, args...))
}

// Warning displays a warning message.
func Warning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", color.YellowString("⚠"), fmt.Sprintf(format, args...))
}

// Info displays an informational message.
func Info(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", color.CyanString("ℹ"), fmt.Sprintf(format, args...))
}

// Verbose displays a message only when verbose mode is on.
func Verbose(format string, args ...interface{}) {
	if verboseFlag {
		fmt.Fprintf(os.Stdout, "  %s\n", fmt.Sprintf(format, args...))
	}
}

// Section displays a section header.
func Section(title string) {
	fmt.Fprintf(os.Stdout, "\n%s\n%s\n\n", color.New(color.Bold).Sprint(title), strings.Repeat("=", len(title)))
}

// Newline prints a blank line.
func Newline() {
	fmt.Fprintln(os.Stdout)
}

// Table displays data in a formatted table.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))

	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	_ = w.Flush()
}
