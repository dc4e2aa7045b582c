// Package cli implements the recurctl command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "xcal"
	Config  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "xcal"}

// NewRootCommand creates the root command for recurctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "recurctl",
		Short: "Expand iCalendar recurrences",
		Long:  "recurctl reads iCalendar data and lists the concrete occurrences of its events, to-dos and journals.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log evaluation details to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|xcal)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "YAML configuration file")

	cmd.AddCommand(NewExpandCommand(opts))

	return cmd
}

// newLogger logs to w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
