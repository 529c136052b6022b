// Package cli implements the cartflow command line: store initialisation,
// field graph inspection and checkout scenario runs.
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
	Format  string // "text" | "json" | "dot" | "mermaid"
}

// ValidFormats defines the allowed output formats. dot and mermaid are only
// meaningful for the fields command.
var ValidFormats = []string{"text", "json", "dot", "mermaid"}

// NewRootCommand creates the root command for the cartflow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cartflow",
		Short: "cartflow - reactive shopping cart engine",
		Long:  "Inspect the cart field graph and drive checkout scenarios against a SQLite store.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|dot|mermaid)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewFieldsCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// requireDataFormat rejects the graph-only formats for commands that
// print results.
func requireDataFormat(opts *RootOptions) error {
	if opts.Format == "text" || opts.Format == "json" || opts.Format == "" {
		return nil
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("format %q is only supported by the fields command", opts.Format))
}

// newLogger returns a text logger writing to w at Info, or Debug with
// --verbose, and installs it as the default logger.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
