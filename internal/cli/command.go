package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/idelchi/dustr/internal/dustr"
	"github.com/idelchi/dustr/internal/integration"
)

// CLI represents the command-line interface.
type CLI struct {
	version string
}

// New creates a new CLI instance with the given version.
func New(version string) CLI {
	return CLI{version: version}
}

// command builds the root cobra command.
func (c CLI) command() *cobra.Command {
	var options dustr.Options

	root := &cobra.Command{
		Use:   "dustr [flags] [dirname]",
		Short: "Show disk usage statistics for the entries of a directory",
		Long: heredoc.Doc(`
			dustr reports the cumulative size of every entry directly inside a
			directory, recursing into subdirectories so each one shows up as a
			single number.

			Positional Arguments:
			  dirname                Directory to analyze. Defaults to the current directory.

			Modes:
			  Default mode sums file sizes and reports whole kilobytes.
			  Use --inodes to count filesystem objects instead.

			Entries are suffixed with '/' (directory) or '@' (symlink) unless
			--no-classify is given. Symlinks are never followed.

			The '-i' flag outputs an init script for shell integration with 'fzf'.
		`),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			if options.Version {
				//nolint:forbidigo // Version output to console
				fmt.Println(c.version)

				return nil
			}

			if options.Integration {
				rendered, err := integration.Render()
				if err != nil {
					return fmt.Errorf("rendering integration script: %w", err)
				}

				//nolint:forbidigo // Integration script output to console
				fmt.Println(rendered)

				return nil
			}

			allowedOutputs := []string{"table", "json"}
			if !slices.Contains(allowedOutputs, options.Output) {
				return fmt.Errorf("invalid output format %q: must be one of %v", options.Output, allowedOutputs)
			}

			if options.ProgressInterval < 0 {
				return errors.New("progress interval cannot be negative")
			}

			if len(args) == 0 {
				options.Path = "."
			} else {
				options.Path = args[0]
			}

			return logic(options)
		},
	}

	flags := root.Flags()
	flags.BoolVar(&options.Inodes, "inodes", false, "Count inodes instead of kilobytes")
	flags.BoolVar(&options.NoGrouping, "no-grouping", false, "Disable thousands grouping in sizes")
	flags.BoolVar(&options.NoProgress, "no-progress", false, "Disable the progress line")
	flags.BoolVar(&options.NoClassify, "no-classify", false, "Do not append type indicators ('/', '@') to names")
	flags.StringVarP(&options.Output, "output", "o", "table", "Output format: json or table")
	flags.DurationVar(&options.ProgressInterval, "progress-interval", dustr.DefaultProgressInterval,
		"Interval between progress updates")
	flags.BoolVar(&options.Debug, "debug", false, "Enable debug output")
	flags.BoolVarP(&options.Version, "version", "v", false, "Show version and exit")
	flags.BoolVarP(&options.Integration, "init", "i", false, "Output init script for shell usage")
	flags.SortFlags = false

	return root
}

// Execute runs the CLI with the provided arguments.
func (c CLI) Execute() error {
	return c.command().Execute()
}
