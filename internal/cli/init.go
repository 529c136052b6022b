package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cartflow/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Database string
	Fixtures string
}

// InitResult is the data payload of the init command.
type InitResult struct {
	Database string         `json:"database"`
	Seeded   map[string]int `json:"seeded,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the cart database and seed fixtures",
		Long: `Create (or migrate) the SQLite cart database and optionally seed it
from a YAML fixtures file mapping table names to rows.

Example:
  cartflow init --db ./cart.db
  cartflow init --db ./cart.db --fixtures ./catalog.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Fixtures, "fixtures", "", "YAML fixtures file to seed")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	if err := requireDataFormat(opts.RootOptions); err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	var fixtures store.Fixtures
	if opts.Fixtures != "" {
		f, err := store.LoadFixtures(opts.Fixtures)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load fixtures", err)
		}
		fixtures = f
	}

	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	result := InitResult{Database: opts.Database}
	if len(fixtures) > 0 {
		if err := st.Seed(cmd.Context(), fixtures); err != nil {
			return WrapExitError(ExitCommandError, "failed to seed fixtures", err)
		}
		result.Seeded = make(map[string]int, len(fixtures))
		for table, rows := range fixtures {
			result.Seeded[table] = len(rows)
		}
		logger.Info("fixtures seeded", "path", opts.Fixtures, "tables", len(fixtures))
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(result)
	}
	msg := fmt.Sprintf("Initialized %s", opts.Database)
	for _, table := range store.TableNames {
		if n, ok := result.Seeded[table]; ok {
			msg += fmt.Sprintf("\n  %s: %d rows", table, n)
		}
	}
	return out.Success(msg)
}
