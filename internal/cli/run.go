package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cartflow/internal/config"
	"github.com/roach88/cartflow/internal/harness"
	"github.com/roach88/cartflow/internal/ir"
	"github.com/roach88/cartflow/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Config   string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute a checkout scenario",
		Long: `Execute one checkout scenario and print its trace, the final cart
snapshot and the committed order id.

Without --db the scenario runs against a throwaway database. With --db the
fixtures are seeded into that database and committed orders are kept.

Example:
  cartflow run ./testdata/scenarios/checkout_success.yaml
  cartflow run --db ./cart.db --config ./shop.cue checkout.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: temporary)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE configuration file (default: bundled)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	if err := requireDataFormat(opts.RootOptions); err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.Config != "" {
		cfg, err := config.Load(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		runOpts = append(runOpts, harness.WithConfig(cfg))
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithStore(st))
	}

	logger.Debug("running scenario", "name", scenario.Name, "steps", len(scenario.Steps))
	result, err := harness.RunContext(cmd.Context(), scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_SCENARIO_FAILED", Message: scenario.Name + " failed", Details: result.Errors}
		}
		if err := out.Response(resp); err != nil {
			return err
		}
	} else {
		writeRunText(out.Writer, scenario.Name, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func writeRunText(w io.Writer, name string, result *harness.Result) {
	mark := "✓"
	if !result.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (session %s)\n", mark, name, result.Session)

	fmt.Fprintln(w, "Trace:")
	for _, ev := range result.Trace {
		target := ev.Field
		if target == "" {
			target = ev.ItemID
		}
		line := fmt.Sprintf("  %3d %-11s %-22s %s", ev.Seq, ev.Op, target, ev.Outcome)
		if ev.Outcome == harness.OutcomeRejected {
			line += fmt.Sprintf(" [%s] %s", ev.Code, ev.Error)
		} else if ev.Value != nil {
			line += " " + canonical(ev.Value)
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w, "Snapshot:")
	for _, entry := range result.Snapshot {
		fmt.Fprintf(w, "  %-22s = %s\n", entry.Name, canonical(entry.Value))
	}

	if result.OrderID > 0 {
		fmt.Fprintf(w, "Order: %d (cart %s)\n", result.OrderID, result.State)
	} else {
		fmt.Fprintf(w, "Order: none (cart %s)\n", result.State)
	}

	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func canonical(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(ir.OrNull(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
