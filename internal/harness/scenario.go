package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cartflow/internal/cart"
	"github.com/roach88/cartflow/internal/store"
)

// Scenario is one checkout run with its expectations.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Session is the cart's session token. Default: testutil.DefaultSession.
	Session string `yaml:"session,omitempty"`

	// Config is an inline CUE document replacing the bundled configuration.
	Config string `yaml:"config,omitempty"`

	Actor  cart.Actor  `yaml:"actor,omitempty"`
	Client cart.Client `yaml:"client,omitempty"`

	// CartID binds the cart to a persisted cart row before the first step.
	CartID int64 `yaml:"cart_id,omitempty"`

	// Fixtures are seeded into the store before the cart is created.
	Fixtures store.Fixtures `yaml:"fixtures,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one cart operation. Exactly one operation field is set.
type Step struct {
	Set        *SetStep        `yaml:"set,omitempty"`
	AddItem    *cart.ItemInput `yaml:"add_item,omitempty"`
	RemoveItem string          `yaml:"remove_item,omitempty"`
	UpdateQty  *UpdateQtyStep  `yaml:"update_qty,omitempty"`
	Commit     *CommitStep     `yaml:"commit,omitempty"`

	// Expect validates the step's outcome. Nil means no validation.
	Expect *Expect `yaml:"expect,omitempty"`
}

// SetStep proposes a field value.
type SetStep struct {
	Field string `yaml:"field"`
	Value any    `yaml:"value"`
}

// UpdateQtyStep changes one line's qty.
type UpdateQtyStep struct {
	ItemID string `yaml:"item_id"`
	Qty    int64  `yaml:"qty"`
}

// CommitStep commits the cart. Async routes the commit through
// Committer.CommitAsync.
type CommitStep struct {
	Async bool `yaml:"async,omitempty"`
}

// Step operation names, as they appear in traces.
const (
	OpSet        = "set"
	OpAddItem    = "add_item"
	OpRemoveItem = "remove_item"
	OpUpdateQty  = "update_qty"
	OpCommit     = "commit"
)

// Op returns the step's operation name, or "" when none or several are set.
func (s Step) Op() string {
	var ops []string
	if s.Set != nil {
		ops = append(ops, OpSet)
	}
	if s.AddItem != nil {
		ops = append(ops, OpAddItem)
	}
	if s.RemoveItem != "" {
		ops = append(ops, OpRemoveItem)
	}
	if s.UpdateQty != nil {
		ops = append(ops, OpUpdateQty)
	}
	if s.Commit != nil {
		ops = append(ops, OpCommit)
	}
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Outcome is "fulfilled" or "rejected". Empty skips the check.
	Outcome string `yaml:"outcome,omitempty"`

	// Value is compared with the step's value: the resolved field for set,
	// the item id for line operations, the order id for commit.
	// Nil skips the check.
	Value any `yaml:"value,omitempty"`

	// Error must be contained in the step's error message.
	Error string `yaml:"error,omitempty"`

	// Code is the rejection code or failed commit step.
	Code string `yaml:"code,omitempty"`
}

// Outcome values.
const (
	OutcomeFulfilled = "fulfilled"
	OutcomeRejected  = "rejected"
)

// Assertion validates the final cart and store.
type Assertion struct {
	// Type is field, error, final_state or order_count.
	Type string `yaml:"type"`

	Field   string `yaml:"field,omitempty"`
	Value   any    `yaml:"value,omitempty"`
	Message string `yaml:"message,omitempty"`

	// State is the expected lifecycle state (final_state without table).
	State string `yaml:"state,omitempty"`

	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	Count int64 `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertField      = "field"
	AssertError      = "error"
	AssertFinalState = "final_state"
	AssertOrderCount = "order_count"
)

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML. Unknown keys are rejected so typos
// like "assertion:" fail loudly.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for table := range s.Fixtures {
		if !slices.Contains(store.TableNames, table) {
			return fmt.Errorf("fixtures: unknown table %q", table)
		}
	}

	for i, step := range s.Steps {
		op := step.Op()
		if op == "" {
			return fmt.Errorf("steps[%d]: exactly one of set, add_item, remove_item, update_qty, commit is required", i)
		}
		if op == OpSet && step.Set.Field == "" {
			return fmt.Errorf("steps[%d].set: field is required", i)
		}
		if op == OpUpdateQty && step.UpdateQty.ItemID == "" {
			return fmt.Errorf("steps[%d].update_qty: item_id is required", i)
		}
		if e := step.Expect; e != nil && e.Outcome != "" && e.Outcome != OutcomeFulfilled && e.Outcome != OutcomeRejected {
			return fmt.Errorf("steps[%d].expect: unknown outcome %q", i, e.Outcome)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertField:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for field", index)
		}
	case AssertError:
	case AssertFinalState:
		if (a.State == "") == (a.Table == "") {
			return fmt.Errorf("assertions[%d]: final_state needs exactly one of state or table", index)
		}
		if a.Table != "" && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state on a table", index)
		}
	case AssertOrderCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
