package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/waypost-app/pubflow/internal/list"
)

// Scenario describes one publish flow run end to end.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Draft is the content being published.
	Draft DraftSpec `yaml:"draft"`

	// Existing seeds the kind's list topic before the flow starts. Empty
	// means the profile has no list topic yet and the flow takes the lazy
	// creation path.
	Existing []ItemSpec `yaml:"existing,omitempty"`

	// Faults scripts ledger failures, consumed during the flow.
	Faults []Fault `yaml:"faults,omitempty"`

	// Resume, when true, issues one resume after the flow halts on an error
	// and drains again.
	Resume bool `yaml:"resume,omitempty"`
}

// DraftSpec is the scenario's draft content.
type DraftSpec struct {
	// Kind is the owning list kind: "Channels" or "Groups".
	Kind string `yaml:"kind"`

	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Media, when set, attaches a synthetic binary asset with this filename,
	// adding the upload step to the plan.
	Media string `yaml:"media,omitempty"`
}

// ItemSpec is one pre-existing list entry.
type ItemSpec struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id"`
}

// Fault scripts one ledger failure.
type Fault struct {
	// Op selects the ledger operation: "submit", "create", "read", "upload".
	Op string `yaml:"op"`

	// Call is the 1-based call index of that operation, counted from the
	// start of the flow (setup calls are not counted).
	Call int `yaml:"call"`

	// Error is the failure text. Text containing "user rejected" is treated
	// as a wallet rejection by the classifier, exactly as in production.
	Error string `yaml:"error"`
}

var faultOps = map[string]bool{"submit": true, "create": true, "read": true, "upload": true}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a typo fails loudly instead of silently relaxing the scenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &sc, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Draft.Name == "" {
		return fmt.Errorf("draft.name is required")
	}
	kind, err := list.ParseKind(s.Draft.Kind)
	if err != nil {
		return fmt.Errorf("draft.kind: %w", err)
	}
	if kind != list.KindChannels && kind != list.KindGroups {
		return fmt.Errorf("draft.kind: cannot publish into %s", kind)
	}
	for i, it := range s.Existing {
		if it.Name == "" || it.ID == "" {
			return fmt.Errorf("existing[%d]: name and id are required", i)
		}
	}
	for i, f := range s.Faults {
		if !faultOps[f.Op] {
			return fmt.Errorf("faults[%d]: unknown op %q", i, f.Op)
		}
		if f.Call < 1 {
			return fmt.Errorf("faults[%d]: call must be >= 1", i)
		}
		if f.Error == "" {
			return fmt.Errorf("faults[%d]: error text is required", i)
		}
	}
	return nil
}
