package harness

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/resetaudio/internal/notify"
)

// Scenario is a scripted run of the plugin.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Token is the fixed correlation token. Default: "test-token-default".
	Token string `yaml:"token,omitempty"`

	// FrameMs is the host frame interval. Zero means the plugin is never ticked.
	FrameMs int64 `yaml:"frame_ms,omitempty"`

	// UntilMs is when the run ends. It defaults to the last step.
	UntilMs int64 `yaml:"until_ms,omitempty"`

	// DefaultDevice is the default render endpoint id. Empty means none.
	DefaultDevice string `yaml:"default_device,omitempty"`

	// Integration installs a music player integration that is always ready.
	Integration bool `yaml:"integration,omitempty"`

	Config ConfigOverrides `yaml:"config,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// ConfigOverrides change the first-run configuration. Nil fields keep the
// default.
type ConfigOverrides struct {
	SuppressForward   *bool `yaml:"suppress_forward,omitempty"`
	PrintToChat       *bool `yaml:"print_to_chat,omitempty"`
	CoalesceMs        *int  `yaml:"coalesce_ms,omitempty"`
	EnableIntegration *bool `yaml:"enable_integration,omitempty"`

	// Suppress replaces the ignore list with these keys, all enabled.
	Suppress []notify.PropertyKey `yaml:"suppress,omitempty"`
}

// Notification names accepted in Step.Notify.
const (
	NotifyDeviceStateChanged   = "device_state_changed"
	NotifyDeviceAdded          = "device_added"
	NotifyDeviceRemoved        = "device_removed"
	NotifyDefaultDeviceChanged = "default_device_changed"
	NotifyPropertyValueChanged = "property_value_changed"
)

// Step is one thing that happens at AtMs: a notification from the host or a
// chat command from the user.
type Step struct {
	AtMs int64 `yaml:"at_ms"`

	Notify string `yaml:"notify,omitempty"`
	// Device is the endpoint id. For default_device_changed an empty id
	// means the role has no default device anymore.
	Device string             `yaml:"device,omitempty"`
	Key    notify.PropertyKey `yaml:"key,omitempty"`
	State  uint32             `yaml:"state,omitempty"`

	// Command is the argument string of /resetaudio. A pointer since the
	// empty command is meaningful.
	Command *string `yaml:"command,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Event is the event label (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Detail is a subset of the journal detail to match (trace_contains).
	Detail map[string]string `yaml:"detail,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Expect maps state names to values (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
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
	sort.SliceStable(scenario.Steps, func(i, j int) bool {
		return scenario.Steps[i].AtMs < scenario.Steps[j].AtMs
	})
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
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
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.FrameMs < 0 {
		return fmt.Errorf("frame_ms must be non-negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	if st.AtMs < 0 {
		return fmt.Errorf("steps[%d]: at_ms must be non-negative", index)
	}
	switch {
	case st.Notify != "" && st.Command != nil:
		return fmt.Errorf("steps[%d]: notify and command are mutually exclusive", index)
	case st.Command != nil:
		return nil
	case st.Notify == "":
		return fmt.Errorf("steps[%d]: one of notify or command is required", index)
	}

	switch st.Notify {
	case NotifyDeviceStateChanged, NotifyDeviceAdded, NotifyDeviceRemoved:
		if st.Device == "" {
			return fmt.Errorf("steps[%d]: device is required for %s", index, st.Notify)
		}
	case NotifyPropertyValueChanged:
		if st.Device == "" {
			return fmt.Errorf("steps[%d]: device is required for %s", index, st.Notify)
		}
		if st.Key == (notify.PropertyKey{}) {
			return fmt.Errorf("steps[%d]: key is required for %s", index, st.Notify)
		}
	case NotifyDefaultDeviceChanged:
	default:
		return fmt.Errorf("steps[%d]: unknown notification %q", index, st.Notify)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for k := range a.Expect {
			if !knownState(k) {
				return fmt.Errorf("assertions[%d]: unknown state %q", index, k)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
