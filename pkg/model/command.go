package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Operation is the kind of control step a Task performs.
type Operation string

const (
	// OpSet writes a value to a simulator variable.
	OpSet Operation = "set"
	// OpPulse writes a value, holds it, then writes the reset value.
	OpPulse Operation = "pulse"
)

const (
	MinPriority = -10
	MaxPriority = 10

	MinPurposeLen = 3
	MaxPurposeLen = 200

	// DefaultHoldSeconds applies to pulse tasks that omit hold_seconds.
	DefaultHoldSeconds = 1.0
)

// Task is one control step targeting one simulator variable. Immutable
// once attached to a Command.
type Task struct {
	Operation   Operation `json:"operation"`
	Variable    string    `json:"variable"`
	Value       any       `json:"value"`
	ResetValue  any       `json:"reset_value,omitempty"`
	HoldSeconds float64   `json:"hold_seconds"`
	Comment     string    `json:"comment,omitempty"`
}

// TaskDraft is the submitted form of a Task. HoldSeconds is a pointer so
// an absent field can default rather than read as zero.
type TaskDraft struct {
	Operation   string   `json:"operation"`
	Variable    string   `json:"variable"`
	Value       any      `json:"value"`
	ResetValue  any      `json:"reset_value"`
	HoldSeconds *float64 `json:"hold_seconds"`
	Comment     string   `json:"comment"`
}

// BuildTask validates a draft and resolves defaults: pulse requires a
// reset value and holds for 1s unless told otherwise; set never holds.
func BuildTask(d TaskDraft) (Task, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(d.Operation)))
	if op != OpSet && op != OpPulse {
		return Task{}, fmt.Errorf("operation must be %q or %q, got %q", OpSet, OpPulse, d.Operation)
	}
	variable := strings.TrimSpace(d.Variable)
	if variable == "" {
		return Task{}, fmt.Errorf("variable is required")
	}
	if d.Value == nil {
		return Task{}, fmt.Errorf("value is required")
	}
	t := Task{
		Operation: op,
		Variable:  variable,
		Value:     d.Value,
		Comment:   strings.TrimSpace(d.Comment),
	}
	if op == OpPulse {
		if d.ResetValue == nil {
			return Task{}, fmt.Errorf("reset_value is required for pulse")
		}
		t.ResetValue = d.ResetValue
		t.HoldSeconds = DefaultHoldSeconds
		if d.HoldSeconds != nil {
			if *d.HoldSeconds < 0 {
				return Task{}, fmt.Errorf("hold_seconds must be >= 0, got %v", *d.HoldSeconds)
			}
			t.HoldSeconds = *d.HoldSeconds
		}
	}
	return t, nil
}

// ValidatePurpose trims and bounds the operator summary.
func ValidatePurpose(purpose string) (string, error) {
	p := strings.TrimSpace(purpose)
	if n := utf8.RuneCountInString(p); n < MinPurposeLen || n > MaxPurposeLen {
		return "", fmt.Errorf("purpose must be %d-%d characters, got %d", MinPurposeLen, MaxPurposeLen, n)
	}
	return p, nil
}

// ValidatePriority bounds dispatch priority; higher claims first.
func ValidatePriority(priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return fmt.Errorf("priority must be in [%d, %d], got %d", MinPriority, MaxPriority, priority)
	}
	return nil
}

// Result records the single terminal outcome reported for a Command.
type Result struct {
	Status     Status         `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	ReportedAt time.Time      `json:"reported_at"`
}

// Command is a unit of operator intent: an ordered set of Tasks a remote
// agent claims, executes against the simulator, and reports a result for.
// Sequence is the queue's creation counter; it orders equal-priority
// claims and eviction but never appears on the wire.
type Command struct {
	ID        string         `json:"id"`
	Purpose   string         `json:"purpose"`
	Tasks     []Task         `json:"tasks"`
	Priority  int            `json:"priority"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Guidance  string         `json:"guidance,omitempty"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	ClaimedAt *time.Time     `json:"claimed_at,omitempty"`
	ClaimedBy string         `json:"claimed_by,omitempty"`
	Attempts  int            `json:"attempts"`
	Result    *Result        `json:"result,omitempty"`
	Sequence  uint64         `json:"-"`
}

// View returns a copy safe to hand outside the queue lock: shared maps,
// slices and the result are duplicated so callers cannot mutate stored state.
func (c *Command) View() Command {
	out := *c
	out.Tasks = append([]Task(nil), c.Tasks...)
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	if c.ClaimedAt != nil {
		at := *c.ClaimedAt
		out.ClaimedAt = &at
	}
	if c.Result != nil {
		res := *c.Result
		if c.Result.Outputs != nil {
			res.Outputs = make(map[string]any, len(c.Result.Outputs))
			for k, v := range c.Result.Outputs {
				res.Outputs[k] = v
			}
		}
		out.Result = &res
	}
	return out
}
