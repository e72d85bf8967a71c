package model

import (
	"strings"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func TestBuildTask(t *testing.T) {
	tests := []struct {
		name    string
		draft   TaskDraft
		want    Task
		wantErr string
	}{
		{
			name:  "set ignores hold",
			draft: TaskDraft{Operation: "set", Variable: "PUMP", Value: 1.0, HoldSeconds: fptr(5)},
			want:  Task{Operation: OpSet, Variable: "PUMP", Value: 1.0},
		},
		{
			name:  "operation is case and space tolerant",
			draft: TaskDraft{Operation: " SET ", Variable: " PUMP ", Value: "on"},
			want:  Task{Operation: OpSet, Variable: "PUMP", Value: "on"},
		},
		{
			name:  "pulse defaults hold to one second",
			draft: TaskDraft{Operation: "pulse", Variable: "VALVE", Value: 1.0, ResetValue: 0.0},
			want:  Task{Operation: OpPulse, Variable: "VALVE", Value: 1.0, ResetValue: 0.0, HoldSeconds: 1.0},
		},
		{
			name:  "pulse honors explicit hold",
			draft: TaskDraft{Operation: "pulse", Variable: "VALVE", Value: 1.0, ResetValue: 0.0, HoldSeconds: fptr(0)},
			want:  Task{Operation: OpPulse, Variable: "VALVE", Value: 1.0, ResetValue: 0.0, HoldSeconds: 0},
		},
		{
			name:    "unknown operation",
			draft:   TaskDraft{Operation: "toggle", Variable: "X", Value: 1.0},
			wantErr: "operation",
		},
		{
			name:    "missing variable",
			draft:   TaskDraft{Operation: "set", Value: 1.0},
			wantErr: "variable",
		},
		{
			name:    "missing value",
			draft:   TaskDraft{Operation: "set", Variable: "X"},
			wantErr: "value",
		},
		{
			name:    "pulse requires reset value",
			draft:   TaskDraft{Operation: "pulse", Variable: "X", Value: 1.0},
			wantErr: "reset_value",
		},
		{
			name:    "negative hold",
			draft:   TaskDraft{Operation: "pulse", Variable: "X", Value: 1.0, ResetValue: 0.0, HoldSeconds: fptr(-1)},
			wantErr: "hold_seconds",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildTask(tc.draft)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Operation != tc.want.Operation || got.Variable != tc.want.Variable ||
				got.Value != tc.want.Value || got.ResetValue != tc.want.ResetValue ||
				got.HoldSeconds != tc.want.HoldSeconds {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestValidatePurpose(t *testing.T) {
	if _, err := ValidatePurpose("ok"); err == nil {
		t.Error("two characters should fail")
	}
	if _, err := ValidatePurpose("  ab  "); err == nil {
		t.Error("trim happens before length check")
	}
	if _, err := ValidatePurpose(strings.Repeat("x", 201)); err == nil {
		t.Error("201 characters should fail")
	}
	p, err := ValidatePurpose("  open coolant valve  ")
	if err != nil {
		t.Fatal(err)
	}
	if p != "open coolant valve" {
		t.Errorf("purpose not trimmed: %q", p)
	}
}

func TestValidatePriority(t *testing.T) {
	for _, p := range []int{-10, 0, 10} {
		if err := ValidatePriority(p); err != nil {
			t.Errorf("priority %d should be valid: %v", p, err)
		}
	}
	for _, p := range []int{-11, 11, 100} {
		if err := ValidatePriority(p); err == nil {
			t.Errorf("priority %d should be rejected", p)
		}
	}
}

func TestValidateTransition(t *testing.T) {
	valid := [][2]Status{
		{StatusPending, StatusInProgress},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusFailed},
		{StatusInProgress, StatusPending}, // lease reclaim
		{StatusPending, StatusCompleted},  // result for a lost claim response
	}
	for _, tr := range valid {
		if err := ValidateTransition(tr[0], tr[1]); err != nil {
			t.Errorf("%s -> %s should be valid: %v", tr[0], tr[1], err)
		}
	}
	invalid := [][2]Status{
		{StatusCompleted, StatusPending},
		{StatusFailed, StatusInProgress},
		{StatusCompleted, StatusFailed},
	}
	for _, tr := range invalid {
		if err := ValidateTransition(tr[0], tr[1]); err == nil {
			t.Errorf("%s -> %s should be rejected", tr[0], tr[1])
		}
	}
}

func TestViewIsDeepEnoughCopy(t *testing.T) {
	cmd := &Command{
		ID:       "c1",
		Tasks:    []Task{{Operation: OpSet, Variable: "X", Value: 1.0}},
		Metadata: map[string]any{"k": "v"},
		Result:   &Result{Status: StatusCompleted, Outputs: map[string]any{"o": 1.0}},
	}
	view := cmd.View()
	view.Tasks[0].Variable = "mutated"
	view.Metadata["k"] = "mutated"
	view.Result.Outputs["o"] = "mutated"

	if cmd.Tasks[0].Variable != "X" {
		t.Error("task slice shared with view")
	}
	if cmd.Metadata["k"] != "v" {
		t.Error("metadata map shared with view")
	}
	if cmd.Result.Outputs["o"] != 1.0 {
		t.Error("result outputs shared with view")
	}
}
