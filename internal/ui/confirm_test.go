package ui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/keeper-security/ksm-profile/pkg/types"
)

// blockingReader never yields input, simulating a user who does not answer
func blockingReader(t *testing.T) io.Reader {
	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })
	return r
}

func TestNewConfirmer(t *testing.T) {
	config := types.Confirmation{Timeout: 30 * time.Second}

	confirmer := NewConfirmer(config)
	if confirmer == nil {
		t.Fatal("NewConfirmer returned nil")
	}
	if confirmer.config.Timeout != config.Timeout {
		t.Errorf("Expected timeout %v, got %v", config.Timeout, confirmer.config.Timeout)
	}
	if !confirmer.IsInteractive() {
		t.Error("Expected interactive confirmer")
	}
}

func TestConfirmBatchMode(t *testing.T) {
	tests := []struct {
		name        string
		batchMode   bool
		autoApprove bool
		defaultDeny bool
		expected    bool
	}{
		{"batch mode approve", true, false, false, true},
		{"batch mode deny", true, false, true, false},
		{"auto approve", false, true, false, true},
		{"auto approve with deny", false, true, true, false},
		{"batch + auto approve", true, true, false, true},
		{"batch + auto with deny", true, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			confirmer := NewConfirmerWithIO(types.Confirmation{
				BatchMode:   tt.batchMode,
				AutoApprove: tt.autoApprove,
				DefaultDeny: tt.defaultDeny,
				Timeout:     5 * time.Second,
			}, strings.NewReader(""), &out)

			result := confirmer.Confirm(context.Background(), "Test confirmation")

			if result.Approved != tt.expected {
				t.Errorf("Expected approved=%v, got %v", tt.expected, result.Approved)
			}
			if result.TimedOut {
				t.Error("Should not have timed out in batch mode")
			}
			if result.Error != nil {
				t.Errorf("Unexpected error: %v", result.Error)
			}
			if out.Len() != 0 {
				t.Errorf("Batch mode must not prompt, got %q", out.String())
			}
		})
	}
}

func TestConfirmReadsAnswer(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		defaultDeny bool
		expected    bool
	}{
		{"yes", "y\n", false, true},
		{"no", "no\n", false, false},
		{"empty uses default approve", "\n", false, true},
		{"empty uses default deny", "\n", true, false},
		{"answer without newline", "yes", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			confirmer := NewConfirmerWithIO(types.Confirmation{
				DefaultDeny: tt.defaultDeny,
				Timeout:     5 * time.Second,
			}, strings.NewReader(tt.input), &out)

			result := confirmer.Confirm(context.Background(), "Remove section 'A'?")
			if result.Error != nil {
				t.Fatalf("Unexpected error: %v", result.Error)
			}
			if result.Approved != tt.expected {
				t.Errorf("Expected approved=%v, got %v", tt.expected, result.Approved)
			}
			if !strings.Contains(out.String(), "Remove section 'A'?") {
				t.Errorf("Prompt not written: %q", out.String())
			}
		})
	}
}

func TestConfirmNoInput(t *testing.T) {
	confirmer := NewConfirmerWithIO(types.Confirmation{}, strings.NewReader(""), io.Discard)

	result := confirmer.Confirm(context.Background(), "Proceed?")
	if result.Error == nil {
		t.Error("Expected error when input is closed")
	}
	if result.Approved {
		t.Error("Closed input must not approve")
	}
}

func TestConfirmTimeout(t *testing.T) {
	tests := []struct {
		name        string
		defaultDeny bool
	}{
		{"default approve", false},
		{"default deny", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confirmer := NewConfirmerWithIO(types.Confirmation{
				Timeout:     50 * time.Millisecond,
				DefaultDeny: tt.defaultDeny,
			}, blockingReader(t), io.Discard)

			start := time.Now()
			result := confirmer.Confirm(context.Background(), "Test timeout")
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("Confirmation took too long: %v", elapsed)
			}

			if !result.TimedOut {
				t.Error("Expected timeout")
			}
			if result.Approved == tt.defaultDeny {
				t.Errorf("Expected approved=%v on timeout", !tt.defaultDeny)
			}
		})
	}
}

func TestContextCancellation(t *testing.T) {
	confirmer := NewConfirmerWithIO(types.Confirmation{
		Timeout:     5 * time.Second,
		DefaultDeny: true,
	}, blockingReader(t), io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := confirmer.Confirm(ctx, "Test cancellation")
	if !result.TimedOut {
		t.Error("Expected timeout on cancelled context")
	}
	if result.Approved {
		t.Error("Expected denial on cancelled context")
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		response    string
		defaultDeny bool
		expected    bool
	}{
		{"y", false, true},
		{"YES", false, true},
		{"true", true, true},
		{"1", true, true},
		{"n", false, false},
		{"No", false, false},
		{"0", false, false},
		{"", false, true},
		{"", true, false},
		{"maybe", false, true},
		{"maybe", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			confirmer := NewConfirmerWithIO(types.Confirmation{DefaultDeny: tt.defaultDeny}, nil, io.Discard)
			if got := confirmer.parseResponse(tt.response); got != tt.expected {
				t.Errorf("parseResponse(%q) = %v, want %v", tt.response, got, tt.expected)
			}
		})
	}
}

func TestConfirmRemoval(t *testing.T) {
	var out bytes.Buffer
	confirmer := NewConfirmerWithIO(types.Confirmation{Timeout: time.Second}, strings.NewReader("\n"), &out)

	result := confirmer.ConfirmRemoval(context.Background(), "entry", "Window/Width")
	if !result.Approved {
		t.Error("Plain entry removal should default to approve")
	}

	out.Reset()
	confirmer = NewConfirmerWithIO(types.Confirmation{Timeout: time.Second}, strings.NewReader("\n"), &out)
	result = confirmer.ConfirmRemoval(context.Background(), "entry", "Database/Password")
	if result.Approved {
		t.Error("Credential removal should default to deny")
	}
	if !strings.Contains(out.String(), "[y/N]") {
		t.Errorf("Expected deny hint, got %q", out.String())
	}
	if confirmer.GetConfig().DefaultDeny {
		t.Error("ConfirmRemoval must not change the confirmer configuration")
	}
}

func TestConfirmBatchOperation(t *testing.T) {
	confirmer := NewConfirmerWithIO(types.Confirmation{BatchMode: true}, nil, io.Discard)

	result := confirmer.ConfirmBatchOperation(context.Background(), "import", nil)
	if result.Error == nil {
		t.Error("Expected error for empty item list")
	}

	result = confirmer.ConfirmBatchOperation(context.Background(), "import", []string{"A", "B"})
	if !result.Approved {
		t.Error("Batch mode should approve")
	}

	var out bytes.Buffer
	items := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7"}
	confirmer = NewConfirmerWithIO(types.Confirmation{Timeout: time.Second}, strings.NewReader("y\n"), &out)
	result = confirmer.ConfirmBatchOperation(context.Background(), "import", items)
	if !result.Approved {
		t.Error("Expected approval")
	}
	if !strings.Contains(out.String(), "... and 2 more") {
		t.Errorf("Expected truncated item list, got %q", out.String())
	}
}

func TestConfigurationMethods(t *testing.T) {
	confirmer := NewConfirmer(types.Confirmation{})
	confirmer.SetConfig(types.Confirmation{BatchMode: true, DefaultDeny: true})

	if !confirmer.GetConfig().BatchMode {
		t.Error("SetConfig did not apply")
	}
	if confirmer.IsInteractive() {
		t.Error("Batch mode should not be interactive")
	}

	var out bytes.Buffer
	NewConfirmerWithIO(types.Confirmation{}, nil, &out).DisplayWarning("profile is read-only")
	if out.String() != "WARNING: profile is read-only\n" {
		t.Errorf("Unexpected warning output %q", out.String())
	}
}
