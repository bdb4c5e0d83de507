package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/keeper-security/ksm-profile/internal/validation"
	"github.com/keeper-security/ksm-profile/pkg/types"
)

// ConfirmationResult represents the result of a confirmation prompt
type ConfirmationResult struct {
	Approved bool
	TimedOut bool
	Error    error
}

// Confirmer asks the user before destructive profile operations
type Confirmer struct {
	config types.Confirmation
	in     io.Reader
	out    io.Writer
}

// NewConfirmer creates a confirmer reading from stdin and prompting on stderr
func NewConfirmer(config types.Confirmation) *Confirmer {
	return NewConfirmerWithIO(config, os.Stdin, os.Stderr)
}

// NewConfirmerWithIO creates a confirmer over explicit streams
func NewConfirmerWithIO(config types.Confirmation, in io.Reader, out io.Writer) *Confirmer {
	return &Confirmer{config: config, in: in, out: out}
}

// Confirm prompts the user for confirmation with the given message
func (c *Confirmer) Confirm(ctx context.Context, message string) *ConfirmationResult {
	if !c.IsInteractive() {
		// Respect default deny even in batch mode
		return &ConfirmationResult{Approved: !c.config.DefaultDeny}
	}
	return c.promptUser(ctx, message)
}

// ConfirmRemoval asks before removing a section or entry. Removing a
// sensitive entry defaults to deny.
func (c *Confirmer) ConfirmRemoval(ctx context.Context, kind, target string) *ConfirmationResult {
	message := fmt.Sprintf("Remove %s '%s'?", kind, target)
	if !validation.IsSensitiveName(target) {
		return c.Confirm(ctx, message)
	}

	config := c.config
	config.DefaultDeny = true
	return NewConfirmerWithIO(config, c.in, c.out).Confirm(ctx, "WARNING: '"+target+"' looks like a credential. "+message)
}

// ConfirmBatchOperation asks once for an operation touching many items
func (c *Confirmer) ConfirmBatchOperation(ctx context.Context, operation string, items []string) *ConfirmationResult {
	if len(items) == 0 {
		return &ConfirmationResult{Error: fmt.Errorf("no items to process")}
	}

	message := fmt.Sprintf("Confirm %s for %d items:", operation, len(items))

	// Show first few items
	const showCount = 5
	for i, item := range items {
		if i >= showCount {
			message += fmt.Sprintf("\n  ... and %d more", len(items)-showCount)
			break
		}
		message += fmt.Sprintf("\n  - %s", item)
	}
	message += "\nProceed?"

	return c.Confirm(ctx, message)
}

func (c *Confirmer) promptUser(ctx context.Context, message string) *ConfirmationResult {
	var promptCtx context.Context
	var cancel context.CancelFunc
	if c.config.Timeout > 0 {
		promptCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
	} else {
		promptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	responseChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	defaultHint := "[Y/n]"
	if c.config.DefaultDeny {
		defaultHint = "[y/N]"
	}
	timeoutMsg := ""
	if c.config.Timeout > 0 {
		timeoutMsg = fmt.Sprintf(" (%v)", c.config.Timeout)
	}
	fmt.Fprintf(c.out, "%s %s%s ", message, defaultHint, timeoutMsg)

	go func() {
		response, err := bufio.NewReader(c.in).ReadString('\n')
		if err != nil && (err != io.EOF || response == "") {
			errorChan <- fmt.Errorf("failed to read user input: %w", err)
			return
		}
		responseChan <- strings.TrimSpace(response)
	}()

	select {
	case <-promptCtx.Done():
		fmt.Fprintln(c.out, "\nTimeout - using default response")
		return &ConfirmationResult{
			Approved: !c.config.DefaultDeny,
			TimedOut: true,
		}

	case err := <-errorChan:
		return &ConfirmationResult{Error: err}

	case response := <-responseChan:
		return &ConfirmationResult{Approved: c.parseResponse(response)}
	}
}

func (c *Confirmer) parseResponse(response string) bool {
	response = strings.ToLower(strings.TrimSpace(response))

	// Empty response uses default
	if response == "" {
		return !c.config.DefaultDeny
	}

	switch response {
	case "y", "yes", "true", "1":
		return true
	case "n", "no", "false", "0":
		return false
	default:
		fmt.Fprintf(c.out, "Invalid response '%s', using default\n", response)
		return !c.config.DefaultDeny
	}
}

// DisplayWarning writes a warning to the prompt stream
func (c *Confirmer) DisplayWarning(message string) {
	fmt.Fprintf(c.out, "WARNING: %s\n", message)
}

// SetConfig updates the confirmer configuration
func (c *Confirmer) SetConfig(config types.Confirmation) {
	c.config = config
}

// GetConfig returns the current confirmer configuration
func (c *Confirmer) GetConfig() types.Confirmation {
	return c.config
}

// IsInteractive returns true if the confirmer prompts the user
func (c *Confirmer) IsInteractive() bool {
	return !c.config.BatchMode && !c.config.AutoApprove
}
