package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/weftworks/loom/pkg/domain"
)

// CommandCompleter shells out to an external program for completions: the
// conversation is written to the program's stdin as JSON and the completion
// is read from its stdout. It lets any provider CLI (or a test script) act
// as the model without this module knowing a wire protocol.
type CommandCompleter struct {
	command string
	args    []string
	dir     string
}

var _ Completer = (*CommandCompleter)(nil)

// commandInput is the JSON shape written to the program's stdin.
type commandInput struct {
	Messages  []domain.Message     `json:"messages"`
	Resources []domain.ResourceRef `json:"resources,omitempty"`
}

// CommandOption configures a CommandCompleter.
type CommandOption func(*CommandCompleter)

// WithWorkDir sets the working directory for the executed program.
func WithWorkDir(dir string) CommandOption {
	return func(c *CommandCompleter) { c.dir = dir }
}

// NewCommandCompleter creates a completer running the given program.
func NewCommandCompleter(command string, args []string, opts ...CommandOption) *CommandCompleter {
	c := &CommandCompleter{command: command, args: args}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete runs the program once and returns its trimmed stdout.
func (c *CommandCompleter) Complete(ctx context.Context, msgs []domain.Message, resources []domain.ResourceRef) (string, error) {
	input, err := json.Marshal(commandInput{Messages: msgs, Resources: resources})
	if err != nil {
		return "", fmt.Errorf("marshal completion input: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Dir = c.dir
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("model command failed: %w (stderr: %s)", err, truncate(stderr.String(), 200))
	}
	return strings.TrimSpace(stdout.String()), nil
}
