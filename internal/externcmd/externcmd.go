// Package externcmd resolves and executes operator-supplied reaction
// commands with positional placeholder substitution.
package externcmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command is a resolved external command: an executable plus its argument
// vector, possibly still carrying unsubstituted placeholder tokens.
type Command struct {
	path string
	argv []string
}

// Resolve splits a command line on whitespace, locates the executable, and
// verifies it can be run. Placeholder tokens in the arguments are left
// untouched.
func Resolve(command string) (*Command, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("resolve command %q: %w", argv[0], err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat command %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("command %q is not a regular file", path)
	}

	return &Command{path: path, argv: argv}, nil
}

// Matches reports whether any argument contains the placeholder token.
// Callers use it to skip computing substitution values the command never
// references.
func (c *Command) Matches(token string) bool {
	for _, arg := range c.argv {
		if strings.Contains(arg, token) {
			return true
		}
	}
	return false
}

// Substitute replaces every occurrence of the placeholder token with value.
func (c *Command) Substitute(token, value string) {
	for i, arg := range c.argv {
		c.argv[i] = strings.ReplaceAll(arg, token, value)
	}
}

// Args returns the command's current argument vector, executable first.
func (c *Command) Args() []string {
	return append([]string(nil), c.argv...)
}

// String returns the command line in its current substitution state.
func (c *Command) String() string {
	return strings.Join(c.argv, " ")
}

// Execute runs the command and waits for it to exit. A non-zero exit
// status is returned as an error carrying the command's combined output.
func (c *Command) Execute(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.path, c.argv[1:]...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("execute %q: %s: %w", c.argv[0], strings.TrimSpace(string(output)), err)
	}
	return nil
}
