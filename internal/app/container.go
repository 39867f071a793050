// Package app provides the minimal host-process abstraction (environment,
// standard streams, arguments) that the creel CLI runs against, following
// the shape of a small dependency-injected container rather than reaching
// for os.Getenv/os.Stdout directly from business logic.
package app

import (
	"io"
)

// EnvContainer provides environment variables.
type EnvContainer interface {
	// Env returns the environment variable for the given key, or empty if not set.
	Env(key string) string
}

// StdinContainer provides stdin.
type StdinContainer interface {
	Stdin() io.Reader
}

// StdoutContainer provides stdout.
type StdoutContainer interface {
	Stdout() io.Writer
}

// StderrContainer provides stderr.
type StderrContainer interface {
	Stderr() io.Writer
}

// ArgContainer provides command-line arguments, not including the binary name.
type ArgContainer interface {
	Args() []string
}

// Container is the full host container.
type Container interface {
	EnvContainer
	StdinContainer
	StdoutContainer
	StderrContainer
	ArgContainer
}

type container struct {
	env    EnvContainer
	stdin  StdinContainer
	stdout StdoutContainer
	stderr StderrContainer
	args   ArgContainer
}

// NewContainer returns a new Container composed from its parts.
func NewContainer(
	env EnvContainer,
	stdin StdinContainer,
	stdout StdoutContainer,
	stderr StderrContainer,
	args ArgContainer,
) Container {
	return &container{env: env, stdin: stdin, stdout: stdout, stderr: stderr, args: args}
}

func (c *container) Env(key string) string { return c.env.Env(key) }
func (c *container) Stdin() io.Reader       { return c.stdin.Stdin() }
func (c *container) Stdout() io.Writer      { return c.stdout.Stdout() }
func (c *container) Stderr() io.Writer      { return c.stderr.Stderr() }
func (c *container) Args() []string         { return c.args.Args() }
