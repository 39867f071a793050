package app

import (
	"errors"
	"io"
	"os"
	"strings"
)

// NewOSContainer returns a Container backed by the real OS process: its
// environment, stdin/stdout/stderr, and os.Args (sans the binary name).
func NewOSContainer() (Container, error) {
	env, err := newEnvContainerForEnviron(os.Environ())
	if err != nil {
		return nil, err
	}
	var args []string
	if len(os.Args) > 1 {
		args = os.Args[1:]
	}
	return NewContainer(
		env,
		stdinContainer{os.Stdin},
		stdoutContainer{os.Stdout},
		stderrContainer{os.Stderr},
		argContainer{args},
	), nil
}

type envContainer struct {
	variables map[string]string
}

func newEnvContainerForEnviron(environ []string) (*envContainer, error) {
	variables := make(map[string]string, len(environ))
	for _, elem := range environ {
		if !strings.ContainsRune(elem, '=') {
			return nil, errors.New("environment variable entry does not contain '='")
		}
		split := strings.SplitN(elem, "=", 2)
		if split[1] != "" {
			variables[split[0]] = split[1]
		}
	}
	return &envContainer{variables: variables}, nil
}

func (e *envContainer) Env(key string) string { return e.variables[key] }

type stdinContainer struct{ r io.Reader }

func (s stdinContainer) Stdin() io.Reader { return s.r }

type stdoutContainer struct{ w io.Writer }

func (s stdoutContainer) Stdout() io.Writer { return s.w }

type stderrContainer struct{ w io.Writer }

func (s stderrContainer) Stderr() io.Writer { return s.w }

type argContainer struct{ args []string }

func (a argContainer) Args() []string { return a.args }
