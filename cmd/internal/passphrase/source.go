// Package passphrase resolves keystore passphrases for the command line tools.
package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// terminal reads a secret without echo. ok is false when no terminal is
// attached.
type terminal interface {
	ReadSecret(prompt string) (secret []byte, ok bool, err error)
}

type stdinTerminal struct {
	out io.Writer
}

func (t stdinTerminal) ReadSecret(prompt string) ([]byte, bool, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, false, nil
	}
	fmt.Fprint(t.out, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(t.out)
	return secret, true, err
}

// Source resolves a passphrase once, from an environment variable or an
// interactive prompt, and caches the outcome.
type Source struct {
	envVar string
	label  string
	lookup func(string) (string, bool)
	tty    terminal

	once  sync.Once
	value string
	err   error
}

// NewSource checks envVar before prompting on stderr. label names the secret
// in prompts and errors, e.g. "wallet keystore passphrase".
func NewSource(envVar, label string) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "keystore passphrase"
	}
	return &Source{
		envVar: strings.TrimSpace(envVar),
		label:  label,
		lookup: os.LookupEnv,
		tty:    stdinTerminal{out: os.Stderr},
	}
}

// Get returns the passphrase. Blank values are rejected whatever their origin.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := s.lookup(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}

	secret, ok, err := s.tty.ReadSecret("Enter " + s.label + ": ")
	if !ok {
		if s.envVar != "" {
			return "", fmt.Errorf("%s required; set %s or run interactively", s.label, s.envVar)
		}
		return "", fmt.Errorf("%s required and no terminal available", s.label)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if strings.TrimSpace(string(secret)) == "" {
		return "", errors.New(s.label + " cannot be empty")
	}
	return string(secret), nil
}
