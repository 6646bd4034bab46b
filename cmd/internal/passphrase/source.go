package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves a keystore passphrase from an environment variable or a
// terminal prompt, once.
type Source struct {
	envVar string
	prompt string

	once  sync.Once
	value string
	err   error
}

// NewSource checks envVar before prompting with prompt on stderr.
func NewSource(envVar, prompt string) *Source {
	if strings.TrimSpace(prompt) == "" {
		prompt = "Keystore passphrase: "
	}
	return &Source{envVar: strings.TrimSpace(envVar), prompt: prompt}
}

// Get returns the cached passphrase or resolves it on first use.
// Whitespace-only passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		if s.envVar != "" {
			return "", fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
		}
		return "", errors.New("keystore passphrase required and no terminal available")
	}

	fmt.Fprint(os.Stderr, s.prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", errors.New("keystore passphrase cannot be empty")
	}
	return string(raw), nil
}
