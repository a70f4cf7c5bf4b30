package config

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Validator validates configuration values
type Validator struct {
	namespacePattern *regexp.Regexp
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		namespacePattern: regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`),
	}
}

// ValidatePort validates a TCP port. Zero is accepted when allowZero is set.
func (v *Validator) ValidatePort(port int, allowZero bool) error {
	if port == 0 && allowZero {
		return nil
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateNamespace validates the initial namespace name
func (v *Validator) ValidateNamespace(ns string) error {
	if ns == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if !v.namespacePattern.MatchString(ns) {
		return fmt.Errorf("invalid namespace %q", ns)
	}
	return nil
}

// ValidateExitCommands validates the exit command set
func (v *Validator) ValidateExitCommands(cmds []string) error {
	if len(cmds) == 0 {
		return fmt.Errorf("at least one exit command is required")
	}

	seen := make(map[string]bool, len(cmds))
	for _, cmd := range cmds {
		if cmd == "" {
			return fmt.Errorf("exit command cannot be empty")
		}
		if cmd != strings.TrimSpace(cmd) {
			return fmt.Errorf("exit command %q has surrounding whitespace", cmd)
		}
		if strings.ContainsFunc(cmd, unicode.IsControl) {
			return fmt.Errorf("exit command %q contains control characters", cmd)
		}
		if seen[cmd] {
			return fmt.Errorf("duplicate exit command %q", cmd)
		}
		seen[cmd] = true
	}

	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}

	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}
