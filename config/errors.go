package config

import (
	"fmt"
	"strings"
)

// ConfigError is a syntactic or semantic configuration failure, carrying
// the source position of the offending node per spec §7.
type ConfigError struct {
	File          string
	Line, Column  int
	Message       string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// UnresolvedLinkError is a load-time reference (a unit name used as a
// source) to a unit that was never defined, per spec §6-7.
type UnresolvedLinkError struct {
	File         string
	Line, Column int
	Name         string
}

func (e *UnresolvedLinkError) Error() string {
	return fmt.Sprintf("%s:%d:%d: unresolved link %q: no such unit", e.File, e.Line, e.Column, e.Name)
}

// LoadErrors aggregates every error encountered while loading one
// configuration file. Individual unit/target failures don't abort the
// load; they accumulate here and are reported together, per spec §7.
type LoadErrors []error

func (e LoadErrors) Error() string {
	lines := make([]string, len(e))
	for i, err := range e {
		lines[i] = err.Error()
	}
	return strings.Join(lines, "\n")
}

// Err returns nil if e is empty, or e itself otherwise, so callers can
// write `return errs.Err()` without an extra nil check.
func (e LoadErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
