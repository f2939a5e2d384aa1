package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a configuration document read from path. Syntax errors
// abort immediately (there's no partial document to recover positions
// from); once the document parses, a malformed individual unit or target
// spec is collected into the returned LoadErrors instead of aborting its
// siblings.
func Parse(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var doc rawDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	var errs LoadErrors
	units := make(map[string]UnitSpec, len(doc.Units))
	for name, node := range doc.Units {
		node := node
		var spec UnitSpec
		if err := node.Decode(&spec); err != nil {
			errs = append(errs, &ConfigError{File: path, Line: node.Line, Column: node.Column, Message: fmt.Sprintf("unit %q: %s", name, err)})
			continue
		}
		spec.line, spec.column = node.Line, node.Column
		units[name] = spec
	}

	targets := make(map[string]TargetSpec, len(doc.Targets))
	for name, node := range doc.Targets {
		node := node
		var spec TargetSpec
		if err := node.Decode(&spec); err != nil {
			errs = append(errs, &ConfigError{File: path, Line: node.Line, Column: node.Column, Message: fmt.Sprintf("target %q: %s", name, err)})
			continue
		}
		spec.line, spec.column = node.Line, node.Column
		targets[name] = spec
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return &Document{Units: units, Targets: targets}, nil
}
