package config

import "gopkg.in/yaml.v3"

// Marked wraps a decoded value together with the source position of the
// YAML node it came from, the Go analogue of the `Marked<T>` wrapper the
// original implementation uses so link-resolution and config errors can be
// reported with file:line:col. Every link-valued field (a unit name) is
// decoded as a Marked[string] for this reason; scalar configuration values
// that never need to be cited in an error stay plain.
type Marked[T any] struct {
	Value  T
	Line   int
	Column int
}

// UnmarshalYAML implements yaml.Unmarshaler, capturing both the decoded
// value and the node's position.
func (m *Marked[T]) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode(&m.Value); err != nil {
		return err
	}
	m.Line, m.Column = node.Line, node.Column
	return nil
}

// rawDocument is the top-level shape of a configuration file. Units and
// targets are kept as raw yaml.Node values so each one's position is
// available for ConfigError before it's decoded into a concrete spec, and
// so a syntactically valid-but-semantically-wrong unit doesn't abort
// parsing of its siblings.
type rawDocument struct {
	Units   map[string]yaml.Node `yaml:"units"`
	Targets map[string]yaml.Node `yaml:"targets"`
}

// UnitType identifies which of the four unit kinds of spec §4.5 a UnitSpec
// configures.
type UnitType string

const (
	UnitRTR    UnitType = "rtr"
	UnitRTRTLS UnitType = "rtr-tls"
	UnitJSON   UnitType = "json"
	UnitAny    UnitType = "any"
	UnitSlurm  UnitType = "slurm"
)

// UnitSpec is the decoded form of one entry under `units`, carrying every
// field any unit type might use; Build (in build.go) only reads the fields
// relevant to its Type.
type UnitSpec struct {
	Type UnitType `yaml:"type"`

	// rtr / rtr-tls
	Remote  string   `yaml:"remote"`
	Retry   int      `yaml:"retry"`
	CACerts []string `yaml:"cacerts"`

	// json
	URI     string `yaml:"uri"`
	Refresh int    `yaml:"refresh"`

	// any
	Sources []Marked[string] `yaml:"sources"`
	Random  bool             `yaml:"random"`

	// slurm
	Source Marked[string] `yaml:"source"`
	Files  []string       `yaml:"files"`

	line, column int
}

// TargetType identifies which of the three target kinds of spec §4.6-4.7 a
// TargetSpec configures.
type TargetType string

const (
	TargetRTR    TargetType = "rtr"
	TargetRTRTLS TargetType = "rtr-tls"
	TargetHTTP   TargetType = "http"
)

// TargetSpec is the decoded form of one entry under `targets`.
type TargetSpec struct {
	Type TargetType `yaml:"type"`

	// rtr / rtr-tls
	Listen        []string       `yaml:"listen"`
	Unit          Marked[string] `yaml:"unit"`
	HistorySize   int            `yaml:"history-size"`
	Refresh       int            `yaml:"refresh"`
	Retry         int            `yaml:"retry"`
	Expire        int            `yaml:"expire"`
	ClientMetrics bool           `yaml:"client-metrics"`
	Certificate   string         `yaml:"certificate"`
	Key           string         `yaml:"key"`

	// http
	Path   string `yaml:"path"`
	Format string `yaml:"format"`

	line, column int
}

// Document is a fully parsed configuration file: every unit and target
// spec, decoded and positioned, before link resolution.
type Document struct {
	Units   map[string]UnitSpec
	Targets map[string]TargetSpec
}
