package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-rtrtr/rtrtr/comms"
	"github.com/go-rtrtr/rtrtr/rtrwire"
	"github.com/go-rtrtr/rtrtr/target"
	"github.com/go-rtrtr/rtrtr/unit"
)

const (
	defaultRTRPort    = "323"
	defaultRetry      = 60 * time.Second
	defaultRefresh    = 300 * time.Second
)

// Manager owns every unit and target a single configuration load produced.
type Manager struct {
	Units   map[string]unit.Unit
	Targets map[string]target.Target
}

// Build resolves every link in doc and constructs the concrete units and
// targets it describes. Units are constructed in dependency order (a
// source before any `any`/`slurm` unit that references it), which is this
// implementation's version of the gate registry of spec §4.3/§6: instead
// of pre-allocating a Gate for every referenced name up front, the name ->
// built-unit map is populated in an order that guarantees a referenced
// name already has an entry by the time it's needed. A name that never
// appears as a key of doc.Units is reported as an UnresolvedLinkError;
// every link error across the document is collected and returned together.
func Build(file string, doc *Document) (*Manager, error) {
	order, errs := topoSort(file, doc)
	for _, spec := range doc.Targets {
		if _, ok := doc.Units[spec.Unit.Value]; !ok {
			errs = append(errs, &UnresolvedLinkError{File: file, Line: spec.Unit.Line, Column: spec.Unit.Column, Name: spec.Unit.Value})
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	built := make(map[string]unit.Unit, len(doc.Units))
	var buildErrs LoadErrors
	for _, name := range order {
		u, err := buildUnit(file, name, doc.Units[name], built)
		if err != nil {
			buildErrs = append(buildErrs, err)
			continue
		}
		built[name] = u
	}
	if err := buildErrs.Err(); err != nil {
		return nil, err
	}

	targets := make(map[string]target.Target, len(doc.Targets))
	var targetErrs LoadErrors
	for name, spec := range doc.Targets {
		src, ok := built[spec.Unit.Value]
		if !ok {
			targetErrs = append(targetErrs, &UnresolvedLinkError{File: file, Line: spec.Unit.Line, Column: spec.Unit.Column, Name: spec.Unit.Value})
			continue
		}
		t, err := buildTarget(file, name, spec, src)
		if err != nil {
			targetErrs = append(targetErrs, err)
			continue
		}
		targets[name] = t
	}
	if err := targetErrs.Err(); err != nil {
		return nil, err
	}

	return &Manager{Units: built, Targets: targets}, nil
}

// topoSort orders doc.Units so every unit named by another unit's
// sources/source field is built before that unit. It returns an
// UnresolvedLinkError-carrying LoadErrors for any name that isn't a key of
// doc.Units, and a single ConfigError if the dependency graph has a cycle
// (which the dataflow graph of spec §2 never should, since units and
// targets form a DAG).
func topoSort(file string, doc *Document) ([]string, LoadErrors) {
	var errs LoadErrors
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(doc.Units))
	var order []string

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case done:
			return true
		case visiting:
			errs = append(errs, &ConfigError{File: file, Message: fmt.Sprintf("unit %q: dependency cycle", name)})
			return false
		}
		state[name] = visiting

		spec, ok := doc.Units[name]
		if ok {
			for _, dep := range dependsOn(spec) {
				if _, ok := doc.Units[dep.Value]; !ok {
					errs = append(errs, &UnresolvedLinkError{File: file, Line: dep.Line, Column: dep.Column, Name: dep.Value})
					continue
				}
				visit(dep.Value)
			}
		}
		state[name] = done
		order = append(order, name)
		return true
	}

	for name := range doc.Units {
		visit(name)
	}
	return order, errs
}

func dependsOn(spec UnitSpec) []Marked[string] {
	switch spec.Type {
	case UnitAny:
		return spec.Sources
	case UnitSlurm:
		return []Marked[string]{spec.Source}
	default:
		return nil
	}
}

func buildUnit(file, name string, spec UnitSpec, built map[string]unit.Unit) (unit.Unit, error) {
	switch spec.Type {
	case UnitRTR:
		return buildRTRUnit(name, spec, nil)
	case UnitRTRTLS:
		tlsConfig, err := clientTLSConfig(spec.CACerts)
		if err != nil {
			return nil, &ConfigError{File: file, Line: spec.line, Column: spec.column, Message: fmt.Sprintf("unit %q: %s", name, err)}
		}
		return buildRTRUnit(name, spec, tlsConfig)
	case UnitJSON:
		refresh := defaultRefresh
		if spec.Refresh > 0 {
			refresh = time.Duration(spec.Refresh) * time.Second
		}
		return unit.NewJSON(name, spec.URI, refresh), nil
	case UnitAny:
		links := make([]*comms.Link, len(spec.Sources))
		for i, src := range spec.Sources {
			links[i] = built[src.Value].Agent().CreateLink(false)
		}
		mode := unit.RoundRobin
		if spec.Random {
			mode = unit.Random
		}
		return unit.NewAny(name, links, mode), nil
	case UnitSlurm:
		link := built[spec.Source.Value].Agent().CreateLink(false)
		return unit.NewSlurm(name, link, spec.Files), nil
	default:
		return nil, &ConfigError{File: file, Line: spec.line, Column: spec.column, Message: fmt.Sprintf("unit %q: unknown type %q", name, spec.Type)}
	}
}

func buildRTRUnit(name string, spec UnitSpec, tlsConfig *tls.Config) (unit.Unit, error) {
	addr := spec.Remote
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, defaultRTRPort)
	}
	u := unit.NewRTR(name, addr, tlsConfig)
	if spec.Retry > 0 {
		u.RetryWait = time.Duration(spec.Retry) * time.Second
	} else {
		u.RetryWait = defaultRetry
	}
	return u, nil
}

func buildTarget(file, name string, spec TargetSpec, src unit.Unit) (target.Target, error) {
	switch spec.Type {
	case TargetRTR, TargetRTRTLS:
		var tlsConfig *tls.Config
		if spec.Type == TargetRTRTLS {
			var err error
			tlsConfig, err = serverTLSConfig(spec.Certificate, spec.Key)
			if err != nil {
				return nil, &ConfigError{File: file, Line: spec.line, Column: spec.column, Message: fmt.Sprintf("target %q: %s", name, err)}
			}
		}
		link := src.Agent().CreateLink(false)
		t := target.NewRTR(name, link, spec.Listen, tlsConfig)
		if spec.HistorySize > 0 {
			t.HistorySize = spec.HistorySize
		}
		t.ClientMetrics = spec.ClientMetrics
		t.Timing = rtrwire.Timing{
			Refresh: uint32(nonZero(spec.Refresh, 3600)),
			Retry:   uint32(nonZero(spec.Retry, 600)),
			Expire:  uint32(nonZero(spec.Expire, 7200)),
		}
		return t, nil
	case TargetHTTP:
		link := src.Agent().CreateLink(false)
		return target.NewHTTP(name, link, spec.Path), nil
	default:
		return nil, &ConfigError{File: file, Line: spec.line, Column: spec.column, Message: fmt.Sprintf("target %q: unknown type %q", name, spec.Type)}
	}
}

func nonZero(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func clientTLSConfig(caCertPaths []string) (*tls.Config, error) {
	if len(caCertPaths) == 0 {
		return &tls.Config{}, nil
	}
	pool := x509.NewCertPool()
	for _, path := range caCertPaths {
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cacerts: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("cacerts: %s: no certificates found", path)
		}
	}
	return &tls.Config{RootCAs: pool}, nil
}

func serverTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("certificate/key: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}
