package unit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/go-rtrtr/rtrtr/comms"
	"github.com/go-rtrtr/rtrtr/payload"
)

// exceptionPollInterval matches the cadence local exception files are
// re-stat'd for changes.
const exceptionPollInterval = 2 * time.Second

// PrefixFilter drops any payload whose prefix falls within Prefix (equal
// to it or more specific), optionally restricted to payloads whose max
// length equals MaxLength and to a single ASN.
type PrefixFilter struct {
	Prefix    netip.Prefix
	MaxLength *uint8
	ASN       *uint32
}

func (f PrefixFilter) matches(p payload.Payload) bool {
	if p.Prefix.Bits() < f.Prefix.Bits() || !f.Prefix.Contains(p.Prefix.Addr()) {
		return false
	}
	if f.MaxLength != nil && p.MaxLength != *f.MaxLength {
		return false
	}
	if f.ASN != nil && p.ASN != *f.ASN {
		return false
	}
	return true
}

type exceptionFile struct {
	Filters    []PrefixFilter   `json:"-"`
	Assertions []payload.Payload `json:"-"`
}

type exceptionJSON struct {
	PrefixFilters []struct {
		Prefix    string  `json:"prefix"`
		MaxLength *uint8  `json:"maxLength,omitempty"`
		ASN       *uint32 `json:"asn,omitempty"`
	} `json:"validationOutputFilters,omitempty"`
	Assertions []jsonROA `json:"locallyAddedAssertions,omitempty"`
}

func loadExceptionFile(path string) (exceptionFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return exceptionFile{}, err
	}
	var doc exceptionJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return exceptionFile{}, fmt.Errorf("unit/slurm: %s: %w", path, err)
	}

	var ex exceptionFile
	for _, f := range doc.PrefixFilters {
		prefix, err := netip.ParsePrefix(f.Prefix)
		if err != nil {
			return exceptionFile{}, fmt.Errorf("unit/slurm: %s: invalid filter prefix %q: %w", path, f.Prefix, err)
		}
		ex.Filters = append(ex.Filters, PrefixFilter{Prefix: prefix, MaxLength: f.MaxLength, ASN: f.ASN})
	}
	for _, a := range doc.Assertions {
		p, err := a.toPayload()
		if err != nil {
			return exceptionFile{}, fmt.Errorf("unit/slurm: %s: %w", path, err)
		}
		ex.Assertions = append(ex.Assertions, p)
	}
	return ex, nil
}

// Slurm is a unit that applies local exception files (SLURM documents, RFC
// 8416) to one upstream source: payloads matched by a prefix filter are
// dropped, and locally asserted payloads are inserted unconditionally. The
// exception files are re-read whenever their mtime changes, polled every
// exceptionPollInterval, so an operator editing them takes effect without a
// restart.
type Slurm struct {
	base

	Source *comms.Link
	Files  []string

	log *logrus.Entry
}

// NewSlurm constructs a Slurm unit filtering Source's data through Files.
func NewSlurm(name string, source *comms.Link, files []string) *Slurm {
	return &Slurm{
		base:   newBase(name),
		Source: source,
		Files:  files,
		log:    logrus.WithField("unit", name).WithField("kind", "slurm"),
	}
}

type fileState struct {
	modTime time.Time
	content exceptionFile
}

// Run implements Unit.
func (s *Slurm) Run(ctx context.Context) error {
	states := make([]fileState, len(s.Files))
	for i, path := range s.Files {
		if err := s.reload(path, &states[i]); err != nil {
			s.log.WithError(err).Error("initial exception file load failed")
			s.Gate().UpdateStatus(comms.Gone)
			return fmt.Errorf("unit/slurm: %w", err)
		}
	}

	ticker := time.NewTicker(exceptionPollInterval)
	defer ticker.Stop()

	var base *payload.Set = payload.Empty
	current := s.apply(base, states)
	s.Gate().UpdateData(payload.NewFullUpdate(current, 1))
	serial := uint32(1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.Source.Chan():
			if !ok {
				s.Gate().UpdateStatus(comms.Gone)
				return nil
			}
			if status, isStatus := ev.Status(); isStatus {
				s.Gate().UpdateStatus(status)
				break
			}
			update, _ := ev.Update()
			if update.Set() != nil {
				base = update.Set()
			} else if update.Diff() != nil {
				base, _ = update.Diff().Apply(base)
			}
			serial++
			next := s.apply(base, states)
			diff := payload.Between(current, next)
			s.Gate().UpdateData(payload.NewDiffUpdate(next, diff, serial))
			current = next
			s.Gate().UpdateStatus(comms.Healthy)
		case <-ticker.C:
			changed := false
			for i, path := range s.Files {
				info, err := os.Stat(path)
				if err != nil {
					s.log.WithError(err).Warn("exception file stat failed, keeping last good content")
					continue
				}
				if info.ModTime().After(states[i].modTime) {
					if err := s.reload(path, &states[i]); err != nil {
						s.log.WithError(err).Warn("exception file reload failed, keeping last good content")
						continue
					}
					changed = true
				}
			}
			if changed {
				serial++
				next := s.apply(base, states)
				diff := payload.Between(current, next)
				s.Gate().UpdateData(payload.NewDiffUpdate(next, diff, serial))
				current = next
			}
		}
		if err := s.Gate().Process(ctx); err != nil && err != context.Canceled {
			return err
		}
	}
}

func (s *Slurm) reload(path string, st *fileState) error {
	content, err := loadExceptionFile(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	st.modTime = info.ModTime()
	st.content = content
	return nil
}

// apply filters base through every loaded exception file's filters, then
// inserts every file's assertions, matching the filter-then-assert order
// local exception documents are defined to apply in.
func (s *Slurm) apply(base *payload.Set, states []fileState) *payload.Set {
	sb := payload.NewSetBuilder()
	sb.InsertSet(base)
	sb.Filter(func(p payload.Payload) bool {
		for _, st := range states {
			for _, f := range st.content.Filters {
				if f.matches(p) {
					return false
				}
			}
		}
		return true
	})
	result := sb.Finalize()

	ab := payload.NewSetBuilder()
	ab.InsertSet(result)
	for _, st := range states {
		if len(st.content.Assertions) == 0 {
			continue
		}
		pb := payload.NewPackBuilder(len(st.content.Assertions))
		for _, a := range st.content.Assertions {
			pb.Push(a)
		}
		ab.InsertPack(pb.Finalize())
	}
	return ab.Finalize()
}
