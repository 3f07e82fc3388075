package domain

import (
	"fmt"
	"strings"
)

type TierKind int

const (
	DirectFetch TierKind = iota
	RelayProxy
	LocalTranscode
)

func (k TierKind) String() string {
	switch k {
	case DirectFetch:
		return "direct"
	case RelayProxy:
		return "relay"
	case LocalTranscode:
		return "local"
	default:
		return fmt.Sprintf("TierKind(%d)", int(k))
	}
}

// RelayParams are passed to a provider when it builds its request. Relays map them to their own
// query grammar, the direct provider ignores them.
type RelayParams struct {
	Width   int
	Quality int
	Format  Format
}

// AcceptPredicate decides whether a candidate is good enough to win. Implementations must be pure.
type AcceptPredicate func(Candidate) bool

// TierSpec describes one acquisition strategy. It is built at startup and never mutated afterwards.
type TierSpec struct {
	Name     string
	Kind     TierKind
	Provider string
	Params   RelayParams
	Accept   AcceptPredicate
	Priority int
	Recipe   *TranscodeRecipe
}

// Accepts evaluates the tier's predicate; a tier without predicate accepts any candidate.
func (t TierSpec) Accepts(c Candidate) bool {
	if t.Accept == nil {
		return true
	}

	return t.Accept(c)
}

// LargerThan accepts candidates strictly bigger than n bytes, rejecting placeholder images.
func LargerThan(n int) AcceptPredicate {
	return func(c Candidate) bool { return c.Size() > n }
}

// SmallerThan accepts candidates strictly smaller than n bytes.
func SmallerThan(n int) AcceptPredicate {
	return func(c Candidate) bool { return c.Size() < n }
}

// AtMost accepts candidates of at most n bytes.
func AtMost(n int) AcceptPredicate {
	return func(c Candidate) bool { return c.Size() <= n }
}

// MIMEContains accepts candidates whose declared type contains s, ignoring case.
func MIMEContains(s string) AcceptPredicate {
	needle := strings.ToLower(s)
	return func(c Candidate) bool {
		return strings.Contains(strings.ToLower(c.MIMEType()), needle)
	}
}

func NonEmpty() AcceptPredicate {
	return func(c Candidate) bool { return c.Size() > 0 }
}

func AllOf(preds ...AcceptPredicate) AcceptPredicate {
	return func(c Candidate) bool {
		for _, p := range preds {
			if p != nil && !p(c) {
				return false
			}
		}
		return true
	}
}

type StageMode string

const (
	Sequential StageMode = "sequential"
	Race       StageMode = "race"
	Rotate     StageMode = "rotate"
)

func ParseStageMode(s string) (StageMode, error) {
	switch m := StageMode(strings.ToLower(strings.TrimSpace(s))); m {
	case Sequential, Race, Rotate:
		return m, nil
	default:
		return "", fmt.Errorf("unknown stage mode %q", s)
	}
}

// Stage is a group of tiers executed with one mode. Backup is only used by Rotate stages and is
// attempted when the rotated choice fails outright.
type Stage struct {
	Name   string
	Mode   StageMode
	Tiers  []TierSpec
	Backup *TierSpec
}

// Plan is the ordered list of stages an orchestrator walks through.
type Plan []Stage

func (p Plan) Validate() error {
	count := 0
	for _, s := range p {
		if _, err := ParseStageMode(string(s.Mode)); err != nil {
			return fmt.Errorf("stage %s: %w", s.Name, err)
		}
		tiers := s.Tiers
		if s.Backup != nil {
			tiers = append(tiers[:len(tiers):len(tiers)], *s.Backup)
		}
		for _, t := range tiers {
			if t.Kind == LocalTranscode && t.Recipe == nil {
				return fmt.Errorf("stage %s: tier %s has no transcode recipe", s.Name, t.Name)
			}
		}
		count += len(s.Tiers)
	}

	if count == 0 {
		return ErrEmptyPlan
	}

	return nil
}

// DirectProvider is the registry name of the provider fetching the target URL itself.
const DirectProvider = "direct"
