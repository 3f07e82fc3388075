package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

type SourceTag string

const (
	SourceDirectOrigin   SourceTag = "direct-origin"
	SourceLocalTranscode SourceTag = "local-transcode"

	relayPrefix = "relay:"
)

// RelaySource returns the source tag for candidates produced by the named relay.
func RelaySource(name string) SourceTag {
	return SourceTag(relayPrefix + name)
}

func (s SourceTag) IsRelay() bool {
	return strings.HasPrefix(string(s), relayPrefix)
}

// Candidate is an acquired or produced image. It owns its buffer and is never modified after
// construction; transformations build a new Candidate.
type Candidate struct {
	bytes    []byte
	mimeType string
	source   SourceTag
}

// NewCandidate copies data so that later changes to the caller's slice can't leak in.
func NewCandidate(data []byte, mimeType string, source SourceTag) Candidate {
	buf := make([]byte, len(data))
	copy(buf, data)

	return Candidate{bytes: buf, mimeType: mimeType, source: source}
}

// Bytes returns the image buffer. Callers must treat it as read-only.
func (c Candidate) Bytes() []byte {
	return c.bytes
}

func (c Candidate) Size() int {
	return len(c.bytes)
}

func (c Candidate) MIMEType() string {
	return c.mimeType
}

func (c Candidate) Source() SourceTag {
	return c.source
}

func (c Candidate) IsZero() bool {
	return c.bytes == nil && c.source == ""
}

// RequestContext carries everything the orchestrator needs to know about a single inbound request.
type RequestContext struct {
	ID        string
	TargetURL string
	Deadline  time.Time
	Debug     bool
}

// NewRequestContext starts the wall-clock budget of a request at the moment of the call.
func NewRequestContext(targetURL string, budget time.Duration, debug bool) RequestContext {
	id := ""
	if v, err := uuid.NewV4(); err == nil {
		id = v.String()
	}

	return RequestContext{
		ID:        id,
		TargetURL: targetURL,
		Deadline:  time.Now().Add(budget),
		Debug:     debug,
	}
}

// Attempt records the outcome of one tier for diagnostics.
type Attempt struct {
	Stage     string
	Tier      string
	Accepted  bool
	Source    SourceTag
	Size      int
	Rejection *Rejection
	Duration  time.Duration
}

type OrchestrationResult struct {
	Winner   *Candidate
	Attempts []Attempt
	// RedirectURL is only set when every tier failed and always equals the request's target URL.
	RedirectURL string
}

func (r OrchestrationResult) Exhausted() bool {
	return r.Winner == nil
}

// Err aggregates every rejection of an exhausted run. It returns nil when a winner exists.
func (r OrchestrationResult) Err() error {
	if !r.Exhausted() {
		return nil
	}

	errs := []error{ErrExhausted}
	for _, a := range r.Attempts {
		if a.Rejection != nil {
			errs = append(errs, a.Rejection)
		}
	}

	return errors.Join(errs...)
}
