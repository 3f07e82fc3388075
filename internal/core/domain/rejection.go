package domain

import (
	"errors"
	"fmt"
)

// RejectionKind classifies why a tier did not produce an accepted candidate.
type RejectionKind string

const (
	KindUpstreamHTTP       RejectionKind = "upstream_http_error"
	KindRequest            RejectionKind = "request_error"
	KindInvalidContentType RejectionKind = "invalid_content_type"
	KindSizeOutOfBounds    RejectionKind = "size_out_of_bounds"
	KindTransport          RejectionKind = "transport_error"
	KindTimeout            RejectionKind = "timeout"
	KindCodec              RejectionKind = "codec_error"
	KindPredicate          RejectionKind = "predicate_rejected"
)

// Rejection is the non-fatal failure value of a single tier.
type Rejection struct {
	Kind   RejectionKind
	Tier   string
	Status int // HTTP status for KindUpstreamHTTP
	Err    error
}

func (r *Rejection) Error() string {
	if r.Kind == KindUpstreamHTTP && r.Status != 0 {
		return fmt.Sprintf("[%s] %s: status %d", r.Kind, r.Tier, r.Status)
	}

	return fmt.Sprintf("[%s] %s: %v", r.Kind, r.Tier, r.Err)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Outright reports whether the tier failed before producing any body: the upstream answered with
// an HTTP error, could not be reached, or the provider could not express the request at all.
func (r *Rejection) Outright() bool {
	return r.Kind == KindUpstreamHTTP || r.Kind == KindTransport || r.Kind == KindRequest
}

func Reject(kind RejectionKind, tier string, err error) *Rejection {
	return &Rejection{Kind: kind, Tier: tier, Err: err}
}

func RejectStatus(tier string, status int) *Rejection {
	return &Rejection{
		Kind:   KindUpstreamHTTP,
		Tier:   tier,
		Status: status,
		Err:    fmt.Errorf("unexpected status code: %d", status),
	}
}

// AsRejection converts any error into a Rejection for the given tier. Errors that are not
// rejections already are classified as transport errors.
func AsRejection(tier string, err error) *Rejection {
	var r *Rejection
	if errors.As(err, &r) {
		return r
	}

	return Reject(KindTransport, tier, err)
}

func IsKind(err error, kind RejectionKind) bool {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Kind == kind
	}

	return false
}
