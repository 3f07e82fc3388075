package port

import (
	"context"
	"pixrelay/internal/core/domain"
)

type Acquirer interface {
	// Acquire fetches the candidate of a single tier. A non-nil error is always a *domain.Rejection.
	Acquire(ctx context.Context, tier domain.TierSpec, req domain.RequestContext) (domain.Candidate, error)
}

type Transcoder interface {
	// Transcode applies recipe to input and returns a new candidate tagged as locally transcoded.
	Transcode(ctx context.Context, input domain.Candidate, recipe domain.TranscodeRecipe) (domain.Candidate, error)
}

type Attempter interface {
	// Attempt runs one tier end to end. The caller applies the tier's accept predicate.
	Attempt(ctx context.Context, tier domain.TierSpec, req domain.RequestContext) (domain.Candidate, error)
}

type Orchestrator interface {
	// Run walks the configured plan under req.Deadline and returns the winner or the exhaustion result.
	Run(ctx context.Context, req domain.RequestContext) domain.OrchestrationResult
}

type Selector interface {
	// Pick returns an index in [0, n) choosing among equally ranked tiers.
	Pick(n int) int
}
