package service

import (
	"context"
	"errors"
	"fmt"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errPreempted = errors.New("cancelled, another tier won the race")

// Orchestrator walks a fixed plan of stages under one shared request deadline and returns the first
// accepted candidate. It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	plan      domain.Plan
	attempter port.Attempter
	selector  port.Selector
}

type Option func(*Orchestrator)

// WithSelector sets the rotation policy of rotate stages. The default is round-robin.
func WithSelector(s port.Selector) Option {
	return func(o *Orchestrator) { o.selector = s }
}

func NewOrchestrator(plan domain.Plan, attempter port.Attempter, opts ...Option) (*Orchestrator, error) {
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	o := &Orchestrator{
		plan:      normalize(plan),
		attempter: attempter,
		selector:  NewRoundRobin(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// normalize copies the plan and orders every stage's tiers by priority.
func normalize(plan domain.Plan) domain.Plan {
	out := make(domain.Plan, len(plan))
	for i, stage := range plan {
		tiers := make([]domain.TierSpec, len(stage.Tiers))
		copy(tiers, stage.Tiers)
		sort.SliceStable(tiers, func(a, b int) bool { return tiers[a].Priority < tiers[b].Priority })

		stage.Tiers = tiers
		if stage.Backup != nil {
			backup := *stage.Backup
			stage.Backup = &backup
		}
		out[i] = stage
	}

	return out
}

func (o *Orchestrator) Run(ctx context.Context, req domain.RequestContext) domain.OrchestrationResult {
	l := log.With().
		Str("requestId", req.ID).
		Str("target", req.TargetURL).
		Logger()

	var cancel context.CancelFunc
	if req.Deadline.IsZero() {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
	}
	defer cancel()

	var attempts []domain.Attempt
	for _, stage := range o.plan {
		var winner *domain.Candidate
		var stageAttempts []domain.Attempt

		switch stage.Mode {
		case domain.Race:
			winner, stageAttempts = o.runRace(ctx, stage, req)
		case domain.Rotate:
			winner, stageAttempts = o.runRotate(ctx, stage, req)
		default:
			winner, stageAttempts = o.runSequential(ctx, stage, req)
		}
		attempts = append(attempts, stageAttempts...)

		if winner != nil {
			l.Info().
				Str("stage", stage.Name).
				Str("source", string(winner.Source())).
				Int("bytes", winner.Size()).
				Msg("candidate accepted")
			return domain.OrchestrationResult{Winner: winner, Attempts: attempts}
		}

		l.Debug().Str("stage", stage.Name).Msg("stage produced no candidate, falling through")
	}

	logExhausted(l, attempts)

	return domain.OrchestrationResult{Attempts: attempts, RedirectURL: req.TargetURL}
}

func logExhausted(l zerolog.Logger, attempts []domain.Attempt) {
	e := l.Warn().Int("attempts", len(attempts))
	for _, a := range attempts {
		if a.Rejection != nil {
			e = e.Str(a.Tier, string(a.Rejection.Kind))
		}
	}
	e.Msg("all tiers exhausted, redirecting to origin")
}

func (o *Orchestrator) runSequential(ctx context.Context, stage domain.Stage,
	req domain.RequestContext) (*domain.Candidate, []domain.Attempt) {
	attempts := make([]domain.Attempt, 0, len(stage.Tiers))

	for _, tier := range stage.Tiers {
		out := o.attempt(ctx, tier, req)
		attempts = append(attempts, out.record(stage.Name))

		if out.accepted() {
			return &out.candidate, attempts
		}
	}

	return nil, attempts
}

func (o *Orchestrator) runRace(ctx context.Context, stage domain.Stage,
	req domain.RequestContext) (*domain.Candidate, []domain.Attempt) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type indexed struct {
		index int
		out   outcome
	}

	// buffered so that losers finishing after the winner never block
	results := make(chan indexed, len(stage.Tiers))
	for i, tier := range stage.Tiers {
		go func(i int, tier domain.TierSpec) {
			results <- indexed{index: i, out: o.attempt(raceCtx, tier, req)}
		}(i, tier)
	}

	attempts := make([]domain.Attempt, 0, len(stage.Tiers))
	reported := make([]bool, len(stage.Tiers))

	for range stage.Tiers {
		res := <-results
		reported[res.index] = true
		attempts = append(attempts, res.out.record(stage.Name))

		if res.out.accepted() {
			cancel()
			for i, tier := range stage.Tiers {
				if !reported[i] {
					attempts = append(attempts, domain.Attempt{
						Stage:     stage.Name,
						Tier:      tier.Name,
						Rejection: domain.Reject(domain.KindTimeout, tier.Name, errPreempted),
					})
				}
			}
			return &res.out.candidate, attempts
		}
	}

	return nil, attempts
}

func (o *Orchestrator) runRotate(ctx context.Context, stage domain.Stage,
	req domain.RequestContext) (*domain.Candidate, []domain.Attempt) {
	var attempts []domain.Attempt

	var chosen *domain.TierSpec
	if len(stage.Tiers) > 0 {
		i := o.selector.Pick(len(stage.Tiers))
		if i < 0 || i >= len(stage.Tiers) {
			i = 0
		}
		chosen = &stage.Tiers[i]

		out := o.attempt(ctx, *chosen, req)
		attempts = append(attempts, out.record(stage.Name))
		if out.accepted() {
			return &out.candidate, attempts
		}

		if !out.rejection.Outright() {
			return nil, attempts
		}
	}

	if stage.Backup == nil || (chosen != nil && chosen.Name == stage.Backup.Name) {
		return nil, attempts
	}

	out := o.attempt(ctx, *stage.Backup, req)
	attempts = append(attempts, out.record(stage.Name))
	if out.accepted() {
		return &out.candidate, attempts
	}

	return nil, attempts
}

type outcome struct {
	tier      domain.TierSpec
	candidate domain.Candidate
	rejection *domain.Rejection
	took      time.Duration
}

func (o outcome) accepted() bool {
	return o.rejection == nil
}

func (o outcome) record(stage string) domain.Attempt {
	a := domain.Attempt{
		Stage:     stage,
		Tier:      o.tier.Name,
		Accepted:  o.accepted(),
		Rejection: o.rejection,
		Duration:  o.took,
	}
	if a.Accepted {
		a.Source = o.candidate.Source()
		a.Size = o.candidate.Size()
	}

	return a
}

// attempt runs one tier and applies its accept predicate. Waiting is bounded by ctx, except for
// local transcode tiers which are allowed to finish an encode that already started.
func (o *Orchestrator) attempt(ctx context.Context, tier domain.TierSpec, req domain.RequestContext) outcome {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return outcome{tier: tier, rejection: domain.Reject(domain.KindTimeout, tier.Name, err)}
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("tier", tier.Name).Interface("panic", r).Msg("tier panicked")
				done <- outcome{
					tier:      tier,
					rejection: domain.Reject(panicKind(tier), tier.Name, fmt.Errorf("panic: %v", r)),
					took:      time.Since(start),
				}
			}
		}()

		candidate, err := o.attempter.Attempt(ctx, tier, req)
		done <- evaluate(tier, candidate, err, time.Since(start))
	}()

	if tier.Kind == domain.LocalTranscode {
		return <-done
	}

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return outcome{
			tier:      tier,
			rejection: domain.Reject(domain.KindTimeout, tier.Name, ctx.Err()),
			took:      time.Since(start),
		}
	}
}

func evaluate(tier domain.TierSpec, candidate domain.Candidate, err error, took time.Duration) outcome {
	out := outcome{tier: tier, took: took}

	switch {
	case err != nil:
		out.rejection = domain.AsRejection(tier.Name, err)
	case !tier.Accepts(candidate):
		out.rejection = domain.Reject(domain.KindPredicate, tier.Name,
			fmt.Errorf("candidate of %d bytes (%s) not accepted", candidate.Size(), candidate.MIMEType()))
	default:
		out.candidate = candidate
	}

	return out
}

func panicKind(tier domain.TierSpec) domain.RejectionKind {
	if tier.Kind == domain.LocalTranscode {
		return domain.KindCodec
	}

	return domain.KindTransport
}
