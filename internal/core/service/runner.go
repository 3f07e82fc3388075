package service

import (
	"context"
	"errors"
	"fmt"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"

	"github.com/rs/zerolog/log"
)

// TierRunner executes one tier end to end: acquisition, and for local tiers transcode plus size guard.
type TierRunner struct {
	acquirer   port.Acquirer
	transcoder port.Transcoder
}

func NewTierRunner(acquirer port.Acquirer, transcoder port.Transcoder) *TierRunner {
	return &TierRunner{acquirer: acquirer, transcoder: transcoder}
}

func (r *TierRunner) Attempt(ctx context.Context, tier domain.TierSpec,
	req domain.RequestContext) (domain.Candidate, error) {
	candidate, err := r.acquirer.Acquire(ctx, tier, req)
	if err != nil {
		return domain.Candidate{}, domain.AsRejection(tier.Name, err)
	}

	if tier.Kind != domain.LocalTranscode {
		return candidate, nil
	}

	if tier.Recipe == nil || r.transcoder == nil {
		return domain.Candidate{}, domain.Reject(domain.KindCodec, tier.Name, errors.New("tier has no transcoder"))
	}

	transcoded, err := r.transcoder.Transcode(ctx, candidate, *tier.Recipe)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return domain.Candidate{}, domain.Reject(domain.KindTimeout, tier.Name, err)
		}
		return domain.Candidate{}, domain.Reject(domain.KindCodec, tier.Name, fmt.Errorf("local transcode: %w", err))
	}

	final := Guard(candidate, transcoded)
	if final.Source() != domain.SourceLocalTranscode {
		log.Debug().
			Str("requestId", req.ID).
			Int("original", candidate.Size()).
			Int("transcoded", transcoded.Size()).
			Msg("transcode did not shrink image, keeping original")
	}

	return final, nil
}
