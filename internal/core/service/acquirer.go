package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// DefaultMaxBodyBytes bounds upstream bodies when no explicit maximum is configured.
const DefaultMaxBodyBytes = 30 * 1024 * 1024

// SizeBounds limits accepted upstream bodies. Min rejects placeholder stubs, Max bounds memory use.
type SizeBounds struct {
	Min int64
	Max int64
}

// HTTPAcquirer executes a provider's request and validates the response into a candidate.
type HTTPAcquirer struct {
	client    *http.Client
	providers port.ProviderRegistry
	bounds    SizeBounds
}

func NewHTTPAcquirer(client *http.Client, providers port.ProviderRegistry, bounds SizeBounds) *HTTPAcquirer {
	if client == nil {
		client = &http.Client{}
	}
	if bounds.Max <= 0 {
		bounds.Max = DefaultMaxBodyBytes
	}

	return &HTTPAcquirer{client: client, providers: providers, bounds: bounds}
}

func (a *HTTPAcquirer) Acquire(ctx context.Context, tier domain.TierSpec,
	req domain.RequestContext) (domain.Candidate, error) {
	l := log.With().
		Str("requestId", req.ID).
		Str("tier", tier.Name).
		Str("provider", tier.Provider).
		Logger()

	if err := ctx.Err(); err != nil {
		return domain.Candidate{}, domain.Reject(domain.KindTimeout, tier.Name, err)
	}

	provider, err := a.providers.Get(tier.Provider)
	if err != nil {
		return domain.Candidate{}, domain.Reject(domain.KindRequest, tier.Name, err)
	}

	httpReq, err := provider.BuildRequest(ctx, req.TargetURL, tier.Params)
	if err != nil {
		return domain.Candidate{}, domain.Reject(domain.KindRequest, tier.Name,
			fmt.Errorf("error creating request: %w", err))
	}

	l.Debug().Str("url", httpReq.URL.String()).Msg("requesting upstream")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return domain.Candidate{}, classifyIOError(ctx, tier.Name, fmt.Errorf("error executing request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		l.Debug().Int("status", res.StatusCode).Msg("upstream returned error status")
		return domain.Candidate{}, domain.RejectStatus(tier.Name, res.StatusCode)
	}

	declared := res.Header.Get("Content-Type")
	if err := checkDeclaredType(declared); err != nil {
		return domain.Candidate{}, domain.Reject(domain.KindInvalidContentType, tier.Name, err)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, a.bounds.Max+1))
	if err != nil {
		return domain.Candidate{}, classifyIOError(ctx, tier.Name, fmt.Errorf("error reading response: %w", err))
	}

	size := int64(len(body))
	if size > a.bounds.Max {
		return domain.Candidate{}, domain.Reject(domain.KindSizeOutOfBounds, tier.Name,
			fmt.Errorf("body exceeds %d bytes", a.bounds.Max))
	}
	if size < a.bounds.Min {
		return domain.Candidate{}, domain.Reject(domain.KindSizeOutOfBounds, tier.Name,
			fmt.Errorf("body of %d bytes is below minimum of %d", size, a.bounds.Min))
	}

	mimeType, err := resolveImageType(declared, body)
	if err != nil {
		return domain.Candidate{}, domain.Reject(domain.KindInvalidContentType, tier.Name, err)
	}

	l.Debug().Int64("bytes", size).Str("mimeType", mimeType).Msg("upstream candidate acquired")

	return domain.NewCandidate(body, mimeType, sourceOf(tier)), nil
}

func sourceOf(tier domain.TierSpec) domain.SourceTag {
	if tier.Kind == domain.RelayProxy {
		return domain.RelaySource(tier.Provider)
	}

	return domain.SourceDirectOrigin
}

// classifyIOError separates cancellation and deadline expiry from genuine transport failures.
func classifyIOError(ctx context.Context, tier string, err error) *domain.Rejection {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.Reject(domain.KindTimeout, tier, err)
	}

	return domain.Reject(domain.KindTransport, tier, err)
}

func isOpaqueType(mediaType string) bool {
	return mediaType == "" || mediaType == "application/octet-stream" || mediaType == "binary/octet-stream"
}

// checkDeclaredType fails early for responses that announce themselves as something other than an image.
func checkDeclaredType(declared string) error {
	if declared == "" {
		return nil
	}

	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return fmt.Errorf("unparsable content type %q: %w", declared, err)
	}

	if isOpaqueType(mediaType) || strings.HasPrefix(mediaType, "image/") {
		return nil
	}

	return fmt.Errorf("content type %s is not an image", mediaType)
}

// resolveImageType returns the MIME type the candidate is tagged with. Opaque declarations are replaced
// by the sniffed type, declared image types are kept unless the body is text.
func resolveImageType(declared string, body []byte) (string, error) {
	sniffed := mimetype.Detect(body)

	mediaType := ""
	if declared != "" {
		mediaType, _, _ = mime.ParseMediaType(declared)
	}

	if isOpaqueType(mediaType) {
		if strings.HasPrefix(sniffed.String(), "image/") {
			return sniffed.String(), nil
		}
		return "", fmt.Errorf("undeclared body sniffed as %s", sniffed.String())
	}

	if isTextual(sniffed) {
		return "", fmt.Errorf("declared %s but body is %s", mediaType, sniffed.String())
	}

	return mediaType, nil
}

// isTextual reports whether m belongs to the text/plain family (html, xml, json, plain text...),
// except for text based image formats like svg.
func isTextual(m *mimetype.MIME) bool {
	if strings.HasPrefix(m.String(), "image/") {
		return false
	}

	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}

	return false
}
