package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"pixrelay/internal/core/domain"
)

// HeaderFunc returns the headers sent to the origin of target.
type HeaderFunc func(target *url.URL) http.Header

// Direct fetches the target URL itself. Redirects are followed by the HTTP client.
type Direct struct {
	headers HeaderFunc
}

func NewDirect(headers HeaderFunc) *Direct {
	if headers == nil {
		headers = BrowserHeaders
	}

	return &Direct{headers: headers}
}

func (d *Direct) Name() string {
	return domain.DirectProvider
}

func (d *Direct) BuildRequest(ctx context.Context, target string, _ domain.RelayParams) (*http.Request, error) {
	u, err := parseTarget(target)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	for k, v := range d.headers(u) {
		req.Header[k] = v
	}

	return req, nil
}

const mobileChrome = "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/124.0.0.0 Mobile Safari/537.36"

// BrowserHeaders mimics a mobile browser loading the image from the target's own site.
func BrowserHeaders(target *url.URL) http.Header {
	h := http.Header{}
	h.Set("User-Agent", mobileChrome)
	h.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	if target != nil && target.Host != "" {
		h.Set("Referer", target.Scheme+"://"+target.Host)
	}

	return h
}

func parseTarget(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedURL, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedURL, target)
	}

	return u, nil
}
