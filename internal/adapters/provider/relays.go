package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"
	"strconv"
	"strings"
)

const (
	WsrvName       = "wsrv"
	StaticallyName = "statically"
	PhotonName     = "photon"

	DefaultWsrvURL       = "https://wsrv.nl/"
	DefaultStaticallyURL = "https://cdn.statically.io/img/"
	DefaultPhotonURL     = "https://i0.wp.com/"
)

var errQueryNotSupported = errors.New("relay can't proxy urls with a query string")

// Wsrv relays through wsrv.nl, which takes the whole target as the url parameter.
type Wsrv struct {
	base string
}

func NewWsrv(base string) *Wsrv {
	return &Wsrv{base: orDefault(base, DefaultWsrvURL)}
}

func (w *Wsrv) Name() string { return WsrvName }

func (w *Wsrv) BuildRequest(ctx context.Context, target string, params domain.RelayParams) (*http.Request, error) {
	if _, err := parseTarget(target); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("url", target)
	setInt(q, "w", params.Width)
	if params.Format != "" {
		q.Set("output", string(params.Format))
	}
	setInt(q, "q", params.Quality)

	return http.NewRequestWithContext(ctx, http.MethodGet, w.base+"?"+q.Encode(), nil)
}

// Statically relays through cdn.statically.io, which expects host and path of the target in its own path.
type Statically struct {
	base string
}

func NewStatically(base string) *Statically {
	return &Statically{base: withSlash(orDefault(base, DefaultStaticallyURL))}
}

func (s *Statically) Name() string { return StaticallyName }

func (s *Statically) BuildRequest(ctx context.Context, target string,
	params domain.RelayParams) (*http.Request, error) {
	u, err := parseTarget(target)
	if err != nil {
		return nil, err
	}
	if u.RawQuery != "" {
		return nil, errQueryNotSupported
	}

	q := url.Values{}
	setInt(q, "w", params.Width)
	if params.Format != "" {
		q.Set("f", string(params.Format))
	}
	setInt(q, "q", params.Quality)

	return http.NewRequestWithContext(ctx, http.MethodGet, s.base+hostPath(u)+encodeQuery(q), nil)
}

// Photon relays through the WordPress image CDN. It does not convert formats; https origins need ssl=1.
type Photon struct {
	base string
}

func NewPhoton(base string) *Photon {
	return &Photon{base: withSlash(orDefault(base, DefaultPhotonURL))}
}

func (p *Photon) Name() string { return PhotonName }

func (p *Photon) BuildRequest(ctx context.Context, target string, params domain.RelayParams) (*http.Request, error) {
	u, err := parseTarget(target)
	if err != nil {
		return nil, err
	}
	if u.RawQuery != "" {
		return nil, errQueryNotSupported
	}

	q := url.Values{}
	setInt(q, "w", params.Width)
	setInt(q, "quality", params.Quality)
	q.Set("strip", "all")
	if u.Scheme == "https" {
		q.Set("ssl", "1")
	}

	return http.NewRequestWithContext(ctx, http.MethodGet, p.base+hostPath(u)+encodeQuery(q), nil)
}

// RegisterDefaults adds the direct provider and every known relay to registry. endpoints may override
// relay base URLs by name.
func RegisterDefaults(registry port.ProviderRegistry, endpoints map[string]string, headers HeaderFunc) {
	registry.Register(NewDirect(headers))
	registry.Register(NewWsrv(endpoints[WsrvName]))
	registry.Register(NewStatically(endpoints[StaticallyName]))
	registry.Register(NewPhoton(endpoints[PhotonName]))
}

func hostPath(u *url.URL) string {
	return u.Host + u.EscapedPath()
}

func encodeQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}

	return "?" + q.Encode()
}

func setInt(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}

func withSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return base
	}

	return base + "/"
}
