package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const cacheForever = "public, max-age=31536000, immutable"

var targetPattern = regexp.MustCompile(`(?i)https?://.*`)

// HTTP serves the compression endpoint. Every request gets one orchestrator run with a fresh budget.
type HTTP struct {
	orchestrator port.Orchestrator
	budget       time.Duration
	codec        string
}

func NewHTTP(orchestrator port.Orchestrator, budget time.Duration, codec string) *HTTP {
	return &HTTP{orchestrator: orchestrator, budget: budget, codec: codec}
}

func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request handled")
	}))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.UserAgentHandler("userAgent"))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Get("/", h.Compress)
	r.Get("/api/compress", h.Compress)

	return r
}

// ExtractTarget unescapes the raw url parameter and keeps everything from the first http(s) scheme on,
// so that targets wrapped in other text or double encoded still resolve.
func ExtractTarget(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", domain.ErrMissingURL
	}

	// PathUnescape leaves "+" alone, it is a literal in image paths and signatures
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}

	target := strings.TrimSpace(targetPattern.FindString(raw))
	if target == "" {
		return "", domain.ErrMalformedURL
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "", domain.ErrMalformedURL
	}

	return target, nil
}

func (h *HTTP) Compress(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	target, err := ExtractTarget(query.Get("url"))
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Str("url", query.Get("url")).Msg("rejected request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	debug, _ := strconv.ParseBool(query.Get("debug"))
	req := domain.NewRequestContext(target, h.budget, debug)
	w.Header().Set("X-Request-Id", req.ID)

	res := h.orchestrator.Run(r.Context(), req)
	if res.Exhausted() {
		hlog.FromRequest(r).Warn().Str("requestId", req.ID).Err(res.Err()).Msg("redirecting to origin")
		// Location is set by hand since http.Redirect would escape the target
		w.Header().Set("Location", res.RedirectURL)
		w.WriteHeader(http.StatusFound)
		return
	}

	winner := res.Winner
	w.Header().Set("Cache-Control", cacheForever)
	w.Header().Set("X-Compressed-Size", strconv.Itoa(winner.Size()))
	w.Header().Set("X-Processor", processor(*winner))

	if debug {
		writeJSON(w, http.StatusOK, newDebugResponse(res))
		return
	}

	w.Header().Set("Content-Type", winner.MIMEType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(winner.Bytes()); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("client went away")
	}
}

func processor(c domain.Candidate) string {
	if c.Source() == domain.SourceLocalTranscode {
		return string(c.Source()) + " (Local)"
	}

	return string(c.Source()) + " (Passthrough)"
}

func (h *HTTP) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "codec": h.codec})
}

type errorResponse struct {
	Error string `json:"error"`
}

type attemptResponse struct {
	Stage     string `json:"stage"`
	Tier      string `json:"tier"`
	Accepted  bool   `json:"accepted"`
	Size      int    `json:"size,omitempty"`
	Rejection string `json:"rejection,omitempty"`
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Millis    int64  `json:"ms"`
}

type debugResponse struct {
	Source   string            `json:"source"`
	Status   string            `json:"status"`
	Format   string            `json:"format"`
	Size     int               `json:"size"`
	Attempts []attemptResponse `json:"attempts"`
}

func newDebugResponse(res domain.OrchestrationResult) debugResponse {
	status := "Direct Relay (No CPU used)"
	if res.Winner.Source() == domain.SourceLocalTranscode {
		status = "Processed Locally"
	}

	out := debugResponse{
		Source:   string(res.Winner.Source()),
		Status:   status,
		Format:   res.Winner.MIMEType(),
		Size:     res.Winner.Size(),
		Attempts: make([]attemptResponse, 0, len(res.Attempts)),
	}

	for _, a := range res.Attempts {
		ar := attemptResponse{
			Stage:    a.Stage,
			Tier:     a.Tier,
			Accepted: a.Accepted,
			Size:     a.Size,
			Millis:   a.Duration.Milliseconds(),
		}
		if a.Rejection != nil {
			ar.Rejection = string(a.Rejection.Kind)
			ar.Status = a.Rejection.Status
			if a.Rejection.Err != nil {
				ar.Error = a.Rejection.Err.Error()
			}
		}
		out.Attempts = append(out.Attempts, ar)
	}

	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Debug().Err(err).Msg("could not write json response")
	}
}
