// Package upstream performs single attempts against the reservation dashboard.
//
// A Client logs in, requests the counters and parses them. It never retries:
// retries, timeouts per attempt and caching are layered on top by the caller.
// Each Fetch builds its own HTTP client and releases it on every exit path,
// so concurrent fetches never share cookies or connections.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Client fetches counters from one upstream variant.
type Client interface {
	// Fetch performs one attempt. Errors are always *Error.
	Fetch(ctx context.Context, q Query) (Counters, error)

	// Name identifies the variant in logs, metrics and circuit breakers.
	Name() string
}

// SessionCache stores login tokens and cookies between attempts.
// Any error from Get is treated as a miss.
type SessionCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// New builds the Client for cfg.Kind.
// sessions may be nil, in which case every attempt logs in again.
func New(cfg Config, sessions SessionCache, logger *zerolog.Logger) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := newHTTPBase(cfg, sessions, logger)
	if err != nil {
		return nil, err
	}

	switch cfg.GetKind() {
	case VariantHostes:
		return &hostesClient{httpBase: base}, nil
	case VariantClientomerAPI:
		return &clientomerClient{httpBase: base}, nil
	case VariantClientomerCabinet:
		return newCabinetClient(base), nil
	default:
		return nil, fmt.Errorf("upstream: unknown kind %q", cfg.Kind)
	}
}

var tracer = otel.Tracer("github.com/R0zhkov/wrf/internal/upstream")

// httpBase holds what every variant shares: config, outbound pacing and sessions.
type httpBase struct {
	sessions SessionCache
	limiter  *rate.Limiter
	log      zerolog.Logger
	baseURL  *url.URL
	cfg      Config
}

func newHTTPBase(cfg Config, sessions SessionCache, logger *zerolog.Logger) (*httpBase, error) {
	baseURL, err := url.Parse(cfg.GetBaseURL())
	if err != nil {
		return nil, fmt.Errorf("upstream: invalid base_url: %w", err)
	}

	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}

	limit := cfg.GetRateLimit()
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}

	return &httpBase{
		cfg:      cfg,
		baseURL:  baseURL,
		sessions: sessions,
		limiter:  rate.NewLimiter(rate.Limit(limit), burst),
		log:      log.With().Str("component", "upstream").Str("kind", string(cfg.GetKind())).Logger(),
	}, nil
}

// Name implements Client.
func (b *httpBase) Name() string {
	return string(b.cfg.GetKind())
}

// newSession creates a fresh HTTP client for one attempt.
// The returned release func must be called on every exit path.
func (b *httpBase) newSession() (*resty.Client, func(), error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, nil, NewError(KindUnreachable, "create cookie jar", err)
	}

	client := resty.New()
	client.SetBaseURL(b.baseURL.String())
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", b.cfg.GetUserAgent())
	client.SetHeader("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(b.baseURL.Hostname()))
	client.SetTimeout(b.cfg.GetAttemptTimeout())
	if b.cfg.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return b.limiter.Wait(req.Context())
	})

	release := func() {
		client.GetClient().CloseIdleConnections()
	}
	return client, release, nil
}

// origin returns the base URL as scheme://host, the form browsers send in
// Origin headers.
func (b *httpBase) origin() string {
	return b.baseURL.Scheme + "://" + b.baseURL.Host
}

// requireCredentials fails fast before any network call.
func (b *httpBase) requireCredentials() error {
	if !b.cfg.HasCredentials() {
		return NewError(KindConfigMissing, "missing credentials", nil)
	}
	return nil
}

// startSpan opens a tracing span for one attempt.
func (b *httpBase) startSpan(ctx context.Context, q Query) (context.Context, trace.Span) {
	return tracer.Start(ctx, "upstream.fetch", trace.WithAttributes(
		attribute.String("upstream.kind", b.Name()),
		attribute.String("upstream.date", q.DateString()),
	))
}

// endSpan records the attempt outcome on span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// checkResponse maps transport errors and HTTP status codes onto failure kinds.
func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return classifyTransport(op, err)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(KindAuthFailed, fmt.Sprintf("%s: status %d", op, status), nil).WithSnapshot(resp.Body())
	case status >= http.StatusInternalServerError:
		return NewError(KindUnreachable, fmt.Sprintf("%s: status %d", op, status), nil).WithSnapshot(resp.Body())
	case status < 200 || status >= 300:
		return NewError(KindParseFailed, fmt.Sprintf("%s: unexpected status %d", op, status), nil).
			WithSnapshot(resp.Body())
	}
	return nil
}

// cachedSession returns a stored token or cookie for key.
func (b *httpBase) cachedSession(ctx context.Context, key string) (string, bool) {
	if b.sessions == nil {
		return "", false
	}
	data, err := b.sessions.Get(ctx, key)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (b *httpBase) storeSession(ctx context.Context, key, value string) {
	if b.sessions == nil {
		return
	}
	if err := b.sessions.SetWithTTL(ctx, key, []byte(value), b.cfg.GetSessionTTL()); err != nil {
		b.log.Debug().Err(err).Msg("failed to cache session")
	}
}

func (b *httpBase) forgetSession(ctx context.Context, key string) {
	if b.sessions == nil {
		return
	}
	if err := b.sessions.Delete(ctx, key); err != nil {
		b.log.Debug().Err(err).Msg("failed to drop session")
	}
}

// sessionKey scopes cached sessions by variant and login.
func (b *httpBase) sessionKey() string {
	return "session:" + b.Name() + ":" + b.cfg.Login
}
