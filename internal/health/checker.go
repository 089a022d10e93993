package health

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Probe is a cheap reachability check for one upstream.
type Probe interface {
	Check(ctx context.Context) error
	Name() string
}

// HTTPProbe requests the upstream base URL. Any answer below 500 counts as
// reachable, since dashboards usually answer the root with a login page or
// a redirect.
type HTTPProbe struct {
	client *resty.Client
	name   string
	url    string
}

// NewHTTPProbe creates a probe for url. A nil client gets a default one.
func NewHTTPProbe(name, url string, client *resty.Client) *HTTPProbe {
	if client == nil {
		client = resty.New().
			SetTimeout(DefaultProbeTimeoutMS * time.Millisecond).
			SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			}))
	}
	return &HTTPProbe{client: client, name: name, url: url}
}

// Check implements Probe.
func (p *HTTPProbe) Check(ctx context.Context) error {
	resp, err := p.client.R().SetContext(ctx).Get(p.url)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrProbeFailed, resp.StatusCode())
	}
	return nil
}

// Name implements Probe.
func (p *HTTPProbe) Name() string {
	return p.name
}

// Checker probes upstreams whose circuit is open and logs when they come back.
type Checker struct {
	ctx     context.Context
	clock   clockwork.Clock
	tracker *Tracker
	probes  map[string]Probe
	logger  *zerolog.Logger
	cancel  context.CancelFunc
	config  ProbeConfig
	wg      sync.WaitGroup
	mu      sync.RWMutex
}

// NewChecker creates a Checker. A nil clock uses the real clock.
func NewChecker(tracker *Tracker, cfg ProbeConfig, clock clockwork.Clock, logger *zerolog.Logger) *Checker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Checker{
		tracker: tracker,
		config:  cfg,
		clock:   clock,
		probes:  make(map[string]Probe),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a probe. Probes are keyed by name.
func (h *Checker) Register(p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[p.Name()] = p
}

// Start launches the probe loop. It is a no-op when probing is disabled.
func (h *Checker) Start() {
	if !h.config.IsEnabled() {
		if h.logger != nil {
			h.logger.Info().Msg("upstream probe disabled")
		}
		return
	}

	interval := h.config.GetInterval()
	jitter := cryptoRandDuration(2 * time.Second)
	ticker := h.clock.NewTicker(interval + jitter)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer ticker.Stop()

		if h.logger != nil {
			h.logger.Info().
				Dur("interval", interval).
				Dur("jitter", jitter).
				Msg("upstream probe started")
		}

		for {
			select {
			case <-h.ctx.Done():
				return
			case <-ticker.Chan():
				h.CheckOpen(h.ctx)
			}
		}
	}()
}

// Stop ends the probe loop and waits for it.
func (h *Checker) Stop() {
	h.cancel()
	h.wg.Wait()
}

// CheckOpen probes every upstream whose circuit is open and returns how many
// answered.
func (h *Checker) CheckOpen(ctx context.Context) int {
	h.mu.RLock()
	probes := make([]Probe, 0, len(h.probes))
	for _, p := range h.probes {
		probes = append(probes, p)
	}
	h.mu.RUnlock()

	recovered := 0
	for _, p := range probes {
		name := p.Name()
		if h.tracker.State(name) != StateOpen {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, h.config.GetTimeout())
		err := p.Check(probeCtx)
		cancel()

		if err != nil {
			if h.logger != nil {
				h.logger.Debug().Str("upstream", name).Err(err).Msg("upstream still unreachable")
			}
			continue
		}

		recovered++
		if h.logger != nil {
			h.logger.Info().Str("upstream", name).Msg("upstream answers again, circuit will half-open after cooldown")
		}
		h.tracker.Circuit(name).Report(nil)
	}
	return recovered
}

// cryptoRandDuration returns a random duration in [0, maxDur).
func cryptoRandDuration(maxDur time.Duration) time.Duration {
	if maxDur <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	n := binary.LittleEndian.Uint64(b[:])
	return time.Duration(n % uint64(maxDur)) //nolint:gosec // maxDur is positive
}
