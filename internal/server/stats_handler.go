package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/sjson"

	"github.com/R0zhkov/wrf/internal/stats"
	"github.com/R0zhkov/wrf/internal/upstream"
)

// BusyRetryAfter is the Retry-After sent while a cold key is being fetched.
const BusyRetryAfter = 5 * time.Second

// StatsHandler serves GET /api/stats.
type StatsHandler struct {
	service *stats.Service
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(service *stats.Service) *StatsHandler {
	return &StatsHandler{service: service}
}

// ServeHTTP implements http.Handler.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	dateParam := r.URL.Query().Get("date")

	entry, err := h.service.Lookup(r.Context(), dateParam)
	if err != nil {
		h.writeLookupError(w, r, logger, err)
		return
	}

	body, err := RenderEntry(entry, h.service.Location())
	if err != nil {
		logger.Error().Err(err).Str("key", entry.Key).Msg("failed to render stats")
		WriteError(w, http.StatusInternalServerError, "failed to render stats")
		return
	}

	w.Header().Set("Cache-Control", fmt.Sprintf("s-maxage=%d, stale-while-revalidate=%d",
		seconds(h.service.TTL()), seconds(h.service.SWR())))
	writeRawJSON(w, http.StatusOK, body)
}

// RenderEntry builds the /api/stats body {counters..., date, updated_at},
// with updated_at in loc.
func RenderEntry(entry stats.Entry, loc *time.Location) ([]byte, error) {
	body, err := entry.Value.AppendJSON([]byte("{}"))
	if err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "date", entry.Key); err != nil {
		return nil, err
	}
	updated := entry.FetchedAt.In(loc).Format(time.RFC3339)
	return sjson.SetBytes(body, "updated_at", updated)
}

func (h *StatsHandler) writeLookupError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	switch {
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		logger.Debug().Msg("client went away before stats were ready")
		return
	case errors.Is(err, upstream.ErrBusy):
		w.Header().Set("Retry-After", strconv.Itoa(seconds(BusyRetryAfter)))
		WriteError(w, http.StatusServiceUnavailable, upstream.UserMessage(err))
		return
	case errors.Is(err, stats.ErrClosed):
		WriteError(w, http.StatusServiceUnavailable, "service is shutting down")
		return
	}

	// The cache already logged kind and snapshot when the fetch failed.
	kind, _ := upstream.KindOf(err)
	logger.Debug().Err(err).Str("kind", string(kind)).Msg("stats lookup failed")
	WriteError(w, http.StatusInternalServerError, upstream.UserMessage(err))
}

func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
