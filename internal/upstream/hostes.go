package upstream

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	hostesLoginPath  = "/api/auth/login"
	hostesFilterPath = "/api/internal/v2/booking/filter"
)

// hostesClient reads the guest count from the hostes booking filter API.
type hostesClient struct {
	*httpBase
}

// Fetch implements Client.
func (h *hostesClient) Fetch(ctx context.Context, q Query) (result Counters, err error) {
	if err = h.requireCredentials(); err != nil {
		return Counters{}, err
	}

	ctx, span := h.startSpan(ctx, q)
	defer func() { endSpan(span, err) }()

	client, release, err := h.newSession()
	if err != nil {
		return Counters{}, err
	}
	defer release()

	token, reused := h.cachedSession(ctx, h.sessionKey())
	if !reused {
		if token, err = h.login(ctx, client); err != nil {
			return Counters{}, err
		}
	}

	body, err := h.filterBody(q)
	if err != nil {
		return Counters{}, NewError(KindParseFailed, "build filter request", err)
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Origin", h.origin()).
		SetHeader("Referer", h.origin()+"/dashboard").
		SetHeader("authorization", token).
		SetBody(body).
		Post(hostesFilterPath)
	if err = checkResponse("booking filter", resp, err); err != nil {
		if kind, _ := KindOf(err); kind == KindAuthFailed {
			h.forgetSession(ctx, h.sessionKey())
		}
		return Counters{}, err
	}

	result, err = parseHostesGuests(resp.Body())
	if err != nil {
		return Counters{}, err
	}
	if !reused {
		h.storeSession(ctx, h.sessionKey(), token)
	}

	h.log.Debug().
		Str("date", q.DateString()).
		Int("waiting", result.Waiting).
		Bool("session_reused", reused).
		Msg("hostes fetch succeeded")
	return result, nil
}

// login exchanges credentials for an access token.
func (h *hostesClient) login(ctx context.Context, client *resty.Client) (string, error) {
	body := []byte(`{}`)
	var err error
	for _, kv := range [][2]string{
		{"locale", h.cfg.GetLocale()},
		{"tenant", h.cfg.GetTenant()},
		{"login", h.cfg.Login},
		{"password", h.cfg.Password},
	} {
		if body, err = sjson.SetBytes(body, kv[0], kv[1]); err != nil {
			return "", NewError(KindParseFailed, "build login request", err)
		}
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Origin", h.origin()).
		SetHeader("Referer", h.origin()+"/login?redirectTo=/").
		SetBody(body).
		Post(hostesLoginPath)
	if err != nil {
		return "", classifyTransport("login", err)
	}
	if status := resp.StatusCode(); status >= 400 && status < 500 {
		return "", NewError(KindAuthFailed, "login rejected", nil).WithSnapshot(resp.Body())
	}
	if err := checkResponse("login", resp, nil); err != nil {
		return "", err
	}

	token := gjson.GetBytes(resp.Body(), "data.access_token").String()
	if token == "" {
		return "", NewError(KindAuthFailed, "login response has no access token", nil).WithSnapshot(resp.Body())
	}
	return token, nil
}

// filterBody builds the booking filter request for a single day.
func (h *hostesClient) filterBody(q Query) ([]byte, error) {
	date := q.DateString()
	body := []byte(`{"search_keyword":"","management_tables":true}`)

	steps := []struct {
		value any
		path  string
	}{
		{path: "restaurant_id", value: h.cfg.GetRestaurantID()},
		{path: "from", value: date},
		{path: "to", value: date},
		{path: "sort", value: []map[string]string{
			{"param": "date", "direction": "ASC"},
			{"param": "time", "direction": "ASC"},
		}},
		{path: "statuses", value: h.cfg.GetStatuses()},
		{path: "places", value: h.cfg.GetPlaces()},
	}

	var err error
	for _, step := range steps {
		if body, err = sjson.SetBytes(body, step.path, step.value); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// parseHostesGuests reads data.statistics.all.guests, falling back to the
// sum of data.slots[].visitors.
func parseHostesGuests(body []byte) (Counters, error) {
	if !gjson.ValidBytes(body) {
		return Counters{}, NewError(KindParseFailed, "booking filter returned invalid JSON", nil).WithSnapshot(body)
	}

	if guests := gjson.GetBytes(body, "data.statistics.all.guests"); guests.Exists() && guests.Type == gjson.Number {
		c := Counters{Waiting: int(guests.Int())}
		return c, c.Validate()
	}

	slots := gjson.GetBytes(body, "data.slots")
	if !slots.IsArray() {
		return Counters{}, NewError(KindParseFailed, "booking filter response has neither statistics nor slots", nil).
			WithSnapshot(body)
	}

	sum := 0
	slots.ForEach(func(_, slot gjson.Result) bool {
		sum += int(slot.Get("visitors").Int())
		return true
	})
	c := Counters{Waiting: sum}
	return c, c.Validate()
}
