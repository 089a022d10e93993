package upstream

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/tidwall/gjson"
)

// clientomerClient sums guests over the cabinet reserves endpoint.
type clientomerClient struct {
	*httpBase
}

func (c *clientomerClient) pointPath(suffix string) string {
	return "/" + c.cfg.GetPointID() + "/" + suffix
}

func (c *clientomerClient) referer() string {
	return strings.TrimRight(c.baseURL.String(), "/") + c.pointPath("")
}

// Fetch implements Client.
func (c *clientomerClient) Fetch(ctx context.Context, q Query) (result Counters, err error) {
	if err = c.requireCredentials(); err != nil {
		return Counters{}, err
	}

	ctx, span := c.startSpan(ctx, q)
	defer func() { endSpan(span, err) }()

	client, release, err := c.newSession()
	if err != nil {
		return Counters{}, err
	}
	defer release()

	cookie, reused := c.cachedSession(ctx, c.sessionKey())
	if !reused {
		if cookie, err = c.login(ctx, client); err != nil {
			return Counters{}, err
		}
	}

	req := client.R().
		SetContext(ctx).
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetHeader("Referer", c.referer()).
		SetQueryParam("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if reused {
		req.SetHeader("Cookie", cookie)
	}

	resp, err := req.Post(c.pointPath("reserves.api.guestsreserves"))
	if err = checkResponse("guest reserves", resp, err); err != nil {
		if kind, _ := KindOf(err); kind == KindAuthFailed {
			c.forgetSession(ctx, c.sessionKey())
		}
		return Counters{}, err
	}

	body := resp.Body()
	if status := gjson.GetBytes(body, "status").String(); status != "success" {
		// An expired cookie comes back as a non-success envelope rather than a 401.
		if reused {
			c.forgetSession(ctx, c.sessionKey())
			return Counters{}, NewError(KindAuthFailed, "reserves API rejected cached session", nil).WithSnapshot(body)
		}
		return Counters{}, NewError(KindParseFailed, "reserves API returned status "+strconv.Quote(status), nil).
			WithSnapshot(body)
	}

	result, err = summarizeReserves(body, q.DateString(), c.cfg.GetStatuses())
	if err != nil {
		return Counters{}, err
	}
	if !reused {
		c.storeSession(ctx, c.sessionKey(), cookie)
	}
	return result, nil
}

// login posts the cabinet login form and returns the session cookie.
func (c *clientomerClient) login(ctx context.Context, client *resty.Client) (string, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Referer", c.referer()).
		SetFormData(map[string]string{
			"login":    c.cfg.Login,
			"password": c.cfg.Password,
			"point":    c.cfg.GetPointID(),
		}).
		Post(c.pointPath("jlogin"))
	if err != nil {
		return "", classifyTransport("login", err)
	}
	if status := resp.StatusCode(); status >= 400 && status < 500 {
		return "", NewError(KindAuthFailed, "login rejected", nil).WithSnapshot(resp.Body())
	}
	if err := checkResponse("login", resp, nil); err != nil {
		return "", err
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return "", NewError(KindAuthFailed, "login returned no session cookie", nil).WithSnapshot(resp.Body())
	}
	return cookies[0].Name + "=" + cookies[0].Value, nil
}

// summarizeReserves counts guests of matching reserves on date.
func summarizeReserves(body []byte, date string, statuses []string) (Counters, error) {
	reserves := gjson.GetBytes(body, "data.reserves")
	if reserves.Exists() && !reserves.IsArray() {
		return Counters{}, NewError(KindParseFailed, "data.reserves is not a list", nil).WithSnapshot(body)
	}

	var guests, matched, mid, large int
	reserves.ForEach(func(_, r gjson.Result) bool {
		day, _, _ := strings.Cut(r.Get("estimated_time").String(), "T")
		if day != date || !lo.Contains(statuses, r.Get("inner_status").String()) {
			return true
		}
		n := int(r.Get("guests_count").Int())
		guests += n
		matched++
		switch {
		case n >= 8:
			large++
		case n >= 5:
			mid++
		}
		return true
	})

	result := Counters{
		Waiting:       guests,
		Total:         mo.Some(matched),
		Bookings5to7:  mo.Some(mid),
		Bookings8Plus: mo.Some(large),
	}
	return result, result.Validate()
}
