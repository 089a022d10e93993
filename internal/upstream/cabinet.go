package upstream

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/samber/mo"
	"golang.org/x/net/html"
)

var (
	pairPattern   = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	nonDigitChars = regexp.MustCompile(`\D+`)
)

// cabinetPage is one open view of the dashboard, owned by a single attempt.
type cabinetPage interface {
	// Snapshot returns the markup as currently rendered. The plain HTTP view
	// reloads the page; the browser view reads the live DOM.
	Snapshot(ctx context.Context) ([]byte, error)

	// SignIn submits the login form found on the page.
	SignIn(ctx context.Context, form *goquery.Selection) error

	// Close releases the view. It is called on every exit path.
	Close() error
}

// cabinetClient scrapes today's counters from the cabinet dashboard page.
// The page only shows the current day, so the query date is ignored.
type cabinetClient struct {
	*httpBase
	open func(ctx context.Context) (cabinetPage, error)
}

func newCabinetClient(base *httpBase) *cabinetClient {
	c := &cabinetClient{httpBase: base}
	if base.cfg.GetRender() == RenderBrowser {
		c.open = c.openBrowser
	} else {
		c.open = c.openHTTP
	}
	return c
}

func (c *cabinetClient) pagePath() string {
	return "/" + c.cfg.GetPointID()
}

func (c *cabinetClient) pageURL() string {
	return strings.TrimRight(c.baseURL.String(), "/") + c.pagePath()
}

// Fetch implements Client.
func (c *cabinetClient) Fetch(ctx context.Context, q Query) (result Counters, err error) {
	if err = c.requireCredentials(); err != nil {
		return Counters{}, err
	}

	ctx, span := c.startSpan(ctx, q)
	defer func() { endSpan(span, err) }()

	page, err := c.open(ctx)
	if err != nil {
		return Counters{}, err
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			c.log.Debug().Err(closeErr).Msg("failed to close cabinet page")
		}
	}()

	doc, body, err := snapshot(ctx, page)
	if err != nil {
		return Counters{}, err
	}

	if form := loginForm(doc); form != nil {
		c.log.Debug().Msg("login form present, signing in")
		if err = page.SignIn(ctx, form); err != nil {
			return Counters{}, err
		}
		if doc, body, err = snapshot(ctx, page); err != nil {
			return Counters{}, err
		}
		if loginForm(doc) != nil {
			return Counters{}, NewError(KindAuthFailed, "login form still shown after sign in", nil).WithSnapshot(body)
		}
	}

	return c.awaitCounters(ctx, page, doc, body)
}

// awaitCounters re-reads the page until the counter pair shows up or the
// ready timeout passes. The dashboard fills the block in after load.
func (c *cabinetClient) awaitCounters(
	ctx context.Context, page cabinetPage, doc *goquery.Document, body []byte,
) (Counters, error) {
	deadline := time.Now().Add(c.cfg.GetReadyTimeout())
	poll := c.cfg.GetReadyPoll()

	for {
		result, err := scrapeCounters(doc, c.cfg.GetCounterSelectors(), c.cfg.GetTotalSelectors())
		if err == nil {
			return result, nil
		}
		var upErr *Error
		if !errors.As(err, &upErr) || upErr.Kind != KindParseFailed || time.Now().Add(poll).After(deadline) {
			if upErr != nil {
				upErr.WithSnapshot(body)
			}
			return Counters{}, err
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Counters{}, NewError(KindUnreachable, "counters did not appear before the attempt ended", ctx.Err()).
				WithSnapshot(body)
		case <-timer.C:
		}

		if doc, body, err = snapshot(ctx, page); err != nil {
			return Counters{}, err
		}
	}
}

func snapshot(ctx context.Context, page cabinetPage) (*goquery.Document, []byte, error) {
	body, err := page.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, NewError(KindParseFailed, "cabinet page is not HTML", err).WithSnapshot(body)
	}
	return doc, body, nil
}

// loginForm returns the form holding the #login input, if the page shows one.
func loginForm(doc *goquery.Document) *goquery.Selection {
	input := doc.Find("#login")
	if input.Length() == 0 || doc.Find("#password").Length() == 0 {
		return nil
	}
	form := input.Closest("form")
	if form.Length() == 0 {
		return input.Parent()
	}
	return form
}

// httpCabinetPage loads the dashboard with plain requests. It sees only
// server-rendered markup.
type httpCabinetPage struct {
	client  *resty.Client
	release func()
	cfg     Config
	path    string
	referer string
}

func (c *cabinetClient) openHTTP(_ context.Context) (cabinetPage, error) {
	client, release, err := c.newSession()
	if err != nil {
		return nil, err
	}
	return &httpCabinetPage{
		client:  client,
		release: release,
		cfg:     c.cfg,
		path:    c.pagePath(),
		referer: c.pageURL(),
	}, nil
}

func (p *httpCabinetPage) Snapshot(ctx context.Context) ([]byte, error) {
	resp, err := p.client.R().SetContext(ctx).Get(p.path)
	if err = checkResponse("cabinet page", resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (p *httpCabinetPage) SignIn(ctx context.Context, form *goquery.Selection) error {
	fields := map[string]string{}
	form.Find("input[type=hidden]").Each(func(_ int, s *goquery.Selection) {
		if name, ok := s.Attr("name"); ok {
			fields[name] = s.AttrOr("value", "")
		}
	})
	fields[form.Find("#login").AttrOr("name", "login")] = p.cfg.Login
	fields[form.Find("#password").AttrOr("name", "password")] = p.cfg.Password

	action := form.AttrOr("action", "")
	if action == "" {
		action = p.path + "/jlogin"
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Referer", p.referer).
		SetFormData(fields).
		Post(action)
	if err != nil {
		return classifyTransport("login", err)
	}
	if status := resp.StatusCode(); status >= 400 && status < 500 {
		return NewError(KindAuthFailed, "login rejected", nil).WithSnapshot(resp.Body())
	}
	return checkResponse("login", resp, nil)
}

func (p *httpCabinetPage) Close() error {
	p.release()
	return nil
}

// scrapeCounters tries each selector in order and uses the first block that
// yields an "inside / waiting" pair. Total is read inside that block and
// falls back to inside + waiting.
func scrapeCounters(doc *goquery.Document, counterSelectors, totalSelectors []string) (Counters, error) {
	var (
		block           *goquery.Selection
		inside, waiting int
	)
	for _, sel := range counterSelectors {
		candidate := doc.Find(sel).First()
		if candidate.Length() == 0 {
			continue
		}
		match := pairPattern.FindStringSubmatch(firstTextNode(candidate))
		if match == nil {
			continue
		}
		inside, _ = strconv.Atoi(match[1])
		waiting, _ = strconv.Atoi(match[2])
		block = candidate
		break
	}
	if block == nil {
		return Counters{}, NewError(KindParseFailed, `"inside / waiting" counters not found on page`, nil)
	}

	total := inside + waiting
	for _, sel := range totalSelectors {
		if n, ok := digitsOf(block.Find(sel).First().Text()); ok {
			total = n
			break
		}
	}

	result := Counters{
		Inside:  mo.Some(inside),
		Waiting: waiting,
		Total:   mo.Some(total),
	}
	return result, result.Validate()
}

// digitsOf joins every digit in text, so "Всего: 1 234" reads as 1234.
func digitsOf(text string) (int, bool) {
	digits := nonDigitChars.ReplaceAllString(text, "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// firstTextNode returns the first non-blank text node directly under the
// selection, ignoring text nested in child elements.
func firstTextNode(sel *goquery.Selection) string {
	for _, node := range sel.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.TextNode {
				continue
			}
			if text := strings.TrimSpace(child.Data); text != "" {
				return text
			}
		}
	}
	return ""
}
