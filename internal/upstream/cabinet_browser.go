package upstream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
)

// hideAutomation masks the markers headless Chromium exposes to page scripts.
const hideAutomation = `Object.defineProperty(navigator, "webdriver", { get: () => undefined });
window.chrome = { runtime: {} };`

var (
	driverOnce sync.Once
	driverErr  error
)

// ensureDriver installs the playwright driver once per process. Browsers are
// downloaded too unless a local executable is configured.
func ensureDriver(skipBrowsers bool) error {
	driverOnce.Do(func() {
		driverErr = playwright.Install(&playwright.RunOptions{
			SkipInstallBrowsers: skipBrowsers,
			Verbose:             false,
		})
	})
	return driverErr
}

// browserCabinetPage drives headless Chromium so scripts on the dashboard
// run before the counters are read.
type browserCabinetPage struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
	stop    func() bool
	cfg     Config
}

func (c *cabinetClient) openBrowser(ctx context.Context) (page cabinetPage, err error) {
	p := &browserCabinetPage{cfg: c.cfg}
	defer func() {
		if err != nil {
			_ = p.Close()
		}
	}()

	if err = ensureDriver(c.cfg.BrowserPath != ""); err != nil {
		return nil, NewError(KindConfigMissing, "install browser driver", err)
	}
	if p.pw, err = playwright.Run(); err != nil {
		return nil, NewError(KindConfigMissing, "start browser driver", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(true)}
	if c.cfg.BrowserPath != "" {
		launch.ExecutablePath = playwright.String(c.cfg.BrowserPath)
	}
	if p.browser, err = p.pw.Chromium.Launch(launch); err != nil {
		return nil, NewError(KindConfigMissing, "launch browser", err)
	}
	// Playwright calls take no context; closing the browser aborts them.
	p.stop = context.AfterFunc(ctx, func() { _ = p.browser.Close() })

	if p.bctx, err = p.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(c.cfg.GetUserAgent()),
		Locale:    playwright.String("ru-RU"),
	}); err != nil {
		return nil, browserError(ctx, "open browser context", err)
	}
	if err = p.bctx.AddInitScript(playwright.Script{Content: playwright.String(hideAutomation)}); err != nil {
		return nil, browserError(ctx, "install init script", err)
	}
	if p.page, err = p.bctx.NewPage(); err != nil {
		return nil, browserError(ctx, "open page", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		p.page.SetDefaultTimeout(float64(time.Until(deadline).Milliseconds()))
	}

	if _, err = p.page.Goto(c.pageURL(), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, browserError(ctx, "open cabinet page", err)
	}
	return p, nil
}

func (p *browserCabinetPage) Snapshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(KindUnreachable, "cabinet page", err)
	}
	content, err := p.page.Content()
	if err != nil {
		return nil, browserError(ctx, "read cabinet page", err)
	}
	return []byte(content), nil
}

func (p *browserCabinetPage) SignIn(ctx context.Context, _ *goquery.Selection) error {
	if err := p.page.Locator("#login").Fill(p.cfg.Login); err != nil {
		return browserError(ctx, "fill login", err)
	}
	if err := p.page.Locator("#password").Fill(p.cfg.Password); err != nil {
		return browserError(ctx, "fill password", err)
	}
	if err := p.page.Locator(`button[type="submit"]`).First().Click(); err != nil {
		return browserError(ctx, "submit login", err)
	}
	if err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateDomcontentloaded,
	}); err != nil {
		return browserError(ctx, "wait for login", err)
	}
	return nil
}

// Close tears down the context, browser and driver, in that order, skipping
// whatever was never opened.
func (p *browserCabinetPage) Close() error {
	if p.stop != nil {
		p.stop()
	}
	var errs []error
	if p.bctx != nil {
		errs = append(errs, p.bctx.Close())
	}
	if p.browser != nil {
		errs = append(errs, p.browser.Close())
	}
	if p.pw != nil {
		errs = append(errs, p.pw.Stop())
	}
	return errors.Join(errs...)
}

// browserError reports a failed browser step. A context that ended first is
// the real cause.
func browserError(ctx context.Context, op string, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return NewError(KindUnreachable, op, ctxErr)
	}
	return NewError(KindUnreachable, op, err)
}
