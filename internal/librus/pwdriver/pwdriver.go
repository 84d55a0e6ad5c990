// Package pwdriver runs the session in a chromium page controlled by
// playwright.
package pwdriver

import (
	"context"
	"fmt"
	"librus-probe/internal/components/assert"
	"librus-probe/internal/components/telemetry"
	"librus-probe/internal/librus"
	"librus-probe/lib/htmlutil"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	report_pw_screenshot = "pw.screenshot"
	report_pw_trace      = "pw.trace"
	report_pw_cookies    = "pw.cookies"
	report_pw_close      = "pw.close"
)

type Options struct {
	librus.Options
	Headed        bool
	ScreenshotDir string
	// TracePath enables a playwright trace written on Close.
	TracePath string
	// InstallDriver downloads the driver and chromium before starting.
	InstallDriver bool
}

type Transport struct {
	opts           Options
	tel            telemetry.API
	pw             *playwright.Playwright
	browser        playwright.Browser
	browserContext playwright.BrowserContext
	page           playwright.Page
}

var _ librus.Transport = (*Transport)(nil)

func New(opts Options, tel telemetry.API) (*Transport, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("pw_transport", tel)

	if opts.InstallDriver {
		err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
		if err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	t := &Transport{opts: opts, tel: tel, pw: pw}

	t.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(!opts.Headed),
	})
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = librus.DefaultUserAgent
	}
	t.browserContext, err = t.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(userAgent),
		Locale:    playwright.String("pl-PL"),
		Viewport: &playwright.Size{
			Width:  1366,
			Height: 900,
		},
	})
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	t.browserContext.SetDefaultTimeout(t.timeoutMs(context.Background()))

	if opts.TracePath != "" {
		err = t.browserContext.Tracing().Start(playwright.TracingStartOptions{
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
		})
		if err != nil {
			tel.ReportWarning(report_pw_trace, err)
		}
	}

	t.page, err = t.browserContext.NewPage()
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return t, nil
}

func (t *Transport) Name() string {
	return librus.TransportPlaywright
}

// timeoutMs is the step timeout in milliseconds, shortened to the deadline
// of `ctx` when that comes sooner.
func (t *Transport) timeoutMs(ctx context.Context) float64 {
	timeout := t.opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < timeout {
			timeout = remaining
		}
	}
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	return float64(timeout.Milliseconds())
}

func (t *Transport) navigate(ctx context.Context, url string) (librus.Page, error) {
	err := ctx.Err()
	if err != nil {
		return librus.Page{}, err
	}

	res, err := t.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(t.timeoutMs(ctx)),
	})
	if err != nil {
		return librus.Page{}, err
	}

	result := librus.Page{URL: t.page.URL()}
	if res != nil {
		result.Status = res.Status()
	}
	result.Body, err = t.page.Content()
	if err != nil {
		return librus.Page{}, err
	}
	return result, nil
}

func (t *Transport) navigateJSON(ctx context.Context, url string) (librus.Page, error) {
	result, err := t.navigate(ctx, url)
	if err != nil {
		return librus.Page{}, err
	}
	text, err := htmlutil.PageText(result.Body)
	if err != nil {
		return librus.Page{}, err
	}
	result.Body = text
	return result, nil
}

func (t *Transport) screenshot(name string) {
	if t.opts.ScreenshotDir == "" {
		return
	}
	err := os.MkdirAll(t.opts.ScreenshotDir, 0755)
	if err != nil {
		t.tel.ReportWarning(report_pw_screenshot, err)
		return
	}
	path := filepath.Join(t.opts.ScreenshotDir, name)
	_, err = t.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		t.tel.ReportWarning(report_pw_screenshot, err)
		return
	}
	t.tel.ReportDebug("saved screenshot", "path", path)
}

func (t *Transport) CheckReachability(ctx context.Context) (librus.Page, error) {
	return t.navigate(ctx, t.opts.RootURL())
}

func (t *Transport) FetchLoginPage(ctx context.Context) (librus.Page, error) {
	result, err := t.navigate(ctx, t.opts.LoginURL())
	if err != nil {
		return librus.Page{}, err
	}
	t.screenshot("login-page.png")
	return result, nil
}

func (t *Transport) SubmitLogin(ctx context.Context, creds librus.Credentials, csrf string) (librus.LoginResponse, error) {
	err := ctx.Err()
	if err != nil {
		return librus.LoginResponse{}, err
	}
	res, err := submitLoginForm(t.page, creds, csrf, t.timeoutMs(ctx))
	if err != nil {
		return librus.LoginResponse{}, err
	}
	t.screenshot("after-login.png")
	return res, nil
}

// submitLoginForm fills and submits the login form. The click runs inside
// ExpectNavigation so the network idle wait applies to the document the form
// navigates to, not to the already settled login page.
func submitLoginForm(page playwright.Page, creds librus.Credentials, csrf string, timeoutMs float64) (librus.LoginResponse, error) {
	timeout := playwright.Float(timeoutMs)

	err := page.Locator(`input[name="email"]`).First().Fill(creds.Username, playwright.LocatorFillOptions{Timeout: timeout})
	if err != nil {
		return librus.LoginResponse{}, fmt.Errorf("fill email: %w", err)
	}
	err = page.Locator(`input[name="password"]`).First().Fill(creds.Password, playwright.LocatorFillOptions{Timeout: timeout})
	if err != nil {
		return librus.LoginResponse{}, fmt.Errorf("fill password: %w", err)
	}
	_, err = page.Locator(`input[name="_token"]`).First().Evaluate(
		"(el, token) => { el.value = token }",
		csrf,
		playwright.LocatorEvaluateOptions{Timeout: timeout},
	)
	if err != nil {
		return librus.LoginResponse{}, fmt.Errorf("set csrf token: %w", err)
	}

	_, err = page.ExpectNavigation(
		func() error {
			return page.Locator(`button[type="submit"]`).First().Click(playwright.LocatorClickOptions{Timeout: timeout})
		},
		playwright.PageExpectNavigationOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
			Timeout:   timeout,
		},
	)
	if err != nil {
		return librus.LoginResponse{}, fmt.Errorf("submit login form: %w", err)
	}

	res := librus.LoginResponse{
		Browser: true,
		URL:     page.URL(),
	}
	res.Body, err = page.Content()
	if err != nil {
		return librus.LoginResponse{}, err
	}
	return res, nil
}

func (t *Transport) FetchAccounts(ctx context.Context) (librus.Page, error) {
	return t.navigateJSON(ctx, t.opts.AccountsURL())
}

func (t *Transport) FetchEndpoint(ctx context.Context, endpoint, token string) (librus.Page, error) {
	assert.NotEmptyStr(token)

	err := t.page.SetExtraHTTPHeaders(map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	})
	if err != nil {
		return librus.Page{}, fmt.Errorf("set bearer header: %w", err)
	}
	return t.navigateJSON(ctx, t.opts.EndpointURL(endpoint))
}

func (t *Transport) CookieNames(ctx context.Context) []string {
	cookies, err := t.browserContext.Cookies(t.opts.CookieURLs()...)
	if err != nil {
		t.tel.ReportWarning(report_pw_cookies, err)
		return nil
	}
	var names []string
	for _, cookie := range cookies {
		names = append(names, cookie.Name)
	}
	return librus.SortedNames(names)
}

// Close releases the page, context, browser and driver, writing the trace
// first when one is being recorded.
func (t *Transport) Close() error {
	if t.browserContext != nil && t.opts.TracePath != "" {
		err := t.browserContext.Tracing().Stop(t.opts.TracePath)
		if err != nil {
			t.tel.ReportWarning(report_pw_trace, err)
		}
	}
	if t.page != nil {
		err := t.page.Close()
		if err != nil {
			t.tel.ReportWarning(report_pw_close, "page", err)
		}
	}
	if t.browserContext != nil {
		err := t.browserContext.Close()
		if err != nil {
			t.tel.ReportWarning(report_pw_close, "context", err)
		}
	}
	if t.browser != nil {
		err := t.browser.Close()
		if err != nil {
			t.tel.ReportWarning(report_pw_close, "browser", err)
		}
	}
	return t.pw.Stop()
}
