// Package cdpdriver drives a Chrome instance over the devtools protocol,
// every step is a navigation or a form interaction in a real page.
package cdpdriver

import (
	"context"
	"fmt"
	"librus-probe/internal/components/assert"
	"librus-probe/internal/components/telemetry"
	"librus-probe/internal/librus"
	"librus-probe/lib/htmlutil"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	report_cdp_screenshot = "cdp.screenshot"
	report_cdp_cookies    = "cdp.cookies"
)

type Options struct {
	librus.Options
	Headed        bool
	ScreenshotDir string
}

type Transport struct {
	opts          Options
	tel           telemetry.API
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

var _ librus.Transport = (*Transport)(nil)

// New starts the browser, it must be released with Close.
func New(ctx context.Context, opts Options, tel telemetry.API) (*Transport, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("cdp_transport", tel)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = librus.DefaultUserAgent
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.Headed),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1366, 900),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(
		allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			tel.ReportDebug(fmt.Sprintf(format, args...))
		}),
	)

	// the first Run allocates the browser, it must not carry a timeout
	err := chromedp.Run(browserCtx, page.SetLifecycleEventsEnabled(true))
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &Transport{
		opts:          opts,
		tel:           tel,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

func (t *Transport) Name() string {
	return librus.TransportChromedp
}

// stepContext derives a context bound to the browser tab that is cancelled
// with `ctx` and after the step timeout.
func (t *Transport) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := t.opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	stepCtx, cancel := context.WithTimeout(t.browserCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return stepCtx, func() {
		stop()
		cancel()
	}
}

// idleWatcher closes `idle` once `frame` starts a new document and that
// document reaches the networkIdle lifecycle state. Events of other frames
// (iframes, workers) are ignored. An empty frame matches every frame.
type idleWatcher struct {
	frame   cdp.FrameID
	started atomic.Bool
	once    sync.Once
	idle    chan struct{}
}

func newIdleWatcher(frame cdp.FrameID) *idleWatcher {
	return &idleWatcher{frame: frame, idle: make(chan struct{})}
}

func (w *idleWatcher) handle(ev any) {
	event, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	if w.frame != "" && event.FrameID != w.frame {
		return
	}
	switch event.Name {
	case "init":
		w.started.Store(true)
	case "networkIdle":
		if w.started.Load() {
			w.once.Do(func() { close(w.idle) })
		}
	}
}

// mainFrame is the id of the top level frame of the tab, which shares its
// id with the target.
func mainFrame(ctx context.Context) cdp.FrameID {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return ""
	}
	return cdp.FrameID(c.Target.TargetID)
}

// listenNetworkIdle returns a channel closed once the next navigation of the
// main frame reaches the networkIdle lifecycle state.
func listenNetworkIdle(ctx context.Context) <-chan struct{} {
	w := newIdleWatcher(mainFrame(ctx))
	chromedp.ListenTarget(ctx, w.handle)
	return w.idle
}

// waitNetworkIdle fails the step when the page does not settle before the
// step deadline.
func waitNetworkIdle(ctx context.Context, idle <-chan struct{}) error {
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for network idle: %w", ctx.Err())
	}
}

// navigate loads a url, waits for the network to settle and reads the page.
func (t *Transport) navigate(ctx context.Context, url string) (librus.Page, error) {
	stepCtx, cancel := t.stepContext(ctx)
	defer cancel()

	idle := listenNetworkIdle(stepCtx)
	res, err := chromedp.RunResponse(stepCtx, chromedp.Navigate(url))
	if err != nil {
		return librus.Page{}, err
	}
	err = waitNetworkIdle(stepCtx, idle)
	if err != nil {
		return librus.Page{}, err
	}

	result := librus.Page{}
	if res != nil {
		result.Status = int(res.Status)
	}
	err = chromedp.Run(
		stepCtx,
		chromedp.Location(&result.URL),
		chromedp.OuterHTML("html", &result.Body, chromedp.ByQuery),
	)
	if err != nil {
		return librus.Page{}, err
	}
	return result, nil
}

// navigateJSON is navigate for endpoints answering with JSON, the payload is
// read back from the text chrome renders it as.
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

func (t *Transport) screenshot(ctx context.Context, name string) {
	if t.opts.ScreenshotDir == "" {
		return
	}
	stepCtx, cancel := t.stepContext(ctx)
	defer cancel()

	var buf []byte
	err := chromedp.Run(stepCtx, chromedp.FullScreenshot(&buf, 90))
	if err != nil {
		t.tel.ReportWarning(report_cdp_screenshot, err)
		return
	}
	err = os.MkdirAll(t.opts.ScreenshotDir, 0755)
	if err != nil {
		t.tel.ReportWarning(report_cdp_screenshot, err)
		return
	}
	path := filepath.Join(t.opts.ScreenshotDir, name)
	err = os.WriteFile(path, buf, 0644)
	if err != nil {
		t.tel.ReportWarning(report_cdp_screenshot, err)
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
	t.screenshot(ctx, "login-page.png")
	return result, nil
}

func (t *Transport) SubmitLogin(ctx context.Context, creds librus.Credentials, csrf string) (librus.LoginResponse, error) {
	stepCtx, cancel := t.stepContext(ctx)
	defer cancel()

	err := chromedp.Run(
		stepCtx,
		chromedp.SendKeys(`input[name="email"]`, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, creds.Password, chromedp.ByQuery),
		chromedp.SetValue(`input[name="_token"]`, csrf, chromedp.ByQuery),
	)
	if err != nil {
		return librus.LoginResponse{}, fmt.Errorf("fill login form: %w", err)
	}

	idle := listenNetworkIdle(stepCtx)
	err = chromedp.Run(stepCtx, chromedp.Click(`button[type="submit"]`, chromedp.ByQuery))
	if err != nil {
		return librus.LoginResponse{}, fmt.Errorf("submit login form: %w", err)
	}
	err = waitNetworkIdle(stepCtx, idle)
	if err != nil {
		return librus.LoginResponse{}, err
	}

	res := librus.LoginResponse{Browser: true}
	err = chromedp.Run(
		stepCtx,
		chromedp.Location(&res.URL),
		chromedp.OuterHTML("html", &res.Body, chromedp.ByQuery),
	)
	if err != nil {
		return librus.LoginResponse{}, err
	}
	t.screenshot(ctx, "after-login.png")
	return res, nil
}

func (t *Transport) FetchAccounts(ctx context.Context) (librus.Page, error) {
	return t.navigateJSON(ctx, t.opts.AccountsURL())
}

func (t *Transport) FetchEndpoint(ctx context.Context, endpoint, token string) (librus.Page, error) {
	assert.NotEmptyStr(token)

	stepCtx, cancel := t.stepContext(ctx)
	err := chromedp.Run(stepCtx, network.SetExtraHTTPHeaders(network.Headers{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	}))
	cancel()
	if err != nil {
		return librus.Page{}, fmt.Errorf("set bearer header: %w", err)
	}
	return t.navigateJSON(ctx, t.opts.EndpointURL(endpoint))
}

func (t *Transport) CookieNames(ctx context.Context) []string {
	stepCtx, cancel := t.stepContext(ctx)
	defer cancel()

	var names []string
	err := chromedp.Run(stepCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().
			WithUrls(t.opts.CookieURLs()).
			Do(ctx)
		if err != nil {
			return err
		}
		for _, cookie := range cookies {
			names = append(names, cookie.Name)
		}
		return nil
	}))
	if err != nil {
		t.tel.ReportWarning(report_cdp_cookies, err)
		return nil
	}
	return librus.SortedNames(names)
}

func (t *Transport) Close() error {
	err := chromedp.Cancel(t.browserCtx)
	t.cancelBrowser()
	t.cancelAlloc()
	return err
}
