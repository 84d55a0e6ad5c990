// Package httpdriver talks to the portal with plain http requests, the way a
// REST client would, keeping cookies in a jar between requests.
package httpdriver

import (
	"context"
	"fmt"
	"librus-probe/internal/components/assert"
	"librus-probe/internal/components/telemetry"
	"librus-probe/internal/librus"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

type Options struct {
	librus.Options
	// RequestsPerSecond spaces out requests, 0 disables the limiter.
	RequestsPerSecond float64
	// Output receives a dump of every http exchange when set.
	Output telemetry.MessageOutput
}

type Transport struct {
	opts       librus.Options
	cookieURLs []*url.URL
	jar        http.CookieJar
	http       *resty.Client
	tel        telemetry.API
}

var _ librus.Transport = (*Transport)(nil)

func New(opts Options, tel telemetry.API) (*Transport, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("http_transport", tel)

	_, err := url.Parse(opts.PortalURL)
	if err != nil {
		return nil, fmt.Errorf("parse portal url: %w", err)
	}
	var cookieURLs []*url.URL
	for _, raw := range opts.CookieURLs() {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse cookie url: %w", err)
		}
		cookieURLs = append(cookieURLs, u)
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = librus.DefaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept-language", "pl-PL,pl;q=0.9,en;q=0.8")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	if opts.RequestsPerSecond > 0 {
		// burst >= rps means no request is ever dropped, only delayed
		burst := int(math.Ceil(opts.RequestsPerSecond))
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, tel, opts.Output)

	return &Transport{
		opts:       opts.Options,
		cookieURLs: cookieURLs,
		jar:        jar,
		http:       client,
		tel:        tel,
	}, nil
}

func (t *Transport) Name() string {
	return librus.TransportHttp
}

func pageFrom(res *resty.Response) librus.Page {
	page := librus.Page{
		Status: res.StatusCode(),
		Body:   res.String(),
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		page.URL = res.RawResponse.Request.URL.String()
	}
	return page
}

func (t *Transport) CheckReachability(ctx context.Context) (librus.Page, error) {
	res, err := t.http.R().
		SetContext(ctx).
		Get(t.opts.RootURL())
	if err != nil {
		return librus.Page{}, err
	}
	return pageFrom(res), nil
}

func (t *Transport) FetchLoginPage(ctx context.Context) (librus.Page, error) {
	res, err := t.http.R().
		SetContext(ctx).
		SetHeader("accept", "text/html,application/xhtml+xml").
		Get(t.opts.LoginURL())
	if err != nil {
		return librus.Page{}, err
	}
	return pageFrom(res), nil
}

func (t *Transport) SubmitLogin(ctx context.Context, creds librus.Credentials, csrf string) (librus.LoginResponse, error) {
	t.http.SetRedirectPolicy(
		resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}),
	)
	defer t.http.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	res, err := t.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"email":       creds.Username,
			"password":    creds.Password,
			"_token":      csrf,
			"redirectTo":  "",
			"redirectCrc": "",
		}).
		SetHeader("referer", t.opts.LoginURL()).
		SetHeader("origin", strings.TrimRight(t.opts.PortalURL, "/")).
		Post(t.opts.LoginActionURL())
	if err != nil {
		return librus.LoginResponse{}, err
	}

	return librus.LoginResponse{
		Status:   res.StatusCode(),
		Location: res.Header().Get("Location"),
		Body:     res.String(),
	}, nil
}

func (t *Transport) FetchAccounts(ctx context.Context) (librus.Page, error) {
	res, err := t.http.R().
		SetContext(ctx).
		SetHeader("accept", "application/json").
		Get(t.opts.AccountsURL())
	if err != nil {
		return librus.Page{}, err
	}
	return pageFrom(res), nil
}

func (t *Transport) FetchEndpoint(ctx context.Context, endpoint, token string) (librus.Page, error) {
	assert.NotEmptyStr(token)

	res, err := t.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("accept", "application/json").
		Get(t.opts.EndpointURL(endpoint))
	if err != nil {
		return librus.Page{}, err
	}
	return pageFrom(res), nil
}

func (t *Transport) CookieNames(ctx context.Context) []string {
	var names []string
	for _, u := range t.cookieURLs {
		for _, cookie := range t.jar.Cookies(u) {
			names = append(names, cookie.Name)
		}
	}
	return librus.SortedNames(names)
}

func (t *Transport) Close() error {
	t.http.GetClient().CloseIdleConnections()
	return nil
}
