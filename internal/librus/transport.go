package librus

import (
	"context"
	"slices"
	"strings"
	"time"
)

const (
	DefaultPortalURL = "https://portal.librus.pl"
	DefaultApiURL    = "https://api.librus.pl/3.0"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// Options is what every transport needs to know about the portal.
type Options struct {
	PortalURL string
	ApiURL    string
	UserAgent string
	// Timeout bounds every single step (request or navigation).
	Timeout time.Duration
}

func (o Options) portal() string {
	return strings.TrimRight(o.PortalURL, "/")
}

func (o Options) RootURL() string {
	return o.portal() + "/"
}

func (o Options) LoginURL() string {
	return o.portal() + "/konto-librus/login"
}

func (o Options) LoginActionURL() string {
	return o.portal() + "/konto-librus/login/action"
}

func (o Options) AccountsURL() string {
	return o.portal() + "/api/v3/SynergiaAccounts"
}

// CookieURLs are the portal urls whose cookies make up the session. Cookies
// scoped to a subpath only show up when that path is queried.
func (o Options) CookieURLs() []string {
	return []string{o.RootURL(), o.LoginURL(), o.LoginActionURL(), o.AccountsURL()}
}

// SortedNames sorts cookie names and drops duplicates.
func SortedNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

func (o Options) EndpointURL(endpoint string) string {
	return strings.TrimRight(o.ApiURL, "/") + "/" + endpoint
}

// Page is a fetched document. Status is 0 when the transport could not
// observe it.
type Page struct {
	Status int
	URL    string
	Body   string
}

// Transport performs the individual portal interactions of a session, a
// single Transport holds exactly one session (cookies included).
type Transport interface {
	Name() string
	// CheckReachability fetches the portal root, following redirects.
	CheckReachability(ctx context.Context) (Page, error)
	FetchLoginPage(ctx context.Context) (Page, error)
	// SubmitLogin posts the login form without following redirects.
	SubmitLogin(ctx context.Context, creds Credentials, csrf string) (LoginResponse, error)
	FetchAccounts(ctx context.Context) (Page, error)
	// FetchEndpoint requests an API endpoint authorized with the bearer token.
	FetchEndpoint(ctx context.Context, endpoint, token string) (Page, error)
	// CookieNames lists the names of the cookies the session currently holds.
	CookieNames(ctx context.Context) []string
	Close() error
}
