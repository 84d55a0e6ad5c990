package librus

import (
	"librus-probe/lib/htmlutil"
	"strings"
)

// LoginResponse is what a transport observed after submitting the login form.
type LoginResponse struct {
	// Status and Location are only set by transports that see the raw
	// response (redirects are not followed).
	Status   int
	Location string
	// URL is the settled page url, only set by browser transports.
	URL  string
	Body string
	// Browser marks a response produced by navigating a real page.
	Browser bool
}

type LoginOutcome int

const (
	// the portal answered with a redirect, or the browser left the login page
	LoginRedirected LoginOutcome = iota
	// 200 without an error keyword, best-effort success
	LoginAccepted
	// 200 containing an error keyword, or the browser stayed on the login page
	LoginRejected
	// any other status
	LoginUnexpected
)

func (o LoginOutcome) String() string {
	switch o {
	case LoginRedirected:
		return "redirected"
	case LoginAccepted:
		return "accepted"
	case LoginRejected:
		return "rejected"
	case LoginUnexpected:
		return "unexpected"
	}
	return "unknown"
}

var loginErrorKeywords = []string{"error", "błąd"}

// ClassifyLogin decides how a login submission went.
//
// The keyword sniffing on a 200 body is a heuristic: the portal may render a
// page mentioning "error" on success or omit it on failure, so LoginAccepted
// and LoginRejected on a 200 are best-effort, not guaranteed.
func ClassifyLogin(res LoginResponse) LoginOutcome {
	if res.Browser {
		if strings.Contains(strings.ToLower(res.URL), "login") {
			return LoginRejected
		}
		return LoginRedirected
	}

	switch {
	case res.Status >= 300 && res.Status < 400:
		return LoginRedirected
	case res.Status == 200:
		body := strings.ToLower(res.Body)
		for _, keyword := range loginErrorKeywords {
			if strings.Contains(body, keyword) {
				return LoginRejected
			}
		}
		return LoginAccepted
	}
	return LoginUnexpected
}

// RejectionReason returns the error banner text of a rejected login page, if any.
func RejectionReason(res LoginResponse) string {
	return htmlutil.ErrorText(res.Body)
}
