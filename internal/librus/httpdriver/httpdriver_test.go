package httpdriver

import (
	"bytes"
	"context"
	"fmt"
	"librus-probe/internal/components/chrono"
	"librus-probe/internal/components/telemetry"
	"librus-probe/internal/librus"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method  string
	Path    string
	Form    map[string]string
	Header  http.Header
	Cookies []string
}

type portal struct {
	mutex    sync.Mutex
	requests []recordedRequest
	server   *httptest.Server
}

func (p *portal) record(r *http.Request) {
	entry := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
	}
	if r.Method == http.MethodPost {
		err := r.ParseForm()
		if err == nil {
			entry.Form = map[string]string{}
			for key := range r.PostForm {
				entry.Form[key] = r.PostForm.Get(key)
			}
		}
	}
	for _, cookie := range r.Cookies() {
		entry.Cookies = append(entry.Cookies, cookie.Name)
	}

	p.mutex.Lock()
	p.requests = append(p.requests, entry)
	p.mutex.Unlock()
}

func (p *portal) find(path string) (recordedRequest, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, req := range p.requests {
		if req.Path == path {
			return req, true
		}
	}
	return recordedRequest{}, false
}

func newPortal(t *testing.T) *portal {
	p := &portal{}
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "<html><body>Librus</body></html>")
	})
	mux.HandleFunc("/konto-librus/login", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		http.SetCookie(w, &http.Cookie{Name: "DZIENNIKSID", Value: "session-1", Path: "/"})
		fmt.Fprint(w, `<form method="post"><input type="hidden" name="_token" value="abc123"><input name="email"></form>`)
	})
	mux.HandleFunc("/konto-librus/login/action", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		http.SetCookie(w, &http.Cookie{Name: "oauth_token", Value: "o", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "LOGIN_SESSION", Value: "l", Path: "/konto-librus"})
		http.Redirect(w, r, "/rodzina", http.StatusFound)
	})
	mux.HandleFunc("/rodzina", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		fmt.Fprint(w, "family page")
	})
	mux.HandleFunc("/api/v3/SynergiaAccounts", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		w.Header().Set("content-type", "application/json")
		fmt.Fprint(w, `{"accounts":[{"id":7,"login":"7u","studentName":"Jan Kowalski","accessToken":"tok_xyz"}]}`)
	})
	mux.HandleFunc("/3.0/Schools", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		if r.Header.Get("Authorization") != "Bearer tok_xyz" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"Schools":[{"Id":1},{"Id":2}]}`)
	})
	mux.HandleFunc("/3.0/Timetables", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		fmt.Fprint(w, `{"Timetable":{"2024-09-02":[[]]}}`)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func newTransport(t *testing.T, p *portal, tel telemetry.API) *Transport {
	transport, err := New(Options{
		Options: librus.Options{
			PortalURL: p.server.URL,
			ApiURL:    p.server.URL + "/3.0",
			Timeout:   5 * time.Second,
		},
		RequestsPerSecond: 100,
	}, tel)
	require.NoError(t, err)
	t.Cleanup(func() {
		transport.Close()
	})
	return transport
}

func TestSubmitLogin(t *testing.T) {
	p := newPortal(t)
	transport := newTransport(t, p, &telemetry.RecorderAPI{})
	ctx := context.Background()

	page, err := transport.FetchLoginPage(ctx)
	require.NoError(t, err)
	token, ok := librus.ExtractCsrfToken(page.Body)
	require.True(t, ok)
	require.Equal(t, "abc123", token)

	res, err := transport.SubmitLogin(ctx, librus.Credentials{Username: "jan", Password: "tajne"}, token)
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, res.Status)
	require.Equal(t, "/rodzina", res.Location)
	require.Equal(t, librus.LoginRedirected, librus.ClassifyLogin(res))

	_, followed := p.find("/rodzina")
	require.False(t, followed, "login redirect must not be followed")

	login, ok := p.find("/konto-librus/login/action")
	require.True(t, ok)
	require.Equal(t, http.MethodPost, login.Method)
	require.Equal(t, map[string]string{
		"email":       "jan",
		"password":    "tajne",
		"_token":      "abc123",
		"redirectTo":  "",
		"redirectCrc": "",
	}, login.Form)
	require.Equal(t, p.server.URL+"/konto-librus/login", login.Header.Get("Referer"))
	require.Equal(t, p.server.URL, login.Header.Get("Origin"))
	require.Contains(t, login.Cookies, "DZIENNIKSID")

	require.Equal(t, []string{"DZIENNIKSID", "LOGIN_SESSION", "oauth_token"}, transport.CookieNames(ctx))
}

func TestFetchEndpoint(t *testing.T) {
	p := newPortal(t)
	transport := newTransport(t, p, &telemetry.RecorderAPI{})
	ctx := context.Background()

	page, err := transport.FetchEndpoint(ctx, "Schools", "tok_xyz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.Status)

	result := librus.EvaluateProbe("Schools", page)
	require.True(t, result.Ok())
	require.Equal(t, 2, result.Count)

	req, ok := p.find("/3.0/Schools")
	require.True(t, ok)
	require.Equal(t, "Bearer tok_xyz", req.Header.Get("Authorization"))
	require.Equal(t, "application/json", req.Header.Get("Accept"))

	page, err = transport.FetchEndpoint(ctx, "Missing", "tok_xyz")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, page.Status)
}

func TestUnreachable(t *testing.T) {
	p := newPortal(t)
	transport := newTransport(t, p, &telemetry.RecorderAPI{})
	p.server.Close()

	_, err := transport.CheckReachability(context.Background())
	require.Error(t, err)
}

func TestBootstrapperOverHttp(t *testing.T) {
	p := newPortal(t)
	tel := &telemetry.RecorderAPI{}
	transport := newTransport(t, p, tel)
	out := &bytes.Buffer{}

	b := librus.NewBootstrapper(librus.BootstrapperOptions{
		Transport: transport,
		Endpoints: []string{"Schools", "Timetables", "HomeWorks"},
		Timeout:   5 * time.Second,
		Output:    out,
		Clock:     chrono.FixedImpl{Time: time.Now()},
	}, tel)
	summary := b.Run(context.Background(), librus.Credentials{Username: "jan", Password: "tajne"})

	require.NoError(t, summary.Err, out.String())
	require.Equal(t, librus.StageProbed, summary.Reached)
	require.Equal(t, 0, summary.ExitCode())
	require.Len(t, summary.Accounts, 1)
	require.Equal(t, "tok_xyz", summary.Token)

	succeeded, failed := summary.ProbeCounts()
	require.Equal(t, 2, succeeded)
	require.Equal(t, 1, failed)
	require.Equal(t, 1, summary.Probes[1].Count)

	accounts, ok := p.find("/api/v3/SynergiaAccounts")
	require.True(t, ok)
	require.Contains(t, accounts.Cookies, "oauth_token")

	require.NotContains(t, out.String(), "tajne")
	require.NotEmpty(t, tel.Find("debug"))
}
