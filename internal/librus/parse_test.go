package librus

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestExtractCsrfToken(t *testing.T) {
	cases := []struct {
		name   string
		markup string
		token  string
		ok     bool
	}{
		{
			name:   "hidden input",
			markup: `<form><input type="hidden" name="_token" value="abc123"></form>`,
			token:  "abc123",
			ok:     true,
		},
		{
			name:   "attributes between name and value",
			markup: `<input name="_token" type="hidden" autocomplete="off" value="x+Y/z=&amp;">`,
			token:  "x+Y/z=&amp;",
			ok:     true,
		},
		{
			name:   "first match wins",
			markup: `<input name="_token" value="first"><input name="_token" value="second">`,
			token:  "first",
			ok:     true,
		},
		{
			name:   "value before name is not matched",
			markup: `<input value="abc123" name="_token">`,
			ok:     false,
		},
		{
			name:   "empty value",
			markup: `<input name="_token" value="">`,
			ok:     false,
		},
		{
			name:   "no marker",
			markup: `<html><body>maintenance</body></html>`,
			ok:     false,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			token, ok := ExtractCsrfToken(test.markup)
			require.Equal(t, test.ok, ok)
			require.Equal(t, test.token, token)
		})
	}
}

func TestClassifyLogin(t *testing.T) {
	cases := []struct {
		name     string
		response LoginResponse
		expect   LoginOutcome
	}{
		{"302", LoginResponse{Status: 302, Location: "/rodzina"}, LoginRedirected},
		{"303", LoginResponse{Status: 303}, LoginRedirected},
		{"200 clean", LoginResponse{Status: 200, Body: "<html>witaj</html>"}, LoginAccepted},
		{"200 error", LoginResponse{Status: 200, Body: `<div class="alert">Error</div>`}, LoginRejected},
		{"200 błąd", LoginResponse{Status: 200, Body: "<p>Wystąpił BŁĄD logowania</p>"}, LoginRejected},
		{"403", LoginResponse{Status: 403}, LoginUnexpected},
		{"500 with error body", LoginResponse{Status: 500, Body: "error"}, LoginUnexpected},
		{"browser left login", LoginResponse{Browser: true, URL: "https://portal.librus.pl/rodzina"}, LoginRedirected},
		{"browser stayed", LoginResponse{Browser: true, URL: "https://portal.librus.pl/konto-librus/login"}, LoginRejected},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expect, ClassifyLogin(test.response))
		})
	}
}

func TestRejectionReason(t *testing.T) {
	res := LoginResponse{
		Status: 200,
		Body:   `<html><body><div class="alert alert-danger"> Nieprawidłowy login lub hasło </div></body></html>`,
	}
	require.Equal(t, "Nieprawidłowy login lub hasło", RejectionReason(res))
}

func TestParseAccounts(t *testing.T) {
	accounts, err := ParseAccounts([]byte(`{
		"accounts": [
			{"id": 1234, "login": "1234u", "studentName": "Jan Kowalski", "accessToken": "tok_xyz"},
			{"id": 99, "login": "99u", "studentName": "Anna Kowalska"}
		]
	}`))
	require.NoError(t, err)

	expected := []Account{
		{ID: "1234", Login: "1234u", StudentName: "Jan Kowalski", AccessToken: "tok_xyz"},
		{ID: "99", Login: "99u", StudentName: "Anna Kowalska"},
	}
	if diff := cmp.Diff(expected, accounts); diff != "" {
		t.Fatal(diff)
	}

	token, err := BearerToken(accounts)
	require.NoError(t, err)
	require.Equal(t, "tok_xyz", token)
}

func TestParseAccountsStringID(t *testing.T) {
	accounts, err := ParseAccounts([]byte(`{
		"accounts": [
			{"id": "u1234", "login": "1234u", "studentName": "Jan Kowalski", "accessToken": "tok_xyz"},
			{"id": null, "login": "99u"}
		]
	}`))
	require.NoError(t, err)
	require.Equal(t, ID("u1234"), accounts[0].ID)
	require.Equal(t, "", accounts[1].ID.String())

	token, err := BearerToken(accounts)
	require.NoError(t, err)
	require.Equal(t, "tok_xyz", token)

	_, err = ParseAccounts([]byte(`{"accounts": [{"id": {"nested": 1}, "accessToken": "tok_xyz"}]}`))
	require.ErrorIs(t, err, ErrAccountOrTokenMissing)
}

func TestParseAccountsErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		expect error
	}{
		{"empty list", `{"accounts": []}`, ErrNoAccountsFound},
		{"missing key", `{}`, ErrNoAccountsFound},
		{"invalid json", `<html>login</html>`, ErrAccountOrTokenMissing},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseAccounts([]byte(test.body))
			require.ErrorIs(t, err, test.expect)
			require.ErrorIs(t, err, ErrAccountOrTokenMissing)
		})
	}
}

func TestBearerTokenMissing(t *testing.T) {
	_, err := BearerToken([]Account{{ID: "1", Login: "1u"}, {ID: "2", AccessToken: "second"}})
	require.True(t, errors.Is(err, ErrNoTokenInAccount))
	require.True(t, errors.Is(err, ErrAccountOrTokenMissing))

	_, err = BearerToken(nil)
	require.ErrorIs(t, err, ErrNoAccountsFound)
}

func TestMaskToken(t *testing.T) {
	require.Equal(t, "abcd...", MaskToken("abcdefgh", 4))
	require.Equal(t, "*******", MaskToken("tok_xyz", 10))
	require.Equal(t, "", MaskToken("", 4))
}

func TestCountElements(t *testing.T) {
	cases := []struct {
		endpoint string
		payload  map[string]any
		count    int
		found    bool
	}{
		{"Schools", map[string]any{"Schools": []any{1, 2, 3}}, 3, true},
		{"Timetables", map[string]any{"Timetable": map[string]any{"2024-09-02": []any{}}}, 1, true},
		{"Timetables", map[string]any{"Timetable": []any{1, 2}}, 2, true},
		{"Timetables", map[string]any{"Timetables": []any{1, 2}}, 0, false},
		{"Me", map[string]any{"Me": map[string]any{"Account": map[string]any{}}}, 1, true},
		{"HomeWorks", map[string]any{"Resources": map[string]any{}}, 0, false},
	}

	for _, test := range cases {
		count, found := CountElements(test.endpoint, test.payload)
		require.Equal(t, test.count, count, test.endpoint)
		require.Equal(t, test.found, found, test.endpoint)
	}
}

func TestEvaluateProbe(t *testing.T) {
	result := EvaluateProbe("Schools", Page{Status: 200, Body: `{"Schools": [{"Id": 1}], "Resources": {}}`})
	require.True(t, result.Ok())
	require.Equal(t, 1, result.Count)
	require.Equal(t, []string{"Resources", "Schools"}, result.Keys)

	result = EvaluateProbe("Schools", Page{Status: 404, Body: `{"Code": "NotFound"}`})
	require.ErrorIs(t, result.Err, ErrProbeFailure)
	require.Equal(t, 404, result.Status)

	result = EvaluateProbe("Schools", Page{Status: 200, Body: `<html></html>`})
	require.ErrorIs(t, result.Err, ErrProbeFailure)
}

func TestParseMessages(t *testing.T) {
	messages, err := ParseMessages([]byte(`{"Messages": [
		{"Id": 7, "Subject": "Wywiadówka", "Sender": {"Id": 3, "Name": "Wychowawca"}, "SendDate": "2024-09-10 12:00:00"},
		{"Id": "m-8", "Subject": "Wycieczka", "Sender": {"Id": "t-4", "Name": "Sekretariat"}}
	]}`))
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, ID("7"), messages[0].ID)
	require.Equal(t, ID("t-4"), messages[1].Sender.ID)
	require.Equal(t, "Wywiadówka", messages[0].Subject)
	require.Equal(t, "Wychowawca", messages[0].Sender.Name)

	_, err = ParseMessages([]byte("nope"))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())
	require.Equal(t, "https://portal.librus.pl/konto-librus/login/action", config.Options().LoginActionURL())
	require.Equal(t, "https://api.librus.pl/3.0/Me", config.Options().EndpointURL("Me"))

	config.Transport = "selenium"
	require.Error(t, config.Validate())

	config = DefaultConfig()
	config.Endpoints = nil
	require.Error(t, config.Validate())

	config = DefaultConfig()
	config.RequestsPerSecond = ptr(-1.0)
	require.Error(t, config.Validate())
}

func TestConfigToggles(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, 2.0, config.RateLimit())
	require.False(t, config.IsStrictLogin())
	require.False(t, config.IsHeaded())
	require.False(t, config.ShouldInstallDriver())

	config.RequestsPerSecond = ptr(0.0)
	config.StrictLogin = ptr(true)
	config.Headed = ptr(true)
	config.InstallDriver = ptr(false)
	require.Equal(t, 0.0, config.RateLimit())
	require.True(t, config.IsStrictLogin())
	require.True(t, config.IsHeaded())
	require.False(t, config.ShouldInstallDriver())
	require.NoError(t, config.Validate())
}

func TestCookieURLs(t *testing.T) {
	opts := Options{PortalURL: "https://portal.librus.pl/"}
	require.Equal(t, []string{
		"https://portal.librus.pl/",
		"https://portal.librus.pl/konto-librus/login",
		"https://portal.librus.pl/konto-librus/login/action",
		"https://portal.librus.pl/api/v3/SynergiaAccounts",
	}, opts.CookieURLs())

	require.Equal(t, []string{"DZIENNIKSID", "LOGIN_SESSION", "oauth_token"},
		SortedNames([]string{"oauth_token", "DZIENNIKSID", "LOGIN_SESSION", "DZIENNIKSID"}))
	require.Nil(t, SortedNames(nil))
}
