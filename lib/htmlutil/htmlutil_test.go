package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestGetText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<div>a<span>b<i>c</i></span>d</div>`))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "abcd", GetText(doc))
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "Nieprawidłowy login lub hasło", Normalize("\n\t  Nieprawidłowy   login\nlub hasło \n"))
	require.Equal(t, "", Normalize(" \n "))
}

func TestPageText(t *testing.T) {
	testCases := []struct {
		name   string
		markup string
		expect string
	}{
		{
			name:   "chrome pre wrapper",
			markup: `<html><head></head><body><pre style="word-wrap: break-word;">{"accounts":[]}</pre></body></html>`,
			expect: `{"accounts":[]}`,
		},
		{
			name:   "plain body",
			markup: `<html><body> {"Me":{}} </body></html>`,
			expect: `{"Me":{}}`,
		},
		{
			name:   "bare payload",
			markup: `{"Schools":[]}`,
			expect: `{"Schools":[]}`,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			text, err := PageText(test.markup)
			require.NoError(t, err)
			require.Equal(t, test.expect, text)
		})
	}
}

func TestErrorText(t *testing.T) {
	markup := `<form><div class="alert alert-danger">
		Nieprawidłowy login
		lub hasło
	</div></form>`
	require.Equal(t, "Nieprawidłowy login lub hasło", ErrorText(markup))
	require.Equal(t, "", ErrorText(`<form><div class="alert-info">ok</div></form>`))
}

func TestMarkdown(t *testing.T) {
	rendered := Markdown(`<h1>Konto LIBRUS</h1><p>Zaloguj się</p>`, 0)
	require.Contains(t, rendered, "Konto LIBRUS")
	require.Contains(t, rendered, "Zaloguj się")

	truncated := Markdown(`<p>abcdefghij</p>`, 4)
	require.Equal(t, "abcd...", truncated)
}
