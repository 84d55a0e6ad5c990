package restyutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	testCases := []struct {
		in     string
		expect string
	}{
		{
			in:     "email=a%40b.pl&password=hunter2&_token=abc",
			expect: "email=a%40b.pl&password=<redacted>&_token=abc",
		},
		{
			in:     "Authorization: Bearer tok_xyz\nAccept: application/json",
			expect: "Authorization: Bearer <redacted>\nAccept: application/json",
		},
		{
			in:     `{"accounts":[{"id":1,"accessToken": "tok_xyz"}]}`,
			expect: `{"accounts":[{"id":1,"accessToken": "<redacted>"}]}`,
		},
		{
			in:     "GET https://portal.librus.pl/",
			expect: "GET https://portal.librus.pl/",
		},
	}

	for _, test := range testCases {
		require.Equal(t, test.expect, Redact(test.in))
	}
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	out, err := NewFilesystemOutput(dir, "run-1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "run-1"), out.Directory())

	out.Write("1", "password=secret")

	contents, err := os.ReadFile(filepath.Join(dir, "run-1", "1.txt"))
	require.NoError(t, err)
	require.Equal(t, "password=<redacted>", string(contents))
}

func TestFilesystemOutputKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "run-1"), 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run-1", "1.txt"), []byte("earlier run"), 0600))

	out, err := NewFilesystemOutput(dir, "run-2")
	require.NoError(t, err)
	out.Write("1", "GET /")

	contents, err := os.ReadFile(existing)
	require.NoError(t, err)
	require.Equal(t, "keep me", string(contents))

	contents, err = os.ReadFile(filepath.Join(dir, "run-1", "1.txt"))
	require.NoError(t, err)
	require.Equal(t, "earlier run", string(contents))

	contents, err = os.ReadFile(filepath.Join(dir, "run-2", "1.txt"))
	require.NoError(t, err)
	require.Equal(t, "GET /", string(contents))
}

func TestFilesystemOutputRequiresRun(t *testing.T) {
	_, err := NewFilesystemOutput(t.TempDir(), "")
	require.Error(t, err)
}
