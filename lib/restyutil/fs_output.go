package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
)

// FilesystemOutput writes one file per http exchange into a per-run
// subdirectory, with credentials and tokens redacted.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput creates `dir`/`run`. Anything already under `dir` is
// left alone.
func NewFilesystemOutput(dir, run string) (FilesystemOutput, error) {
	if run == "" {
		return FilesystemOutput{}, fmt.Errorf("empty run name")
	}
	directory := filepath.Join(dir, run)
	err := os.MkdirAll(directory, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: directory}, nil
}

func (o FilesystemOutput) Directory() string {
	return o.directory
}

func (o FilesystemOutput) Write(id string, contents string) {
	path := filepath.Join(o.directory, fmt.Sprintf("%s.txt", id))
	err := os.WriteFile(path, []byte(Redact(contents)), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}

var redactions = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{re: regexp.MustCompile(`(?i)(password=)[^&\s]*`), replacement: "${1}<redacted>"},
	{re: regexp.MustCompile(`(?i)(authorization: bearer )\S+`), replacement: "${1}<redacted>"},
	{re: regexp.MustCompile(`("accessToken"\s*:\s*")[^"]*`), replacement: "${1}<redacted>"},
}

// Redact masks form passwords, bearer headers and access tokens in an
// exchange dump.
func Redact(contents string) string {
	for _, r := range redactions {
		contents = r.re.ReplaceAllString(contents, r.replacement)
	}
	return contents
}
