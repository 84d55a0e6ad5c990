package librus

import (
	"fmt"
	"time"
)

const (
	TransportHttp       = "http"
	TransportChromedp   = "chromedp"
	TransportPlaywright = "playwright"
)

// Config is the contents of `librus.json5`.
//
// Fields whose zero value is a meaningful setting are pointers, so that an
// explicit `0` or `false` (in the file or in its local override) is told
// apart from a missing key and is not replaced by the default.
type Config struct {
	Transport      string   `json:"transport"`
	PortalURL      string   `json:"portal_url"`
	ApiURL         string   `json:"api_url"`
	UserAgent      string   `json:"user_agent"`
	Endpoints      []string `json:"endpoints"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	// 0 disables rate limiting
	RequestsPerSecond *float64 `json:"requests_per_second"`
	// login statuses other than 200 and 3xx fail the run instead of
	// only printing a warning
	StrictLogin *bool `json:"strict_login"`

	// browser transports
	Headed        *bool  `json:"headed"`
	ScreenshotDir string `json:"screenshot_dir"`
	TracePath     string `json:"trace_path"`
	InstallDriver *bool  `json:"install_driver"`

	DumpDir    string `json:"dump_dir"`
	ReportPath string `json:"report_path"`
}

func DefaultConfig() Config {
	return Config{
		Transport:         TransportHttp,
		PortalURL:         DefaultPortalURL,
		ApiURL:            DefaultApiURL,
		UserAgent:         DefaultUserAgent,
		Endpoints:         append([]string(nil), DefaultEndpoints...),
		TimeoutSeconds:    30,
		RequestsPerSecond: ptr(2.0),
	}
}

func ptr[T any](v T) *T {
	return &v
}

func enabled(b *bool) bool {
	return b != nil && *b
}

func (c Config) RateLimit() float64 {
	if c.RequestsPerSecond == nil {
		return 0
	}
	return *c.RequestsPerSecond
}

func (c Config) IsStrictLogin() bool {
	return enabled(c.StrictLogin)
}

func (c Config) IsHeaded() bool {
	return enabled(c.Headed)
}

func (c Config) ShouldInstallDriver() bool {
	return enabled(c.InstallDriver)
}

func (c Config) Validate() error {
	switch c.Transport {
	case TransportHttp, TransportChromedp, TransportPlaywright:
	default:
		return fmt.Errorf("unknown transport %q (expected http, chromedp or playwright)", c.Transport)
	}
	if c.PortalURL == "" || c.ApiURL == "" {
		return fmt.Errorf("portal_url and api_url must be set")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	if c.RateLimit() < 0 {
		return fmt.Errorf("requests_per_second must not be negative, got %v", c.RateLimit())
	}
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint must be configured")
	}
	return nil
}

func (c Config) Options() Options {
	return Options{
		PortalURL: c.PortalURL,
		ApiURL:    c.ApiURL,
		UserAgent: c.UserAgent,
		Timeout:   time.Duration(c.TimeoutSeconds) * time.Second,
	}
}
