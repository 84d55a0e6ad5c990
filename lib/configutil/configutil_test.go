package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Transport string   `json:"transport"`
	Timeout   int      `json:"timeout_seconds"`
	Headed    bool     `json:"headed"`
	Endpoints []string `json:"endpoints"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, filepath.Join("a", "b", "librus.local.json5"), LocalPath(filepath.Join("a", "b", "librus.json5")))
	require.Equal(t, "config.local.", LocalPath("config"))
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "librus.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "librus.json5"), `{
		// comments are allowed
		transport: "http",
		timeout_seconds: 10,
		endpoints: ["Me"],
	}`)
	writeFile(t, filepath.Join(dir, "librus.local.json5"), `{transport: "playwright"}`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "librus.json5"))
	require.NoError(t, err)
	require.Equal(t, "playwright", cfg.Transport)
	require.Equal(t, 10, cfg.Timeout)
	require.Equal(t, []string{"Me"}, cfg.Endpoints)
}

func TestReadConfigWithDefaults(t *testing.T) {
	defaults := testConfig{
		Transport: "http",
		Timeout:   30,
		Endpoints: []string{"Me", "Schools"},
	}

	cfg, err := ReadConfigWithDefaults(filepath.Join(t.TempDir(), "librus.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, defaults, cfg)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "librus.json5"), `{headed: true, timeout_seconds: 5}`)
	cfg, err = ReadConfigWithDefaults(filepath.Join(dir, "librus.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, testConfig{
		Transport: "http",
		Timeout:   5,
		Headed:    true,
		Endpoints: []string{"Me", "Schools"},
	}, cfg)
}

type toggleConfig struct {
	Rate   *float64 `json:"requests_per_second"`
	Strict *bool    `json:"strict_login"`
	Name   string   `json:"name"`
}

func TestReadConfigWithDefaultsKeepsExplicitZero(t *testing.T) {
	two := 2.0
	defaults := toggleConfig{Rate: &two, Name: "default"}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "librus.json5"), `{requests_per_second: 0, strict_login: true}`)
	writeFile(t, filepath.Join(dir, "librus.local.json5"), `{strict_login: false}`)

	cfg, err := ReadConfigWithDefaults(filepath.Join(dir, "librus.json5"), defaults)
	require.NoError(t, err)
	require.NotNil(t, cfg.Rate)
	require.Equal(t, 0.0, *cfg.Rate)
	require.NotNil(t, cfg.Strict)
	require.False(t, *cfg.Strict)
	require.Equal(t, "default", cfg.Name)
	require.Equal(t, 2.0, two, "defaults must not be written through")

	cfg, err = ReadConfigWithDefaults(filepath.Join(t.TempDir(), "librus.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, 2.0, *cfg.Rate)
	require.Nil(t, cfg.Strict)
}

func TestReadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "librus.json5"), `{transport: `)
	_, err := ReadConfig[testConfig](filepath.Join(dir, "librus.json5"))
	require.Error(t, err)
	require.False(t, os.IsNotExist(err))
}
