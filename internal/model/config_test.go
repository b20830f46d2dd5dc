package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/Recall/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
volatility:
  binary: /opt/volatility/vol.py
  modules:
    - pslist
    - netscan
  output_dir: /var/lib/recall
  max_report_size: 1024
  timeout: 30m
  parallelism: 2
service:
  log: stderr
  repository:
    enabled: true
    url: https://example.com/repo
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, "/opt/volatility/vol.py", model.Get(cfg.Volatility.Binary))
	require.Equal(t, []string{"pslist", "netscan"}, cfg.Volatility.ModuleNames())
	require.Equal(t, "/var/lib/recall", model.Get(cfg.Volatility.OutputDir))
	require.Equal(t, int64(1024), model.Get(cfg.Volatility.MaxReportSize))
	require.Equal(t, 2, model.Get(cfg.Volatility.Parallelism))
	timeout, err := cfg.Volatility.TimeoutDuration()
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, timeout)

	require.Equal(t, model.LogStderr, model.Get(cfg.Service.Log))
	require.NotNil(t, cfg.Service.Repository)
	require.True(t, model.Get(cfg.Service.Repository.Enabled))
	require.Equal(t, "https://example.com/repo", cfg.Service.Repository.URL)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := model.LoadConfig(strings.NewReader("version: 0\n"))
	require.NoError(t, err)
	require.Equal(t, []string{model.DefaultModule}, cfg.Volatility.ModuleNames())
	require.Nil(t, cfg.Volatility.Binary)
	timeout, err := cfg.Volatility.TimeoutDuration()
	require.NoError(t, err)
	require.Zero(t, timeout)
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    string
		path     string
	}{
		{
			scenario: "missing repository url",
			given: `
version: 0
service:
  repository:
    enabled: true
`,
			path: "service.repository.url",
		},
		{
			scenario: "unknown field",
			given: `
version: 0
volatility:
  plugin: pslist
`,
			path: "volatility.plugin",
		},
		{
			scenario: "negative size",
			given: `
version: 0
volatility:
  max_report_size: -1
`,
			path: "volatility.max_report_size",
		},
		{
			scenario: "size above 1 GiB",
			given: `
version: 0
volatility:
  max_report_size: 1073741825
`,
			path: "volatility.max_report_size",
		},
		{
			scenario: "empty modules",
			given: `
version: 0
volatility:
  modules: []
`,
			path: "volatility.modules",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := model.LoadConfig(strings.NewReader(tc.given))
			require.Error(t, err)
			details := model.CueErrDetails(err)
			require.NotEmpty(t, details)
			var paths []string
			for _, d := range details {
				paths = append(paths, d.Path)
			}
			require.Contains(t, paths, tc.path)
		})
	}
}

func TestLoadConfig_Timeout(t *testing.T) {
	yml := `
version: 0
volatility:
  timeout: forever
`
	_, err := model.LoadConfig(strings.NewReader(yml))
	require.Error(t, err)
	require.ErrorContains(t, err, "parsing volatility.timeout")
}
