package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftlock/drover/internal/model"
)

const validConfig = `
version: 0
source:
    url: https://example.com/proxies.txt
    cap: 500
jobs:
    ids:
        - v17
        - v23
    target: 50
    blacklist:
        - v99
platform:
    kind: httpapi
    progress_url: https://example.com/api/item/{id}
    progress_field: data.count
    action_url: https://example.com/api/act
    params:
        item: "{id}"
pipeline:
    validators: 10
    workers: 5
    cooldown: 60
    timeout: 2
    poll_ms: 250
service:
    mode: manual
    verbose: true
`

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg, err := model.LoadConfig(strings.NewReader(validConfig))
	require.NoError(t, err)

	require.Equal(t, []string{"v17", "v23"}, cfg.Jobs.IDs)
	require.EqualValues(t, 50, cfg.Jobs.Target)
	require.Equal(t, model.PlatformHTTPAPI, cfg.Platform.Kind)
	require.Equal(t, 10, cfg.Validators())
	require.Equal(t, 5, cfg.Workers())
	require.Equal(t, time.Minute, cfg.Cooldown())
	require.Equal(t, 2*time.Second, cfg.Timeout())
	require.Equal(t, 250*time.Millisecond, cfg.Poll())
	require.Equal(t, 500, cfg.CandidateCap())
	require.True(t, cfg.Verbose())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	const minimal = `
version: 0
source:
    file: proxies.txt
jobs:
    target: 10
platform:
    kind: sim
service:
    mode: manual
`
	cfg, err := model.LoadConfig(strings.NewReader(minimal))
	require.NoError(t, err)

	require.Equal(t, model.DefaultValidators, cfg.Validators())
	require.Equal(t, model.DefaultWorkers, cfg.Workers())
	require.Equal(t, model.DefaultCooldownSecs*time.Second, cfg.Cooldown())
	require.Equal(t, model.DefaultTimeoutSecs*time.Second, cfg.Timeout())
	require.Equal(t, model.DefaultPollMillis*time.Millisecond, cfg.Poll())
	require.Equal(t, model.DefaultCandidateCap, cfg.CandidateCap())
	require.Equal(t, model.ReportStylePlain, cfg.ReportStyle())
	require.False(t, cfg.Verbose())
}

func TestLoadConfigRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bad platform kind": `
version: 0
source: {}
jobs:
    target: 1
platform:
    kind: teletype
service:
    mode: manual
`,
		"negative target": `
version: 0
source: {}
jobs:
    target: -5
platform:
    kind: sim
service:
    mode: manual
`,
		"bad service mode": `
version: 0
source: {}
jobs:
    target: 1
platform:
    kind: sim
service:
    mode: daemon
`,
		"unknown version": `
version: 7
source: {}
jobs:
    target: 1
platform:
    kind: sim
service:
    mode: manual
`,
	}

	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := model.LoadConfig(strings.NewReader(yaml))
			require.Error(t, err)
			require.NotEmpty(t, model.CueErrDetails(err))
		})
	}
}

func TestDefaultConfigRoundTrips(t *testing.T) {
	t.Parallel()

	// the config written on first run must load back cleanly
	cfg := model.DefaultConfig()
	require.Equal(t, model.PlatformSim, cfg.Platform.Kind)
	require.Equal(t, model.ServiceModeManual, cfg.Service.Mode)
}

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"*/5 * * * *", "0 3 * * 1", "@hourly", "@every 90m"} {
		require.NoError(t, model.ValidateSchedule(ok), ok)
	}
	for _, bad := range []string{"", "not a cron", "* * *", "61 * * * *"} {
		require.Error(t, model.ValidateSchedule(bad), bad)
	}
}
