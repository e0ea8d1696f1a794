package model

import (
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

// Enum helpers.
const (
	PlatformHTTPAPI = "httpapi"
	PlatformSim     = "sim"

	ServiceModeManual = "manual"
	ServiceModeTimer  = "timer"

	ReportStylePlain = "plain"
	ReportStyleQuiet = "quiet"
)

// Hard defaults, matching the documented pipeline behaviour.
const (
	DefaultValidators   = 75
	DefaultWorkers      = 50
	DefaultCooldownSecs = 300
	DefaultTimeoutSecs  = 3
	DefaultPollMillis   = 500
	DefaultCandidateCap = 10000
	DefaultArchiveDays  = 30
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version  int       `json:"version" yaml:"version"` // fixed 0 for now
	Source   Source    `json:"source" yaml:"source"`
	Jobs     Jobs      `json:"jobs" yaml:"jobs"`
	Platform Platform  `json:"platform" yaml:"platform"`
	Pipeline *Pipeline `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	Report   *Report   `json:"report,omitempty" yaml:"report,omitempty"`
	Service  Service   `json:"service" yaml:"service"`
}

// Source describes where proxy candidates come from. At most one of
// url / file / archive should be enabled; flags may override all of it.
type Source struct {
	URL     *string  `json:"url,omitempty" yaml:"url,omitempty"`
	File    *string  `json:"file,omitempty" yaml:"file,omitempty"`
	Archive *Archive `json:"archive,omitempty" yaml:"archive,omitempty"`
	Cap     *int     `json:"cap,omitempty" yaml:"cap,omitempty"` // nil => 10000
}

// Archive is the dated proxy-archive API fallback.
type Archive struct {
	Enabled *bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	URL     *string `json:"url,omitempty" yaml:"url,omitempty"`
	Days    *int    `json:"days,omitempty" yaml:"days,omitempty"` // how far back to walk
}

type Jobs struct {
	IDs       []string `json:"ids,omitempty" yaml:"ids,omitempty"`
	Target    int64    `json:"target" yaml:"target"`
	Blacklist []string `json:"blacklist,omitempty" yaml:"blacklist,omitempty"`
}

// Platform selects the adapter that knows how to query a job's progress
// and issue the proxied action. The httpapi kind keeps every
// target-specific URL and form field in configuration.
type Platform struct {
	Kind          string            `json:"kind" yaml:"kind"` // "httpapi" | "sim"
	InfoURL       *string           `json:"info_url,omitempty" yaml:"info_url,omitempty"`
	ProgressURL   *string           `json:"progress_url,omitempty" yaml:"progress_url,omitempty"`
	ProgressField *string           `json:"progress_field,omitempty" yaml:"progress_field,omitempty"`
	ActionURL     *string           `json:"action_url,omitempty" yaml:"action_url,omitempty"`
	Method        *string           `json:"method,omitempty" yaml:"method,omitempty"` // "GET" | "POST"
	Params        map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	ProbeURL      *string           `json:"probe_url,omitempty" yaml:"probe_url,omitempty"`
}

type Pipeline struct {
	Validators *int `json:"validators,omitempty" yaml:"validators,omitempty"`
	Workers    *int `json:"workers,omitempty" yaml:"workers,omitempty"`
	Cooldown   *int `json:"cooldown,omitempty" yaml:"cooldown,omitempty"` // seconds
	Timeout    *int `json:"timeout,omitempty" yaml:"timeout,omitempty"`   // seconds
	PollMillis *int `json:"poll_ms,omitempty" yaml:"poll_ms,omitempty"`
}

type Report struct {
	Style *string `json:"style,omitempty" yaml:"style,omitempty"` // "plain" | "quiet"
}

// Service mirrors the run modes: manual is a one-shot run, timer re-runs
// the pipeline on a cron schedule.
type Service struct {
	Mode     string  `json:"mode" yaml:"mode"`
	Schedule *string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Verbose  *bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		Source: Source{
			URL: ptr(""),
		},
		Jobs: Jobs{},
		Platform: Platform{
			Kind: PlatformSim,
		},
		Service: Service{
			Mode: ServiceModeManual,
		},
	}
}

// LoadConfig validates YAML from r against the embedded CUE schema and
// decodes it into Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}

func (c Config) Validators() int {
	if c.Pipeline != nil && c.Pipeline.Validators != nil {
		return *c.Pipeline.Validators
	}
	return DefaultValidators
}

func (c Config) Workers() int {
	if c.Pipeline != nil && c.Pipeline.Workers != nil {
		return *c.Pipeline.Workers
	}
	return DefaultWorkers
}

func (c Config) Cooldown() time.Duration {
	if c.Pipeline != nil && c.Pipeline.Cooldown != nil {
		return time.Duration(*c.Pipeline.Cooldown) * time.Second
	}
	return DefaultCooldownSecs * time.Second
}

func (c Config) Timeout() time.Duration {
	if c.Pipeline != nil && c.Pipeline.Timeout != nil {
		return time.Duration(*c.Pipeline.Timeout) * time.Second
	}
	return DefaultTimeoutSecs * time.Second
}

func (c Config) Poll() time.Duration {
	if c.Pipeline != nil && c.Pipeline.PollMillis != nil {
		return time.Duration(*c.Pipeline.PollMillis) * time.Millisecond
	}
	return DefaultPollMillis * time.Millisecond
}

func (c Config) CandidateCap() int {
	if c.Source.Cap != nil {
		return *c.Source.Cap
	}
	return DefaultCandidateCap
}

func (c Config) ReportStyle() string {
	if c.Report != nil && c.Report.Style != nil {
		return *c.Report.Style
	}
	return ReportStylePlain
}

func (c Config) Verbose() bool {
	return c.Service.Verbose != nil && *c.Service.Verbose
}

func ptr[T any](v T) *T {
	return &v
}
