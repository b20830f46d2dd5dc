package model

import (
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"

	DefaultBinary = "vol.py"
	DefaultModule = "test"
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
}

type Config struct {
	Version    int        `json:"version" yaml:"version"` // fixed 0 for now
	Volatility Volatility `json:"volatility" yaml:"volatility"`
	Service    Service    `json:"service" yaml:"service"`
}

// Volatility configures the analysis tool and the tasks running it.
type Volatility struct {
	Binary        *string  `json:"binary,omitempty" yaml:"binary,omitempty"`           // path or name, vol.py by default
	Modules       []string `json:"modules,omitempty" yaml:"modules,omitempty"`         // one task per module
	OutputDir     *string  `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`   // nil => os.TempDir
	MaxReportSize *int64   `json:"max_report_size,omitempty" yaml:"max_report_size,omitempty"`
	Timeout       *string  `json:"timeout,omitempty" yaml:"timeout,omitempty"` // time.ParseDuration format
	Parallelism   *int     `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`
}

type Service struct {
	Verbose    *bool       `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Log        *string     `json:"log,omitempty" yaml:"log,omitempty"` // "stderr"|"stdout"|"discard"
	Dir        *string     `json:"dir,omitempty" yaml:"dir,omitempty"` // BOM output directory
	Repository *Repository `json:"repository,omitempty" yaml:"repository,omitempty"`
}

// Repository is a remote BOM repository the results are published to.
type Repository struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	URL     string `json:"url" yaml:"url"`
}

// DefaultConfig returns the configuration stored when no config file exists.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		Volatility: Volatility{
			Binary:  ptr(DefaultBinary),
			Modules: []string{DefaultModule},
		},
		Service: Service{
			Verbose: ptr(false),
			Log:     ptr(LogStderr),
		},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
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

	if _, err := out.Volatility.TimeoutDuration(); err != nil {
		return Config{}, err
	}

	return out, nil
}

// ModuleNames returns configured modules or the default one.
func (v Volatility) ModuleNames() []string {
	if len(v.Modules) == 0 {
		return []string{DefaultModule}
	}
	return v.Modules
}

// TimeoutDuration returns parsed volatility.timeout, zero means no timeout.
func (v Volatility) TimeoutDuration() (time.Duration, error) {
	if v.Timeout == nil {
		return 0, nil
	}
	d, err := time.ParseDuration(*v.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing volatility.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("volatility.timeout must not be negative: %s", *v.Timeout)
	}
	return d, nil
}

// Get returns a value a pointer points to or a zero value of the type.
func Get[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func ptr[T any](v T) *T {
	return &v
}
