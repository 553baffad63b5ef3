// Package config loads and migrates the gateway's TOML configuration:
// the server address, the model map, the recursive workflow plan, and
// the timeout profile used by the workflow engine.
package config

import "time"

// Config is the top-level configuration document.
type Config struct {
	Server              ServerConfig              `toml:"server"`
	Models              []ModelConfig             `toml:"model"`
	WorkflowIntegration WorkflowIntegrationConfig `toml:"workflow-integration"`
	Workflow            WorkflowConfig            `toml:"workflow"`
}

// ServerConfig is the listen address for the HTTP adapter.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ModelConfig names one callable upstream: its base URL, credential, and
// optional fixed or auto-resolved temperature.
type ModelConfig struct {
	Name            string   `toml:"name"`
	APIBase         string   `toml:"api_base"`
	APIKey          string   `toml:"api_key"`
	AutoTemperature bool     `toml:"auto_temperature"`
	Temperature     *float64 `toml:"temperature"`
}

// WorkflowIntegrationConfig carries the recursive plan tree. JSON holds the
// plan encoded as a JSON string, the form every config on disk uses; a
// future structured-embedded form can be added as an alternate field
// without changing this one's meaning.
type WorkflowIntegrationConfig struct {
	NestedWorkerDepth int    `toml:"nested_worker_depth"`
	JSON              string `toml:"json"`
}

// WorkflowConfig holds the default stage timeouts and any per-host overrides.
type WorkflowConfig struct {
	Timeouts WorkflowTimeouts          `toml:"timeouts"`
	Domains  map[string]DomainOverride `toml:"domains"`
}

// WorkflowTimeouts are the default per-stage deadlines, in seconds.
type WorkflowTimeouts struct {
	AnalyzerTimeoutSecs    int64 `toml:"analyzer_timeout_secs"`
	WorkerTimeoutSecs      int64 `toml:"worker_timeout_secs"`
	SynthesizerTimeoutSecs int64 `toml:"synthesizer_timeout_secs"`
}

// DomainOverride partially overrides the default timeouts for one host.
// Unset fields fall back to the defaults.
type DomainOverride struct {
	AnalyzerTimeoutSecs    *int64 `toml:"analyzer_timeout_secs"`
	WorkerTimeoutSecs      *int64 `toml:"worker_timeout_secs"`
	SynthesizerTimeoutSecs *int64 `toml:"synthesizer_timeout_secs"`
}

const (
	defaultAnalyzerTimeoutSecs    = 30
	defaultWorkerTimeoutSecs      = 60
	defaultSynthesizerTimeoutSecs = 60
)

// ResolvedTimeouts is the timeout profile for one request, after applying
// any domain override.
type ResolvedTimeouts struct {
	Analyzer    time.Duration
	Worker      time.Duration
	Synthesizer time.Duration
}

// TimeoutsFor resolves the effective timeouts for the given upstream host,
// falling back field-by-field to the workflow defaults when no override
// (or a partial override) is configured for that host.
func (c *Config) TimeoutsFor(host string) ResolvedTimeouts {
	defaults := c.Workflow.Timeouts
	analyzer, worker, synth := defaults.AnalyzerTimeoutSecs, defaults.WorkerTimeoutSecs, defaults.SynthesizerTimeoutSecs

	if override, ok := c.Workflow.Domains[host]; ok {
		if override.AnalyzerTimeoutSecs != nil {
			analyzer = *override.AnalyzerTimeoutSecs
		}
		if override.WorkerTimeoutSecs != nil {
			worker = *override.WorkerTimeoutSecs
		}
		if override.SynthesizerTimeoutSecs != nil {
			synth = *override.SynthesizerTimeoutSecs
		}
	}

	return ResolvedTimeouts{
		Analyzer:    time.Duration(analyzer) * time.Second,
		Worker:      time.Duration(worker) * time.Second,
		Synthesizer: time.Duration(synth) * time.Second,
	}
}

// ModelByName returns the configured model with the given name, if any.
func (c *Config) ModelByName(name string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// ValidateModelRefs reports an error naming every ref in refs that is not
// a configured model. Callers pass the set of model names a parsed plan
// references (analyzer, every worker leaf, selector, synthesizer).
func (c *Config) ValidateModelRefs(refs []string) error {
	known := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		known[m.Name] = true
	}

	var missing []string
	for _, ref := range refs {
		if !known[ref] {
			missing = append(missing, ref)
		}
	}
	if len(missing) > 0 {
		return missingModelsError(missing)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 11435},
		Models: nil,
		WorkflowIntegration: WorkflowIntegrationConfig{
			NestedWorkerDepth: 1,
			JSON:              `{"analyzer":{"ref":"default"},"workers":[],"selector":{"ref":"default"}}`,
		},
		Workflow: WorkflowConfig{
			Timeouts: WorkflowTimeouts{
				AnalyzerTimeoutSecs:    defaultAnalyzerTimeoutSecs,
				WorkerTimeoutSecs:      defaultWorkerTimeoutSecs,
				SynthesizerTimeoutSecs: defaultSynthesizerTimeoutSecs,
			},
			Domains: map[string]DomainOverride{},
		},
	}
}

// applyDefaults backfills zero-value timeout fields, the way a hand-edited
// config omitting the [workflow.timeouts] table would otherwise leave a
// stage with a zero deadline that fires instantly.
func (c *Config) applyDefaults() {
	if c.Workflow.Timeouts.AnalyzerTimeoutSecs == 0 {
		c.Workflow.Timeouts.AnalyzerTimeoutSecs = defaultAnalyzerTimeoutSecs
	}
	if c.Workflow.Timeouts.WorkerTimeoutSecs == 0 {
		c.Workflow.Timeouts.WorkerTimeoutSecs = defaultWorkerTimeoutSecs
	}
	if c.Workflow.Timeouts.SynthesizerTimeoutSecs == 0 {
		c.Workflow.Timeouts.SynthesizerTimeoutSecs = defaultSynthesizerTimeoutSecs
	}
	if c.Workflow.Domains == nil {
		c.Workflow.Domains = map[string]DomainOverride{}
	}
}
