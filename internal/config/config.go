// Package config holds the JSON pipeline configuration for the extract
// loader and its validation.
package config

import (
	"os"
	"strings"
)

// Load modes. A mode is a preset for table policy and write mode.
const (
	ModeReplace = "replace"
	ModeUpdate  = "update"
)

// Table policies and write modes as spelled in config files.
const (
	TablePolicyReplace        = "replace"
	TablePolicyCreateIfAbsent = "create_if_absent"

	WriteModeInsert = "insert"
	WriteModeUpsert = "upsert"
)

// Defaults applied by WithDefaults.
const (
	DefaultJob       = "extractload"
	DefaultBatchSize = 1000
	DefaultWorkers   = 1
)

// StorageKinds lists the backend kinds a config may name.
var StorageKinds = []string{"mssql", "mysql", "postgres", "sqlite"}

// Pipeline is the top-level config file.
type Pipeline struct {
	Job     string        `json:"job"`
	Source  Source        `json:"source"`
	Storage Storage       `json:"storage"`
	Load    Load          `json:"load"`
	Runtime RuntimeConfig `json:"runtime"`

	// Routes adds or overrides route keys (e.g. "CRUCE_FALLECIDOS") to
	// destination tables. An empty table removes the route.
	Routes map[string]string `json:"routes,omitempty"`
}

// Source is the input directory.
type Source struct {
	Dir string `json:"dir"`
}

// Storage selects the backend. DSN may reference environment variables as
// ${VAR}; see ExpandedDSN.
type Storage struct {
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// Load controls table and row semantics.
type Load struct {
	// Mode is "replace" or "update".
	Mode string `json:"mode"`

	// TablePolicy and WriteMode override the preset chosen by Mode.
	TablePolicy string `json:"table_policy,omitempty"`
	WriteMode   string `json:"write_mode,omitempty"`

	Encodings []string `json:"encodings,omitempty"`

	// KeyPolicies maps a table name to its ordered primary key candidates.
	// The "*" entry replaces the default candidates.
	KeyPolicies map[string][]string `json:"key_policies,omitempty"`

	AllowKeylessReplace bool `json:"allow_keyless_replace,omitempty"`

	// TextWidth is the width of text columns in created tables.
	TextWidth int `json:"text_width,omitempty"`
}

// RuntimeConfig controls execution.
type RuntimeConfig struct {
	BatchSize int `json:"batch_size"`
	Workers   int `json:"workers"`

	// FileTransaction loads each file in one transaction instead of one per batch.
	FileTransaction bool `json:"file_transaction"`

	// WriteCleaned writes a "_limpio" copy next to each input. nil means true.
	WriteCleaned *bool `json:"write_cleaned,omitempty"`

	DebugTimings bool `json:"debug_timings"`
}

// DefaultKeyPolicy is the key_policies entry that replaces the default candidates.
const DefaultKeyPolicy = "*"

// WithDefaults returns a copy of p with zero values filled in.
func (p Pipeline) WithDefaults() Pipeline {
	if strings.TrimSpace(p.Job) == "" {
		p.Job = DefaultJob
	}
	p.Load.Mode = strings.ToLower(strings.TrimSpace(p.Load.Mode))
	if p.Load.Mode == "" {
		p.Load.Mode = ModeUpdate
	}
	if p.Load.TablePolicy == "" || p.Load.WriteMode == "" {
		tp, wm := presetFor(p.Load.Mode)
		if p.Load.TablePolicy == "" {
			p.Load.TablePolicy = tp
		}
		if p.Load.WriteMode == "" {
			p.Load.WriteMode = wm
		}
	}
	if p.Runtime.BatchSize <= 0 {
		p.Runtime.BatchSize = DefaultBatchSize
	}
	if p.Runtime.Workers <= 0 {
		p.Runtime.Workers = DefaultWorkers
	}
	if p.Runtime.WriteCleaned == nil {
		t := true
		p.Runtime.WriteCleaned = &t
	}
	return p
}

// presetFor maps a mode to its table policy and write mode. Unknown modes
// yield empty strings and are reported by ValidatePipeline.
func presetFor(mode string) (tablePolicy, writeMode string) {
	switch mode {
	case ModeReplace:
		return TablePolicyReplace, WriteModeInsert
	case ModeUpdate:
		return TablePolicyCreateIfAbsent, WriteModeUpsert
	}
	return "", ""
}

// ExpandedDSN returns the DSN with ${VAR} and $VAR references replaced from
// the environment.
func (s Storage) ExpandedDSN() string { return os.ExpandEnv(s.DSN) }

// CleanedEnabled reports whether cleaned copies are written.
func (r RuntimeConfig) CleanedEnabled() bool {
	return r.WriteCleaned == nil || *r.WriteCleaned
}
