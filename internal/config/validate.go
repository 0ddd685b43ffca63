package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/decode"
)

// Severity classifies an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the dotted JSON path of the
// offending field.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline checks p after defaults are applied and returns every
// problem found, errors first in field order.
func ValidatePipeline(p Pipeline) []Issue {
	p = p.WithDefaults()
	var issues []Issue
	errorf := func(path, format string, a ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(p.Source.Dir) == "" {
		errorf("source.dir", "must be set")
	}

	switch {
	case p.Storage.Kind == "":
		errorf("storage.kind", "must be set")
	case !slices.Contains(StorageKinds, strings.ToLower(p.Storage.Kind)):
		errorf("storage.kind", "unsupported kind %q (want one of %s)", p.Storage.Kind, strings.Join(StorageKinds, ", "))
	}
	if strings.TrimSpace(p.Storage.ExpandedDSN()) == "" {
		errorf("storage.dsn", "must be set (after environment expansion)")
	}

	if p.Load.Mode != ModeReplace && p.Load.Mode != ModeUpdate {
		errorf("load.mode", "must be %s or %s, got %q", ModeReplace, ModeUpdate, p.Load.Mode)
	}
	switch p.Load.TablePolicy {
	case "", TablePolicyReplace, TablePolicyCreateIfAbsent:
	default:
		errorf("load.table_policy", "must be %s or %s, got %q", TablePolicyReplace, TablePolicyCreateIfAbsent, p.Load.TablePolicy)
	}
	switch p.Load.WriteMode {
	case "", WriteModeInsert, WriteModeUpsert:
	default:
		errorf("load.write_mode", "must be %s or %s, got %q", WriteModeInsert, WriteModeUpsert, p.Load.WriteMode)
	}
	if p.Load.TablePolicy == TablePolicyCreateIfAbsent && p.Load.WriteMode == WriteModeInsert {
		warnf("load.write_mode", "insert into existing tables fails files whose keys are already loaded")
	}

	if len(p.Load.Encodings) > 0 {
		if _, err := decode.NewResolver(p.Load.Encodings); err != nil {
			errorf("load.encodings", "%v", err)
		}
	}

	tables := make([]string, 0, len(p.Load.KeyPolicies))
	for t := range p.Load.KeyPolicies {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		path := "load.key_policies." + t
		if strings.TrimSpace(t) == "" {
			errorf("load.key_policies", "table name must not be empty")
			continue
		}
		cands := p.Load.KeyPolicies[t]
		if len(cands) == 0 {
			errorf(path, "must list at least one column")
			continue
		}
		for i, c := range cands {
			if strings.TrimSpace(c) == "" {
				errorf(fmt.Sprintf("%s[%d]", path, i), "column must not be empty")
			}
		}
	}

	if p.Load.TextWidth < 0 {
		errorf("load.text_width", "must not be negative")
	}
	if p.Load.AllowKeylessReplace && p.Load.TablePolicy != TablePolicyReplace {
		warnf("load.allow_keyless_replace", "only applies with table_policy %s", TablePolicyReplace)
	}

	if p.Runtime.FileTransaction && p.Load.TablePolicy == TablePolicyReplace {
		warnf("runtime.file_transaction", "drop and create run outside the file transaction")
	}

	routes := make([]string, 0, len(p.Routes))
	for k := range p.Routes {
		routes = append(routes, k)
	}
	sort.Strings(routes)
	for _, k := range routes {
		if !strings.HasPrefix(k, "CRUCE_") && !strings.HasPrefix(k, "B002537_") {
			warnf("routes."+k, "key matches no input filename shape")
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity == SeverityError && issues[j].Severity != SeverityError
	})
	return issues
}
