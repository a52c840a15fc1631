package config

import "fmt"

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Issue is one validation finding, addressed by a dotted config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is fatal.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

var sourceKinds = map[string]bool{"csv": true, "html": true}

// ValidatePipeline checks a decoded pipeline for problems a run would hit.
// It returns all findings rather than stopping at the first, so a config
// can be fixed in one pass.
func ValidatePipeline(p *Pipeline) []Issue {
	var issues []Issue
	errf := func(path, format string, v ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, v...)})
	}
	warnf := func(path, format string, v ...any) {
		issues = append(issues, Issue{SeverityWarn, path, fmt.Sprintf(format, v...)})
	}

	if p.Source.Kind == "" {
		errf("source.kind", "required (csv or html)")
	} else if !sourceKinds[p.Source.Kind] {
		errf("source.kind", "unsupported kind %q", p.Source.Kind)
	}
	if p.Source.Path == "" {
		errf("source.path", "required")
	}

	if p.Storage.Kind == "" {
		errf("storage.kind", "required (postgres, sqlite or mssql)")
	}
	if p.Storage.DSN == "" {
		errf("storage.dsn", "required")
	}

	if p.Runtime.BatchSize < 0 {
		errf("runtime.batch_size", "must not be negative")
	}

	if err := p.Model.Validate(); err != nil {
		errf("model", "%v", err)
	}
	if p.Model.NaturalKeyColumn == "" {
		warnf("model.natural_key_column", "not set; fact keys will be synthesized sequence numbers")
	}

	return issues
}
