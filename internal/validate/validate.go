// Package validate checks inbound requests before they reach providers or the
// filesystem.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/EditMySave/HyOS-sub001/internal/provider"
	"github.com/EditMySave/HyOS-sub001/internal/settings"
)

// Severity classifies validation issues.
type Severity int

const (
	SeverityError   Severity = iota // Rejects the request
	SeverityWarning                 // Reported but the request proceeds
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// MarshalText renders the severity as "error" or "warning".
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Issue represents a single validation problem.
type Issue struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	sev := "ERROR"
	if i.Severity == SeverityWarning {
		sev = "WARN"
	}
	return fmt.Sprintf("[%s] %s: %s", sev, i.Field, i.Message)
}

// Result holds all validation issues.
type Result struct {
	Issues []Issue
}

func (r *Result) errorf(field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityError, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) warnf(field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityWarning, Field: field, Message: fmt.Sprintf(format, args...)})
}

// HasErrors returns true if there are any blocking errors.
func (r *Result) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (r *Result) Errors() []Issue {
	var errs []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			errs = append(errs, i)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (r *Result) Warnings() []Issue {
	var warns []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityWarning {
			warns = append(warns, i)
		}
	}
	return warns
}

const (
	MaxQueryLength = 200
	maxKeyLength   = 512
	maxModIDLength = 128
)

// SearchParams checks a search request. Unset sort and page size are
// accepted; Normalize fills them later.
func SearchParams(p provider.SearchParams) *Result {
	r := &Result{}

	if n := utf8.RuneCountInString(p.Query); n > MaxQueryLength {
		r.errorf("query", "must be at most %d characters, got %d", MaxQueryLength, n)
	}
	if p.Page < 0 {
		r.errorf("page", "must be >= 0, got %d", p.Page)
	}
	if p.PageSize < 0 || p.PageSize > provider.MaxPageSize {
		r.errorf("pageSize", "must be between 1 and %d, got %d", provider.MaxPageSize, p.PageSize)
	}
	if p.Sort != "" && !knownSort(p.Sort) {
		r.errorf("sort", "unknown sort %q", p.Sort)
	}
	seen := make(map[provider.ID]bool, len(p.Providers))
	for i, id := range p.Providers {
		field := fmt.Sprintf("providers[%d]", i)
		if id.Priority() < 0 {
			r.errorf(field, "unknown provider %q", id)
			continue
		}
		if seen[id] {
			r.warnf(field, "duplicate provider %q", id)
		}
		seen[id] = true
	}
	for i, c := range p.Categories {
		if strings.TrimSpace(c) == "" {
			r.errorf(fmt.Sprintf("categories[%d]", i), "must not be empty")
		}
	}

	return r
}

// Install checks an install request.
func Install(providerID string, v *provider.Version) *Result {
	r := &Result{}
	checkProvider(r, "provider", providerID)
	if v == nil {
		r.errorf("version", "is required")
		return r
	}
	if strings.TrimSpace(v.FileID) == "" {
		r.errorf("version.fileId", "is required")
	}
	if strings.TrimSpace(v.FileName) == "" {
		r.warnf("version.fileName", "is empty, the provider's name will be used")
	}
	return r
}

// Link checks a request attaching an installed archive to a provider mod.
func Link(providerID, providerModID string) *Result {
	r := &Result{}
	checkProvider(r, "provider", providerID)
	switch {
	case strings.TrimSpace(providerModID) == "":
		r.errorf("providerModId", "is required")
	case len(providerModID) > maxModIDLength:
		r.errorf("providerModId", "must be at most %d characters", maxModIDLength)
	}
	return r
}

// SettingsUpdate checks a provider settings change.
func SettingsUpdate(providerID string, u settings.Update) *Result {
	r := &Result{}
	checkProvider(r, "provider", providerID)
	if u.Enabled == nil && u.APIKey == nil {
		r.errorf("enabled", "is required")
	}
	if u.APIKey != nil {
		key := *u.APIKey
		if len(key) > maxKeyLength {
			r.errorf("apiKey", "must be at most %d characters", maxKeyLength)
		}
		if key != strings.TrimSpace(key) {
			r.errorf("apiKey", "must not have leading or trailing whitespace")
		}
	}
	return r
}

func checkProvider(r *Result, field, id string) {
	if id == "" {
		r.errorf(field, "is required")
		return
	}
	if _, err := provider.ParseID(id); err != nil {
		r.errorf(field, "unknown provider %q", id)
	}
}

func knownSort(s provider.SortOrder) bool {
	for _, known := range provider.Sorts {
		if s == known {
			return true
		}
	}
	return false
}

// FormatResult formats validation results for display.
func FormatResult(r *Result) string {
	if len(r.Issues) == 0 {
		return "Validation passed: no issues found."
	}

	var b strings.Builder
	errors := r.Errors()
	warnings := r.Warnings()

	if len(errors) > 0 {
		b.WriteString(fmt.Sprintf("Errors (%d):\n", len(errors)))
		for _, e := range errors {
			b.WriteString(fmt.Sprintf("  %s\n", e))
		}
	}

	if len(warnings) > 0 {
		b.WriteString(fmt.Sprintf("Warnings (%d):\n", len(warnings)))
		for _, w := range warnings {
			b.WriteString(fmt.Sprintf("  %s\n", w))
		}
	}

	return b.String()
}
