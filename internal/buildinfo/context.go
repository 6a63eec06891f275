// Package buildinfo holds build-time metadata and configuration validation
// results, kept apart from user configuration.
package buildinfo

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// systemNamespace seeds the deterministic per-host system ID.
var systemNamespace = uuid.MustParse("5b0f6f2e-8c1a-4d57-9a43-2f6c1e0a7d11")

// BuildInfo provides access to build-time metadata.
type BuildInfo interface {
	Version() string
	BuildDate() string
	SystemID() string
}

// Context carries build metadata injected via -ldflags at startup.
type Context struct {
	version   string
	buildDate string
	systemID  string
}

// NewContext creates build metadata. An empty systemID is derived from the host name.
func NewContext(version, buildDate, systemID string) *Context {
	if systemID == "" {
		systemID = hostSystemID()
	}
	return &Context{version: version, buildDate: buildDate, systemID: systemID}
}

// Version returns the release tag.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns when the binary was built.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// SystemID identifies this installation in telemetry and as the MQTT client suffix.
func (c *Context) SystemID() string {
	if c == nil || c.systemID == "" {
		return UnknownValue
	}
	return c.systemID
}

// String renders "aerodesk <version> (built <date>)".
func (c *Context) String() string {
	return fmt.Sprintf("aerodesk %s (built %s)", c.Version(), c.BuildDate())
}

func hostSystemID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(systemNamespace, []byte(host)).String()
}

// ValidationResult holds validation outcomes separately from configuration.
type ValidationResult struct {
	// Warnings don't prevent startup
	Warnings []string `json:"warnings,omitempty"`
	// Errors should prevent startup
	Errors []string `json:"errors,omitempty"`
	Valid  bool     `json:"valid"`
}

// NewValidationResult creates a passing result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// AddWarning records a non-fatal issue.
func (r *ValidationResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// AddError records a fatal issue and marks the result invalid.
func (r *ValidationResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

// HasIssues reports whether there are any warnings or errors.
func (r *ValidationResult) HasIssues() bool {
	return len(r.Warnings) > 0 || len(r.Errors) > 0
}
