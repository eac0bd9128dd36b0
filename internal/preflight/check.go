package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/mailsearch/internal/embed"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// UnmarshalText parses a name written by MarshalText.
func (s *CheckStatus) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "PASS":
		*s = StatusPass
	case "WARN":
		*s = StatusWarn
	case "FAIL":
		*s = StatusFail
	default:
		return fmt.Errorf("unknown check status %q", text)
	}
	return nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target is what RunAll inspects. Empty fields skip their checks.
type Target struct {
	DataDir string
	Maildir string

	// OpenStore opens and closes the configured store.
	OpenStore func(ctx context.Context) error

	Provider embed.Provider
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a Checker writing to stdout.
func New(opts ...Option) *Checker {
	c := &Checker{output: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check that applies to t.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	var results []CheckResult

	if t.DataDir != "" {
		results = append(results, c.CheckWritePermissions(t.DataDir))
		results = append(results, c.CheckDiskSpace(t.DataDir))
	}
	results = append(results, c.CheckFileDescriptors())
	results = append(results, c.CheckMaildir(t.Maildir))
	if t.OpenStore != nil {
		results = append(results, c.CheckStore(ctx, t.OpenStore))
	}
	if t.Provider != nil {
		results = append(results, c.CheckProvider(ctx, t.Provider))
	}

	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "ready_with_warnings" or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || r.Status == StatusFail {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "mailsearch system check")
	_, _ = fmt.Fprintln(c.output, "=======================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Details != "" && (c.verbose || r.Status != StatusPass) {
			_, _ = fmt.Fprintf(c.output, "       %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckWritePermissions creates dir if needed and writes a marker file in it.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{Name: "data_dir_writable", Required: true}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}
	marker := filepath.Join(dir, ".mailsearch-preflight")
	f, err := os.Create(marker)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(marker)

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckStore opens the store through open.
func (c *Checker) CheckStore(ctx context.Context, open func(ctx context.Context) error) CheckResult {
	result := CheckResult{Name: "store", Required: true}
	if err := open(ctx); err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckProvider reports whether semantic search can run. An unavailable
// provider only degrades search, so it is a warning.
func (c *Checker) CheckProvider(ctx context.Context, p embed.Provider) CheckResult {
	result := CheckResult{Name: "embedding_provider", Message: p.Name()}

	if p.Available(ctx) {
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s (%d dimensions)", p.Name(), p.Dimensions())
		return result
	}

	result.Status = StatusWarn
	result.Message = fmt.Sprintf("%s unavailable; semantic search returns no results", p.Name())
	if gov, ok := embed.QuotaOf(p); ok {
		if snap := gov.Snapshot(); snap.State == embed.QuotaCooldown {
			result.Details = fmt.Sprintf("quota cooldown until %s", snap.CooldownUntil.Format("2006-01-02 15:04:05 MST"))
		}
	}
	return result
}
