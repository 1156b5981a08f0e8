// Package simulator runs the scripted build-and-deploy preview shown after a
// visitor describes the site they want. Nothing real is built: each run
// replays a fixed log sequence and a progress bar on an injected scheduler.
package simulator

import (
	"encoding/json"
	"time"
)

// Severity classifies a log line.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityRun     Severity = "run"
	SeveritySuccess Severity = "success"
	SeverityWarn    Severity = "warn"
)

// LogEntry is one scripted log line. Delay is measured from the start of
// the building phase.
type LogEntry struct {
	Delay    time.Duration
	Message  string
	Severity Severity
}

// MarshalJSON encodes the delay in milliseconds.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DelayMS  int64    `json:"delay_ms"`
		Message  string   `json:"message"`
		Severity Severity `json:"severity"`
	}{
		DelayMS:  e.Delay.Milliseconds(),
		Message:  e.Message,
		Severity: e.Severity,
	})
}

func entry(ms int, sev Severity, msg string) LogEntry {
	return LogEntry{Delay: time.Duration(ms) * time.Millisecond, Message: msg, Severity: sev}
}

var defaultSequence = []LogEntry{
	entry(400, SeverityInfo, "Initializing build environment..."),
	entry(900, SeverityRun, "Analyzing prompt and extracting requirements..."),
	entry(1600, SeveritySuccess, "Detected: React + TypeScript + Tailwind stack"),
	entry(2200, SeverityRun, "Scaffolding project structure..."),
	entry(2900, SeveritySuccess, "Generated 14 component files"),
	entry(3500, SeverityRun, "Resolving dependencies..."),
	entry(4100, SeverityInfo, "Installing packages (npm install)..."),
	entry(5000, SeveritySuccess, "added 312 packages in 4.2s"),
	entry(5600, SeverityRun, "Compiling TypeScript sources..."),
	entry(6400, SeveritySuccess, "Running ESLint: 0 errors, 0 warnings"),
	entry(7100, SeverityRun, "Building production bundle..."),
	entry(8000, SeveritySuccess, "Bundle size: 142 kB (gzip: 48 kB)"),
	entry(8600, SeverityRun, "Provisioning Supabase database..."),
	entry(9400, SeverityInfo, "Running migrations (3 files)..."),
	entry(10200, SeveritySuccess, "RLS policies applied"),
	entry(10800, SeverityRun, "Configuring edge functions..."),
	entry(11600, SeverityRun, "Deploying to CDN nodes (12 regions)..."),
	entry(12400, SeveritySuccess, "SSL certificate issued"),
	entry(13000, SeveritySuccess, "DNS propagated successfully"),
	entry(13800, SeverityRun, "Running smoke tests..."),
	entry(14600, SeveritySuccess, "All 24 tests passed"),
	entry(15400, SeverityInfo, "Warming up serverless functions..."),
	entry(16200, SeveritySuccess, "Performance audit: 98 / 100"),
	entry(17000, SeveritySuccess, "Build complete. Finalizing deployment..."),
}

// DefaultSequence returns a copy of the scripted build log.
func DefaultSequence() []LogEntry {
	out := make([]LogEntry, len(defaultSequence))
	copy(out, defaultSequence)
	return out
}
