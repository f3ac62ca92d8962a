package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/00PrabalK00/RosScope/health"
	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/sampler"
	"github.com/00PrabalK00/RosScope/sysmon"
)

// Record is the canonical exportable snapshot with stable key order.
type Record struct {
	TimestampUTC string                   `json:"timestamp_utc"`
	PresetName   string                   `json:"preset_name,omitempty"`
	Processes    []sampler.Record         `json:"processes"`
	Domains      []inspector.DomainDetail `json:"domains"`
	Graph        inspector.Graph          `json:"graph"`
	TfNav2       inspector.TfNav2         `json:"tf_nav2"`
	Parameters   map[string]string        `json:"parameters"`
	System       sysmon.Snapshot          `json:"system"`
	Health       health.Report            `json:"health"`
	Advanced     any                      `json:"advanced,omitempty"`
	Fleet        any                      `json:"fleet,omitempty"`
	Session      any                      `json:"session,omitempty"`
	Watchdog     any                      `json:"watchdog,omitempty"`
}

type ExportResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	Format  string `json:"format,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Manager assembles canonical snapshots and exports them under
// <baseDir>/snapshots.
type Manager struct {
	baseDir string
	now     func() time.Time
}

type ManagerOption func(*Manager)

func WithBaseDir(dir string) ManagerOption {
	return func(m *Manager) { m.baseDir = dir }
}

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{baseDir: ".", now: time.Now}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Manager) BuildSnapshot(
	processes []sampler.Record,
	domains []inspector.DomainDetail,
	graph inspector.Graph,
	tfNav2 inspector.TfNav2,
	system sysmon.Snapshot,
	healthReport health.Report,
	parameters map[string]string,
) Record {
	return Record{
		TimestampUTC: m.now().UTC().Format(time.RFC3339),
		Processes:    processes,
		Domains:      domains,
		Graph:        graph,
		TfNav2:       tfNav2,
		Parameters:   parameters,
		System:       system,
		Health:       healthReport,
	}
}

// ExportSnapshot writes the record to snapshots/rosscope_snapshot_<ts>.<ext>.
func (m *Manager) ExportSnapshot(record Record, format string) ExportResult {
	ext := "json"
	if strings.EqualFold(strings.TrimSpace(format), "yaml") {
		ext = "yaml"
	}

	dir := filepath.Join(m.baseDir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportResult{Success: false, Error: err.Error()}
	}

	stamp := m.now().UTC().Format("20060102_150405")
	path := filepath.Join(dir, "rosscope_snapshot_"+stamp+"."+ext)

	var payload []byte
	if ext == "json" {
		var err error
		payload, err = json.MarshalIndent(record, "", "  ")
		if err != nil {
			return ExportResult{Success: false, Path: path, Error: err.Error()}
		}
	} else {
		text, err := ToYAML(record)
		if err != nil {
			return ExportResult{Success: false, Path: path, Error: err.Error()}
		}
		payload = []byte(text)
	}

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return ExportResult{Success: false, Path: path, Error: "Failed to open snapshot file for writing."}
	}

	return ExportResult{Success: true, Path: path, Format: ext}
}
