package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0x6flab/namegenerator"
)

const maxSessionSamples = 5000

type SessionStatus struct {
	Active      bool   `json:"active"`
	SessionName string `json:"session_name"`
	StartedUTC  string `json:"started_utc"`
	EndedUTC    string `json:"ended_utc"`
	SampleCount int    `json:"sample_count"`
}

// Recorder keeps a bounded in-memory log of snapshot samples while a session
// is active.
type Recorder struct {
	baseDir string
	now     func() time.Time
	namegen namegenerator.NameGenerator

	active     bool
	name       string
	startedUTC string
	endedUTC   string
	samples    []map[string]any
}

type RecorderOption func(*Recorder)

func WithRecorderBaseDir(dir string) RecorderOption {
	return func(r *Recorder) { r.baseDir = dir }
}

func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		baseDir: ".",
		now:     time.Now,
		namegen: namegenerator.NewGenerator(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Recorder) Start(sessionName string) SessionStatus {
	r.active = true
	r.name = strings.TrimSpace(sessionName)
	if r.name == "" {
		r.name = r.namegen.Generate()
	}
	r.startedUTC = r.now().UTC().Format(time.RFC3339)
	r.endedUTC = ""
	r.samples = nil

	return r.Status()
}

func (r *Recorder) Stop() SessionStatus {
	r.active = false
	r.endedUTC = r.now().UTC().Format(time.RFC3339)

	return r.Status()
}

// RecordSample appends one snapshot when active; the logs section is dropped
// to keep samples small.
func (r *Recorder) RecordSample(sample map[string]any) {
	if !r.active {
		return
	}
	compact := make(map[string]any, len(sample))
	for k, v := range sample {
		if k == "logs" {
			continue
		}
		compact[k] = v
	}
	r.samples = append(r.samples, compact)
	for len(r.samples) > maxSessionSamples {
		r.samples = r.samples[1:]
	}
}

func (r *Recorder) Status() SessionStatus {
	return SessionStatus{
		Active:      r.active,
		SessionName: r.name,
		StartedUTC:  r.startedUTC,
		EndedUTC:    r.endedUTC,
		SampleCount: len(r.samples),
	}
}

// Export writes the recorded samples to sessions/<name>_<ts>.{json,yaml}.
func (r *Recorder) Export(format string) ExportResult {
	if len(r.samples) == 0 {
		return ExportResult{Success: false, Error: "No recorded samples to export."}
	}

	ext := "json"
	if strings.EqualFold(strings.TrimSpace(format), "yaml") {
		ext = "yaml"
	}
	dir := filepath.Join(r.baseDir, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportResult{Success: false, Error: err.Error()}
	}

	stamp := r.now().UTC().Format("20060102_150405")
	path := filepath.Join(dir, r.name+"_"+stamp+"."+ext)

	payload := map[string]any{
		"session_name": r.name,
		"started_utc":  r.startedUTC,
		"ended_utc":    r.endedUTC,
		"samples":      r.samples,
	}

	var encoded []byte
	if ext == "json" {
		var err error
		encoded, err = json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return ExportResult{Success: false, Path: path, Error: err.Error()}
		}
	} else {
		text, err := ToYAML(payload)
		if err != nil {
			return ExportResult{Success: false, Path: path, Error: err.Error()}
		}
		encoded = []byte(text)
	}

	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return ExportResult{Success: false, Path: path, Error: "Failed to open session file."}
	}

	return ExportResult{Success: true, Path: path, Format: ext}
}
