package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/00PrabalK00/RosScope/health"
	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/sysmon"
)

func fixedClock() func() time.Time {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	return func() time.Time { return at }
}

func recordWith(nodes, topics, domains []string, params map[string]string) Record {
	var record Record
	for _, n := range nodes {
		record.Graph.Nodes = append(record.Graph.Nodes, inspector.Node{FullName: n})
	}
	for _, t := range topics {
		record.Graph.Topics = append(record.Graph.Topics, inspector.Topic{Topic: t})
	}
	for _, d := range domains {
		record.Domains = append(record.Domains, inspector.DomainDetail{DomainID: d})
	}
	record.Parameters = params

	return record
}

func TestCompareSetDifferences(t *testing.T) {
	left := recordWith(
		[]string{"/a", "/b", "/c"},
		[]string{"/x", "/y"},
		[]string{"0"},
		map[string]string{"/a": "h1"},
	)
	right := recordWith(
		[]string{"/b", "/c", "/d"},
		[]string{"/y", "/z"},
		[]string{"0"},
		map[string]string{"/a": "h2"},
	)

	diff := Compare(left, right)
	assert.Equal(t, []string{"/d"}, diff.NodesAdded)
	assert.Equal(t, []string{"/a"}, diff.NodesRemoved)
	assert.Equal(t, []string{"/z"}, diff.TopicsAdded)
	assert.Equal(t, []string{"/x"}, diff.TopicsRemoved)
	assert.Equal(t, []string{"/a"}, diff.ParametersChanged)
	assert.Equal(t, 1, diff.Summary.NodesAdded)
	assert.Equal(t, 1, diff.Summary.ParametersChanged)
}

func TestCompareIsSymmetricInCounts(t *testing.T) {
	left := recordWith([]string{"/a", "/b"}, []string{"/x"}, []string{"0"}, nil)
	right := recordWith([]string{"/b", "/c", "/d"}, []string{"/x", "/y"}, []string{"0", "7"}, nil)

	forward := Compare(left, right)
	backward := Compare(right, left)
	assert.Equal(t, forward.Summary.NodesAdded, backward.Summary.NodesRemoved)
	assert.Equal(t, forward.Summary.NodesRemoved, backward.Summary.NodesAdded)
	assert.Equal(t, forward.Summary.TopicsAdded, backward.Summary.TopicsRemoved)
	assert.Equal(t, forward.Summary.DomainsAdded, backward.Summary.DomainsRemoved)
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	left := recordWith([]string{"/a"}, nil, []string{"0"}, nil)
	right := recordWith([]string{"/a", "/b"}, nil, []string{"0"}, nil)

	leftPath := filepath.Join(dir, "left.json")
	rightPath := filepath.Join(dir, "right.json")
	for path, record := range map[string]Record{leftPath: left, rightPath: right} {
		raw, err := json.Marshal(record)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, raw, 0o644))
	}

	diff := CompareFiles(leftPath, rightPath)
	require.True(t, diff.Success)
	assert.Equal(t, []string{"/b"}, diff.NodesAdded)

	missing := CompareFiles(leftPath, filepath.Join(dir, "absent.json"))
	assert.False(t, missing.Success)
}

func TestToYAMLScalars(t *testing.T) {
	payload := map[string]any{
		"flag":  true,
		"off":   false,
		"count": 42,
		"ratio": 0.5,
		"label": `say "hi"`,
		"empty": nil,
	}
	text, err := ToYAML(payload)
	require.NoError(t, err)
	assert.Contains(t, text, "flag: true\n")
	assert.Contains(t, text, "off: false\n")
	assert.Contains(t, text, "count: 42\n")
	assert.Contains(t, text, "ratio: 0.5000\n")
	assert.Contains(t, text, `label: "say \"hi\""`)
	assert.Contains(t, text, "empty: null\n")
}

func TestToYAMLNesting(t *testing.T) {
	payload := map[string]any{
		"outer": map[string]any{
			"list": []any{
				map[string]any{"name": "a"},
				"plain",
			},
		},
	}
	text, err := ToYAML(payload)
	require.NoError(t, err)
	expected := "outer:\n  list:\n    -\n      name: \"a\"\n    - \"plain\"\n"
	assert.Equal(t, expected, text)
}

func TestToYAMLDeterministicKeyOrder(t *testing.T) {
	payload := map[string]any{"zulu": 1, "alpha": 2, "mike": 3}
	first, err := ToYAML(payload)
	require.NoError(t, err)
	assert.True(t, strings.Index(first, "alpha") < strings.Index(first, "mike"))
	assert.True(t, strings.Index(first, "mike") < strings.Index(first, "zulu"))
}

func TestManagerExportJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(WithBaseDir(dir), WithManagerClock(fixedClock()))
	record := m.BuildSnapshot(nil, nil, inspector.Graph{DomainID: "0"}, inspector.TfNav2{}, sysmon.Snapshot{}, health.Report{}, map[string]string{"/a": "x: 1"})
	assert.Equal(t, "2025-06-01T12:00:00Z", record.TimestampUTC)

	jsonRes := m.ExportSnapshot(record, "json")
	require.True(t, jsonRes.Success)
	assert.Equal(t, "json", jsonRes.Format)
	raw, err := os.ReadFile(jsonRes.Path)
	require.NoError(t, err)
	var decoded Record
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "0", decoded.Graph.DomainID)

	yamlRes := m.ExportSnapshot(record, "yaml")
	require.True(t, yamlRes.Success)
	assert.True(t, strings.HasSuffix(yamlRes.Path, ".yaml"))
	yamlRaw, err := os.ReadFile(yamlRes.Path)
	require.NoError(t, err)
	assert.Contains(t, string(yamlRaw), "domain_id: \"0\"")
}

func TestRecorderLifecycle(t *testing.T) {
	r := NewRecorder(WithRecorderBaseDir(t.TempDir()), WithRecorderClock(fixedClock()))

	// Inactive recorder drops samples.
	r.RecordSample(map[string]any{"health": "ok"})
	assert.Zero(t, r.Status().SampleCount)

	status := r.Start("calib_run")
	assert.True(t, status.Active)
	assert.Equal(t, "calib_run", status.SessionName)

	r.RecordSample(map[string]any{"health": "ok", "logs": "very long dmesg text"})
	status = r.Status()
	assert.Equal(t, 1, status.SampleCount)

	status = r.Stop()
	assert.False(t, status.Active)
	assert.NotEmpty(t, status.EndedUTC)
}

func TestRecorderStripsLogs(t *testing.T) {
	r := NewRecorder(WithRecorderBaseDir(t.TempDir()), WithRecorderClock(fixedClock()))
	r.Start("s")
	r.RecordSample(map[string]any{"logs": "drop me", "keep": 1})

	res := r.Export("json")
	require.True(t, res.Success)
	raw, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "drop me")
	assert.Contains(t, string(raw), "keep")
}

func TestRecorderBoundedRing(t *testing.T) {
	r := NewRecorder(WithRecorderBaseDir(t.TempDir()))
	r.Start("big")
	for i := 0; i < maxSessionSamples+10; i++ {
		r.RecordSample(map[string]any{"i": i})
	}
	assert.Equal(t, maxSessionSamples, r.Status().SampleCount)
}

func TestRecorderExportWithoutSamples(t *testing.T) {
	r := NewRecorder(WithRecorderBaseDir(t.TempDir()))
	res := r.Export("json")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "No recorded samples")
}

func TestRecorderGeneratesSessionName(t *testing.T) {
	r := NewRecorder(WithRecorderBaseDir(t.TempDir()))
	status := r.Start("  ")
	assert.NotEmpty(t, status.SessionName)
}
