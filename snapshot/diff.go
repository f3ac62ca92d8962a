package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
)

type DiffSummary struct {
	NodesAdded        int `json:"nodes_added"`
	NodesRemoved      int `json:"nodes_removed"`
	TopicsAdded       int `json:"topics_added"`
	TopicsRemoved     int `json:"topics_removed"`
	DomainsAdded      int `json:"domains_added"`
	DomainsRemoved    int `json:"domains_removed"`
	ParametersChanged int `json:"parameters_changed"`
}

type Diff struct {
	Success           bool        `json:"success"`
	Error             string      `json:"error,omitempty"`
	LeftPath          string      `json:"left_path,omitempty"`
	RightPath         string      `json:"right_path,omitempty"`
	Summary           DiffSummary `json:"summary"`
	NodesAdded        []string    `json:"nodes_added"`
	NodesRemoved      []string    `json:"nodes_removed"`
	TopicsAdded       []string    `json:"topics_added"`
	TopicsRemoved     []string    `json:"topics_removed"`
	DomainsAdded      []string    `json:"domains_added"`
	DomainsRemoved    []string    `json:"domains_removed"`
	ParametersChanged []string    `json:"parameters_changed"`
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}

	return out
}

func setDifference(a, b map[string]struct{}) []string {
	out := []string{}
	for v := range a {
		if _, ok := b[v]; !ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)

	return out
}

func nodeList(record Record) []string {
	out := make([]string, 0, len(record.Graph.Nodes))
	for _, node := range record.Graph.Nodes {
		out = append(out, node.FullName)
	}

	return out
}

func topicList(record Record) []string {
	out := make([]string, 0, len(record.Graph.Topics))
	for _, topic := range record.Graph.Topics {
		out = append(out, topic.Topic)
	}

	return out
}

func domainList(record Record) []string {
	out := make([]string, 0, len(record.Domains))
	for _, domain := range record.Domains {
		id := domain.DomainID
		if id == "" {
			id = "0"
		}
		out = append(out, id)
	}

	return out
}

func paramHashes(record Record) map[string]string {
	out := make(map[string]string, len(record.Parameters))
	for node, dump := range record.Parameters {
		sum := sha256.Sum256([]byte(dump))
		out[node] = hex.EncodeToString(sum[:])
	}

	return out
}

// Compare computes set differences between two snapshots over node names,
// topic names, domain ids and per-node parameter hashes.
func Compare(left, right Record) Diff {
	leftNodes := toSet(nodeList(left))
	rightNodes := toSet(nodeList(right))
	leftTopics := toSet(topicList(left))
	rightTopics := toSet(topicList(right))
	leftDomains := toSet(domainList(left))
	rightDomains := toSet(domainList(right))

	leftParams := paramHashes(left)
	rightParams := paramHashes(right)
	allParamNodes := make(map[string]struct{}, len(leftParams)+len(rightParams))
	for node := range leftParams {
		allParamNodes[node] = struct{}{}
	}
	for node := range rightParams {
		allParamNodes[node] = struct{}{}
	}
	paramChanged := []string{}
	for node := range allParamNodes {
		if leftParams[node] != rightParams[node] {
			paramChanged = append(paramChanged, node)
		}
	}
	sort.Strings(paramChanged)

	diff := Diff{
		Success:           true,
		NodesAdded:        setDifference(rightNodes, leftNodes),
		NodesRemoved:      setDifference(leftNodes, rightNodes),
		TopicsAdded:       setDifference(rightTopics, leftTopics),
		TopicsRemoved:     setDifference(leftTopics, rightTopics),
		DomainsAdded:      setDifference(rightDomains, leftDomains),
		DomainsRemoved:    setDifference(leftDomains, rightDomains),
		ParametersChanged: paramChanged,
	}
	diff.Summary = DiffSummary{
		NodesAdded:        len(diff.NodesAdded),
		NodesRemoved:      len(diff.NodesRemoved),
		TopicsAdded:       len(diff.TopicsAdded),
		TopicsRemoved:     len(diff.TopicsRemoved),
		DomainsAdded:      len(diff.DomainsAdded),
		DomainsRemoved:    len(diff.DomainsRemoved),
		ParametersChanged: len(diff.ParametersChanged),
	}

	return diff
}

// CompareFiles diffs two snapshot dumps from disk.
func CompareFiles(leftPath, rightPath string) Diff {
	left, err := readRecord(leftPath)
	if err != nil {
		return Diff{Success: false, Error: "Failed to open left snapshot."}
	}
	right, err := readRecord(rightPath)
	if err != nil {
		return Diff{Success: false, Error: "Failed to open right snapshot."}
	}

	diff := Compare(left, right)
	diff.LeftPath = leftPath
	diff.RightPath = rightPath

	return diff
}

func readRecord(path string) (Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, err
	}

	return record, nil
}
