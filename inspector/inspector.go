package inspector

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/00PrabalK00/RosScope/pkg/executor"
	"github.com/00PrabalK00/RosScope/pkg/telemetry"
	"github.com/00PrabalK00/RosScope/sampler"
)

const (
	nodeListTimeout   = 5 * time.Second
	nodeInfoTimeout   = 5 * time.Second
	lifecycleTimeout  = 2200 * time.Millisecond
	paramListTimeout  = 3500 * time.Millisecond
	paramGetTimeout   = 2 * time.Second
	paramDumpTimeout  = 6 * time.Second
	topicListTimeout  = 4500 * time.Millisecond
	topicInfoTimeout  = 4 * time.Second
	tfEchoTimeout     = 2600 * time.Millisecond
	tfInfoTimeout     = 2800 * time.Millisecond
	lifecycleNodesTimeout = 3500 * time.Millisecond
	actionEchoTimeout = 2400 * time.Millisecond

	maxTfTopics       = 6
	maxActionTopics   = 10
	maxPluginHints    = 6
	maxSampleExcerpt  = 280
)

// Inspector drives the ros2 CLI and assembles the compute-graph model.
type Inspector struct {
	runner executor.Runner
	tele   *telemetry.Registry

	ros2Checked   bool
	ros2Available bool
}

func New(runner executor.Runner, tele *telemetry.Registry) *Inspector {
	if tele == nil {
		tele = telemetry.Default()
	}

	return &Inspector{runner: runner, tele: tele}
}

func rosEnv(domainID string) map[string]string {
	return map[string]string{"ROS_DOMAIN_ID": domainID}
}

// IsRos2Available probes `command -v ros2` once and caches the verdict.
func (i *Inspector) IsRos2Available(ctx context.Context) bool {
	if !i.ros2Checked {
		check := i.runner.RunShell(ctx, "command -v ros2 >/dev/null 2>&1 && echo OK", 2*time.Second, nil)
		i.ros2Available = strings.Contains(check.Stdout, "OK")
		i.ros2Checked = true
		i.tele.SetGauge("ros.cli_available", boolGauge(i.ros2Available))
	}

	return i.ros2Available
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}

	return 0
}

// ListDomains aggregates the process table per ROS_DOMAIN_ID. Domain "0" is
// always present; ids sort numerically when possible.
func (i *Inspector) ListDomains(processes []sampler.Record) []DomainSummary {
	domains := map[string]struct{}{"0": {}}
	rosCount := make(map[string]int)
	cpuByDomain := make(map[string]float64)
	memByDomain := make(map[string]float64)
	workspaces := make(map[string]map[string]struct{})

	for _, proc := range processes {
		if !proc.IsROS {
			continue
		}
		domain := proc.DomainID
		if domain == "" {
			domain = "0"
		}
		domains[domain] = struct{}{}
		rosCount[domain]++
		cpuByDomain[domain] += proc.CPUPercent
		memByDomain[domain] += proc.MemoryPercent
		if proc.WorkspaceOrigin != "" {
			if workspaces[domain] == nil {
				workspaces[domain] = make(map[string]struct{})
			}
			workspaces[domain][proc.WorkspaceOrigin] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(domains))
	for domain := range domains {
		ordered = append(ordered, domain)
	}
	sort.Slice(ordered, func(a, b int) bool {
		ai, errA := strconv.Atoi(ordered[a])
		bi, errB := strconv.Atoi(ordered[b])
		if errA == nil && errB == nil {
			return ai < bi
		}

		return ordered[a] < ordered[b]
	})

	out := make([]DomainSummary, 0, len(ordered))
	for _, domain := range ordered {
		out = append(out, DomainSummary{
			DomainID:            domain,
			RosProcessCount:     rosCount[domain],
			DDSParticipantCount: rosCount[domain],
			DomainCPUPercent:    cpuByDomain[domain],
			DomainMemoryPercent: memByDomain[domain],
			WorkspaceCount:      len(workspaces[domain]),
		})
	}

	return out
}

// findProcessForNode correlates a graph node to a sampled process by node
// name and namespace, falling back to command-line remap tokens.
func findProcessForNode(fullNodeName string, processes []sampler.Record) (sampler.Record, bool) {
	node := baseNodeName(fullNodeName)
	ns := nodeNamespace(fullNodeName)

	for _, proc := range processes {
		if !proc.IsROS {
			continue
		}
		if proc.NodeName != "" && proc.NodeName == node &&
			(proc.Namespace == ns || proc.Namespace == "/" || ns == "/") {
			return proc, true
		}
		if strings.Contains(proc.CommandLine, fullNodeName) ||
			strings.Contains(proc.CommandLine, "__node:="+node) {
			return proc, true
		}
	}

	return sampler.Record{}, false
}

// InspectDomain lists the domain's nodes and correlates them to processes.
// With includeGraphDetails it also pulls per-node endpoint sections,
// parameters and per-topic QoS.
func (i *Inspector) InspectDomain(ctx context.Context, domainID string, processes []sampler.Record, includeGraphDetails bool) DomainDetail {
	out := DomainDetail{
		DomainID: domainID,
		Nodes:    []Node{},
		TopicQoS: map[string]TopicQoS{},
	}
	if !i.IsRos2Available(ctx) {
		out.Error = "ros2 CLI is not available in PATH."

		return out
	}

	env := rosEnv(domainID)
	nodeList := i.runner.Run(ctx, "ros2", []string{"node", "list"}, nodeListTimeout, env)
	if !nodeList.OK() {
		out.Error = "Failed to query ROS nodes."
		out.Details = nodeList.Stderr

		return out
	}

	uniqueTopics := make(map[string]struct{})
	for _, fullNodeName := range parseLines(nodeList.Stdout) {
		node := Node{
			DomainID:  domainID,
			FullName:  fullNodeName,
			NodeName:  baseNodeName(fullNodeName),
			Namespace: nodeNamespace(fullNodeName),
			PID:       -1,
		}

		if proc, ok := findProcessForNode(fullNodeName, processes); ok {
			node.PID = proc.PID
			node.Executable = proc.Executable
			node.Package = proc.Package
			node.WorkspaceOrigin = proc.WorkspaceOrigin
			node.LaunchSource = proc.LaunchSource
			node.CPUPercent = proc.CPUPercent
			node.MemoryPercent = proc.MemoryPercent
			node.Threads = proc.Threads
		}

		if includeGraphDetails {
			info := i.runner.Run(ctx, "ros2", []string{"node", "info", fullNodeName}, nodeInfoTimeout, env)
			if info.OK() {
				parsed := parseNodeInfoText(info.Stdout)
				node.Publishers = parsed.Publishers
				node.Subscribers = parsed.Subscribers
				node.ServiceServers = parsed.ServiceServers
				node.ServiceClients = parsed.ServiceClients
				node.ActionServers = parsed.ActionServers
				node.ActionClients = parsed.ActionClients
			}
		}
		for _, pub := range node.Publishers {
			if pub.Name != "" {
				uniqueTopics[pub.Name] = struct{}{}
			}
		}
		for _, sub := range node.Subscribers {
			if sub.Name != "" {
				uniqueTopics[sub.Name] = struct{}{}
			}
		}

		lifecycleGet := i.runner.Run(ctx, "ros2", []string{"lifecycle", "get", fullNodeName}, lifecycleTimeout, env)
		node.LifecycleCapable = lifecycleGet.OK()
		if node.LifecycleCapable {
			node.LifecycleState = parseLifecycleStateText(lifecycleGet.Stdout)
		} else {
			node.LifecycleState = "unsupported"
		}

		if includeGraphDetails {
			i.collectParameters(ctx, &node, fullNodeName, env)
		}
		node.ParameterCount = len(node.ParameterNames)

		node.RuntimeClass = classifyRuntime(node.CPUPercent, node.Threads, len(node.Publishers))
		node.BehaviorRoles = inferBehaviorRoles(node)
		node.PrimaryBehaviorRole = "generic"
		if len(node.BehaviorRoles) > 0 {
			node.PrimaryBehaviorRole = node.BehaviorRoles[0]
		}

		out.Nodes = append(out.Nodes, node)
	}

	if includeGraphDetails {
		for _, topic := range sortedSet(uniqueTopics) {
			info := i.runner.Run(ctx, "ros2", []string{"topic", "info", "-v", topic}, topicInfoTimeout, env)
			if info.OK() {
				out.TopicQoS[topic] = parseTopicInfoVerbose(info.Stdout)
			}
		}
	}

	return out
}

func (i *Inspector) collectParameters(ctx context.Context, node *Node, fullNodeName string, env map[string]string) {
	paramList := i.runner.Run(ctx, "ros2", []string{"param", "list", fullNodeName}, paramListTimeout, env)
	node.ParametersSupported = paramList.OK()
	if !paramList.OK() {
		return
	}

	unique := make(map[string]struct{})
	for _, raw := range parseLines(paramList.Stdout) {
		line := cleanGraphEntryLine(raw)
		if line == "" || strings.HasSuffix(line, ":") || line == fullNodeName {
			continue
		}
		unique[line] = struct{}{}
	}
	node.ParameterNames = sortedSet(unique)

	fetched := 0
	for _, parameter := range node.ParameterNames {
		if !isPluginLikeParameter(parameter) {
			continue
		}
		hint := ParameterHint{Parameter: parameter, Value: "unavailable"}
		value := i.runner.Run(ctx, "ros2", []string{"param", "get", fullNodeName, parameter}, paramGetTimeout, env)
		if value.OK() {
			hint.Value = strings.TrimSpace(value.Stdout)
		}
		node.PluginHints = append(node.PluginHints, hint)
		fetched++
		if fetched >= maxPluginHints {
			break
		}
	}
}

// InspectTfNav2 samples TF topics, lifecycle nodes and action goal status.
func (i *Inspector) InspectTfNav2(ctx context.Context, domainID string) TfNav2 {
	out := TfNav2{
		DomainID:   domainID,
		TfTopics:   []string{},
		TfEdges:    []TfEdge{},
		TfWarnings: []string{},
		Runtime: RuntimeStatus{
			LifecycleStates:    []LifecycleState{},
			ActionStatus:       []ActionStatusRow{},
			ActiveActionTopics: []string{},
		},
	}
	if !i.IsRos2Available(ctx) {
		out.Error = "ros2 CLI is not available in PATH."

		return out
	}

	env := rosEnv(domainID)
	topicList := i.runner.Run(ctx, "ros2", []string{"topic", "list", "-t"}, topicListTimeout, env)

	tfTopics := make(map[string]struct{})
	actionStatusTopics := make(map[string]struct{})
	if topicList.OK() {
		for _, row := range parseTopicListWithTypes(topicList.Stdout) {
			if row.Topic == "" {
				continue
			}
			if row.Type == "tf2_msgs/msg/TFMessage" ||
				row.Topic == "/tf" || row.Topic == "/tf_static" ||
				strings.HasSuffix(row.Topic, "/tf") || strings.HasSuffix(row.Topic, "/tf_static") {
				tfTopics[row.Topic] = struct{}{}
			}
			if row.Type == "action_msgs/msg/GoalStatusArray" && strings.Contains(row.Topic, "_action/status") {
				actionStatusTopics[row.Topic] = struct{}{}
			}
		}
	}
	out.TfTopics = sortedSet(tfTopics)

	edgeKeys := make(map[string]struct{})
	orderedTf := out.TfTopics
	if len(orderedTf) > maxTfTopics {
		orderedTf = orderedTf[:maxTfTopics]
	}
	for _, topic := range orderedTf {
		echo := i.runner.Run(ctx, "ros2", []string{"topic", "echo", topic, "--once"}, tfEchoTimeout, env)
		if echo.OK() {
			for _, edge := range parseTfEdges(echo.Stdout) {
				key := edge.Parent + "->" + edge.Child
				if _, seen := edgeKeys[key]; seen {
					continue
				}
				edgeKeys[key] = struct{}{}
				edge.Topic = topic
				out.TfEdges = append(out.TfEdges, edge)
			}
		}

		info := i.runner.Run(ctx, "ros2", []string{"topic", "info", "-v", topic}, tfInfoTimeout, env)
		if info.OK() {
			publishers := 0
			for _, line := range strings.Split(info.Stdout, "\n") {
				if strings.HasPrefix(strings.TrimSpace(line), "Node name:") {
					publishers++
				}
			}
			if publishers > 1 {
				out.TfWarnings = append(out.TfWarnings, "Multiple publishers detected on "+topic)
			}
		}
	}

	childCount := make(map[string]int)
	for _, edge := range out.TfEdges {
		if edge.Child != "" {
			childCount[edge.Child]++
		}
	}
	for _, child := range sortedKeys(childCount) {
		if childCount[child] > 1 {
			out.TfWarnings = append(out.TfWarnings, "Frame '"+child+"' appears with multiple parents/publishers.")
		}
	}

	lifecycleNodes := i.runner.Run(ctx, "ros2", []string{"lifecycle", "nodes"}, lifecycleNodesTimeout, env)
	if lifecycleNodes.OK() {
		for _, node := range parseLines(lifecycleNodes.Stdout) {
			if !strings.HasPrefix(node, "/") {
				continue
			}
			state := i.runner.Run(ctx, "ros2", []string{"lifecycle", "get", node}, tfEchoTimeout, env)
			row := LifecycleState{Node: node, State: "unknown"}
			if state.OK() {
				row.State = parseLifecycleStateText(state.Stdout)
			}
			out.Runtime.LifecycleStates = append(out.Runtime.LifecycleStates, row)
		}
	}

	orderedActions := sortedSet(actionStatusTopics)
	if len(orderedActions) > maxActionTopics {
		orderedActions = orderedActions[:maxActionTopics]
	}
	for _, topic := range orderedActions {
		status := i.runner.Run(ctx, "ros2", []string{"topic", "echo", topic, "--once"}, actionEchoTimeout, env)
		active := status.OK() && !strings.Contains(status.Stdout, "status_list: []")
		if active {
			out.Runtime.GoalActive = true
			out.Runtime.ActiveActionTopics = append(out.Runtime.ActiveActionTopics, topic)
		}
		sample := status.Stderr
		if status.OK() {
			sample = status.Stdout
		}
		if len(sample) > maxSampleExcerpt {
			sample = sample[:maxSampleExcerpt]
		}
		out.Runtime.ActionStatus = append(out.Runtime.ActionStatus, ActionStatusRow{
			Topic:  topic,
			Active: active,
			Sample: strings.TrimSpace(sample),
		})
	}

	return out
}

// FetchNodeParameters runs `ros2 param dump` and returns stdout verbatim.
func (i *Inspector) FetchNodeParameters(ctx context.Context, domainID, nodeName string) NodeParameters {
	out := NodeParameters{DomainID: domainID, Node: nodeName}
	if !i.IsRos2Available(ctx) {
		out.Error = "ros2 CLI is not available in PATH."

		return out
	}

	result := i.runner.Run(ctx, "ros2", []string{"param", "dump", nodeName}, paramDumpTimeout, rosEnv(domainID))
	out.Success = result.OK()
	out.Parameters = result.Stdout
	out.Error = result.Stderr

	return out
}
