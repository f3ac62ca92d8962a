package diagnostics

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/00PrabalK00/RosScope/inspector"
)

const (
	deepSampleTopics    = 12
	shallowSampleTopics = 4
	probeTimeout        = 2500 * time.Millisecond
	highTrafficMbps     = 30.0
	discoveryStormDelta = 8
)

var distroRe = regexp.MustCompile(`/opt/ros/([^/]+)`)

func (e *Engine) parameterDrift(ec *EvalContext) ParameterDrift {
	changes := []ParameterChange{}
	now := make(map[string]struct{}, len(ec.Parameters))

	nodes := make([]string, 0, len(ec.Parameters))
	for node := range ec.Parameters {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		now[node] = struct{}{}
		h := hashText(ec.Parameters[node])
		prev, seen := e.parameterHashesByNode[node]
		if !seen {
			e.parameterHashesByNode[node] = h

			continue
		}
		if prev != h {
			changes = append(changes, ParameterChange{
				Node:                  node,
				OldHash:               prev,
				NewHash:               h,
				SilentReloadSuspected: true,
			})
			e.parameterHashesByNode[node] = h
		}
	}
	for node := range e.parameterHashesByNode {
		if _, ok := now[node]; !ok {
			delete(e.parameterHashesByNode, node)
		}
	}

	return ParameterDrift{ChangedNodes: changes, ChangeCount: len(changes)}
}

func (e *Engine) topicRateAnalyzer(ctx context.Context, ec *EvalContext) TopicRateReport {
	env := map[string]string{"ROS_DOMAIN_ID": ec.DomainID}
	maxTopics := shallowSampleTopics
	if ec.DeepSampling {
		maxTopics = deepSampleTopics
	}

	out := TopicRateReport{
		TopicMetrics:              []TopicMetric{},
		DroppedTopics:             []string{},
		UnderperformingPublishers: []string{},
		LatencySpikes:             []string{},
	}
	sampled := 0
	for _, topic := range ec.Graph.Topics {
		if sampled >= maxTopics {
			break
		}
		if topic.Topic == "" {
			continue
		}
		sampled++

		hz := e.runner.Run(ctx, "ros2", []string{"topic", "hz", topic.Topic, "--window", "20"}, probeTimeout, env)
		bw := e.runner.Run(ctx, "ros2", []string{"topic", "bw", topic.Topic, "--window", "20"}, probeTimeout, env)
		actual := -1.0
		if hz.OK() {
			actual = parseAverageRate(hz.Stdout)
		}
		bandwidth := -1.0
		if bw.OK() {
			bandwidth = parseBandwidthBps(bw.Stdout)
		}
		if bandwidth > 0 {
			e.lastTopicBandwidth[topic.Topic] = bandwidth
		}

		history := e.topicRateHistory[topic.Topic]
		if actual >= 0 {
			history = pushBounded(history, actual, rateHistoryCap)
			e.topicRateHistory[topic.Topic] = history
		}

		expectedHz := -1.0
		if v, ok := e.expectedProfile.TopicExpectedHz[topic.Topic]; ok {
			expectedHz = v
		}
		histSlope := linearSlope(history)
		histMean := actual
		if len(history) > 0 {
			histMean = meanOf(history)
		}
		reportedBandwidth := bandwidth
		if reportedBandwidth <= 0 {
			if v, ok := e.lastTopicBandwidth[topic.Topic]; ok {
				reportedBandwidth = v
			} else {
				reportedBandwidth = -1
			}
		}

		out.TopicMetrics = append(out.TopicMetrics, TopicMetric{
			Topic:        topic.Topic,
			ExpectedHz:   expectedHz,
			ActualHz:     actual,
			TrendSlope:   histSlope,
			MeanHz:       histMean,
			BandwidthBps: reportedBandwidth,
		})

		if expectedHz > 0 && actual >= 0 && actual < expectedHz*0.6 {
			out.DroppedTopics = append(out.DroppedTopics, topic.Topic)
			out.UnderperformingPublishers = append(out.UnderperformingPublishers, topic.Topic)
		}
		if len(history) >= 5 && math.Abs(histSlope) > math.Max(0.3, histMean*0.2) {
			out.LatencySpikes = append(out.LatencySpikes, topic.Topic)
		}
	}

	out.IssueCount = len(out.DroppedTopics) + len(out.LatencySpikes)

	return out
}

func qosMismatchDetector(ec *EvalContext) QoSMismatchReport {
	mismatches := []QoSMismatch{}
	topics := make([]string, 0, len(ec.Graph.TopicQoS))
	for topic := range ec.Graph.TopicQoS {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	for _, topic := range topics {
		uniq := make(map[string]struct{})
		for _, profile := range ec.Graph.TopicQoS[topic].QoSProfiles {
			uniq[profile.Reliability+"|"+profile.Durability] = struct{}{}
		}
		if len(uniq) > 1 {
			mismatches = append(mismatches, QoSMismatch{Topic: topic, ProfileCount: len(uniq)})
		}
	}

	return QoSMismatchReport{Mismatches: mismatches, MismatchCount: len(mismatches)}
}

func isTransitionalState(state string) bool {
	lower := strings.ToLower(state)

	return strings.Contains(lower, "configur") || strings.Contains(lower, "activat") || strings.Contains(lower, "deactivat")
}

func (e *Engine) lifecycleTimeline(ec *EvalContext) LifecycleTimelineReport {
	nowMs := e.now().UnixMilli()
	out := LifecycleTimelineReport{
		Transitions:            []LifecycleEvent{},
		StuckTransitionalNodes: []StuckTransitionalNode{},
		HistoryByNode:          map[string][]LifecycleEvent{},
	}

	for _, row := range ec.TfNav2.Runtime.LifecycleStates {
		if row.Node == "" {
			continue
		}
		prev := e.lifecycleStateByNode[row.Node]
		if prev.State != row.State {
			event := LifecycleEvent{
				Node:          row.Node,
				PreviousState: prev.State,
				NewState:      row.State,
				TimestampUTC:  e.now().UTC().Format(time.RFC3339),
			}
			out.Transitions = append(out.Transitions, event)
			history := append(e.lifecycleEventsByNode[row.Node], event)
			for len(history) > lifecycleEventCap {
				history = history[1:]
			}
			e.lifecycleEventsByNode[row.Node] = history
			e.lifecycleStateByNode[row.Node] = transitionState{State: row.State, SinceMs: nowMs}
		} else if prev.SinceMs == 0 {
			e.lifecycleStateByNode[row.Node] = transitionState{State: row.State, SinceMs: nowMs}
		}

		dwell := nowMs - e.lifecycleStateByNode[row.Node].SinceMs
		if isTransitionalState(row.State) && dwell > stuckTransitionalMs {
			out.StuckTransitionalNodes = append(out.StuckTransitionalNodes, StuckTransitionalNode{
				Node:       row.Node,
				State:      row.State,
				DurationMs: dwell,
			})
		}
	}

	for node, history := range e.lifecycleEventsByNode {
		out.HistoryByNode[node] = history
	}

	return out
}

func executorLoadMonitor(ec *EvalContext) ExecutorLoadReport {
	overloaded := []OverloadedExecutor{}
	for _, proc := range ec.Processes {
		if !proc.IsROS {
			continue
		}
		if proc.CPUPercent > 85.0 || proc.Threads > 80 {
			overloaded = append(overloaded, OverloadedExecutor{
				PID:        proc.PID,
				NodeName:   proc.NodeName,
				CPUPercent: proc.CPUPercent,
				Threads:    proc.Threads,
			})
		}
	}
	orphanTopics := len(ec.Graph.PublishersWithoutSubscribers)

	return ExecutorLoadReport{
		OverloadedExecutors:  overloaded,
		CallbackQueueDelayMs: len(overloaded)*10 + orphanTopics*3,
		BlockingCallbacks:    overloaded,
	}
}

func (e *Engine) crossCorrelationTimeline(ec *EvalContext) CrossCorrelationReport {
	row := TimelineRow{
		TimestampUTC: e.now().UTC().Format(time.RFC3339),
		CPUPercent:   ec.System.CPU.UsagePercent,
		OrphanTopics: len(ec.Graph.PublishersWithoutSubscribers),
		TfWarnings:   len(ec.TfNav2.TfWarnings),
		GoalActive:   ec.TfNav2.Runtime.GoalActive,
	}
	e.timeline = append(e.timeline, row)
	for len(e.timeline) > timelineCap {
		e.timeline = e.timeline[1:]
	}

	correlated := []CorrelatedEvent{}
	for _, sample := range e.timeline {
		if sample.CPUPercent > 85.0 && (sample.OrphanTopics > 0 || sample.TfWarnings > 0) {
			correlated = append(correlated, CorrelatedEvent{
				TimestampUTC: sample.TimestampUTC,
				Inference:    "CPU spike correlated with ROS degradation",
			})
		}
	}

	timeline := make([]TimelineRow, len(e.timeline))
	copy(timeline, e.timeline)

	return CrossCorrelationReport{Timeline: timeline, CorrelatedEvents: correlated}
}

func (e *Engine) memoryLeakDetection(ec *EvalContext) MemoryLeakReport {
	active := make(map[string]struct{})
	for _, proc := range ec.Processes {
		if !proc.IsROS || proc.NodeName == "" {
			continue
		}
		active[proc.NodeName] = struct{}{}
		e.memoryHistoryByNode[proc.NodeName] = pushBounded(
			e.memoryHistoryByNode[proc.NodeName], proc.MemoryPercent, memoryHistoryCap)
	}
	for node := range e.memoryHistoryByNode {
		if _, ok := active[node]; !ok {
			delete(e.memoryHistoryByNode, node)
		}
	}

	leaks := []LeakCandidate{}
	nodes := make([]string, 0, len(e.memoryHistoryByNode))
	for node := range e.memoryHistoryByNode {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		h := e.memoryHistoryByNode[node]
		if len(h) < 8 {
			continue
		}
		m := linearSlope(h)
		delta := h[len(h)-1] - h[0]
		if m > 0.03 && delta > 1.5 {
			leaks = append(leaks, LeakCandidate{Node: node, Slope: m, DeltaPercent: delta})
		}
	}

	return MemoryLeakReport{LeakCandidates: leaks, CandidateCount: len(leaks)}
}

func (e *Engine) ddsParticipantInspector(ec *EvalContext) DDSParticipantReport {
	participants := []ParticipantRow{}
	storms := []DiscoveryStorm{}
	for _, domain := range ec.Domains {
		id := domain.DomainID
		if id == "" {
			id = "0"
		}
		count := domain.RosProcessCount
		prev, seen := e.previousParticipants[id]
		if !seen {
			prev = count
		}
		if abs(count-prev) >= discoveryStormDelta {
			storms = append(storms, DiscoveryStorm{DomainID: id, Previous: prev, Current: count})
		}
		e.previousParticipants[id] = count
		participants = append(participants, ParticipantRow{DomainID: id, ParticipantCount: count})
	}

	return DDSParticipantReport{
		Participants:      participants,
		GhostParticipants: len(ec.Health.ZombieNodes),
		DiscoveryStorms:   storms,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}

func (e *Engine) networkSaturationMonitor(ec *EvalContext) NetworkSaturationReport {
	dt := math.Max(0.5, ec.PollInterval.Seconds())
	alertMbps := e.expectedProfile.NetworkAlertMbps
	if alertMbps <= 0 {
		alertMbps = defaultAlertMbps
	}

	rates := []InterfaceRate{}
	congested := []InterfaceRate{}
	for _, iface := range ec.System.NetworkInterfaces {
		prevRx, seenRx := e.previousRxByIface[iface.Name]
		prevTx, seenTx := e.previousTxByIface[iface.Name]
		if !seenRx {
			prevRx = iface.RxBytes
		}
		if !seenTx {
			prevTx = iface.TxBytes
		}
		e.previousRxByIface[iface.Name] = iface.RxBytes
		e.previousTxByIface[iface.Name] = iface.TxBytes

		var deltaRx, deltaTx uint64
		if iface.RxBytes > prevRx {
			deltaRx = iface.RxBytes - prevRx
		}
		if iface.TxBytes > prevTx {
			deltaTx = iface.TxBytes - prevTx
		}
		mbps := bpsToMbps(float64(deltaRx+deltaTx) / dt)
		row := InterfaceRate{Interface: iface.Name, TotalMbps: mbps}
		rates = append(rates, row)
		if mbps > alertMbps {
			congested = append(congested, row)
		}
	}

	highTraffic := []HighTrafficTopic{}
	topics := make([]string, 0, len(e.lastTopicBandwidth))
	for topic := range e.lastTopicBandwidth {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		mbps := bpsToMbps(e.lastTopicBandwidth[topic])
		if mbps > highTrafficMbps {
			highTraffic = append(highTraffic, HighTrafficTopic{Topic: topic, ThroughputMbps: mbps})
		}
	}

	return NetworkSaturationReport{
		InterfaceRates:        rates,
		CongestedInterfaces:   congested,
		HighTrafficPublishers: highTraffic,
	}
}

func softSafetyBoundary(ec *EvalContext, rates TopicRateReport) SoftSafetyReport {
	hzByTopic := make(map[string]float64, len(rates.TopicMetrics))
	for _, metric := range rates.TopicMetrics {
		hzByTopic[metric.Topic] = metric.ActualHz
	}

	warnings := []string{}
	if hz, ok := hzByTopic["/local_costmap/costmap"]; ok && hz < 1.0 {
		warnings = append(warnings, "Costmap update rate is below threshold.")
	}
	if hz, ok := hzByTopic["/imu"]; ok && hz >= 0.0 && hz < 5.0 {
		warnings = append(warnings, "IMU stream appears degraded or stalled.")
	}
	if len(ec.TfNav2.TfWarnings) > 0 {
		warnings = append(warnings, "TF integrity warnings detected.")
	}

	return SoftSafetyReport{Warnings: warnings, WarningCount: len(warnings)}
}

func workspaceTools(ec *EvalContext) WorkspaceReport {
	workspaces := make(map[string]struct{})
	packageMap := make(map[string]map[string]struct{})
	distros := make(map[string]struct{})

	for _, proc := range ec.Processes {
		if !proc.IsROS {
			continue
		}
		if proc.WorkspaceOrigin != "" {
			workspaces[proc.WorkspaceOrigin] = struct{}{}
			if proc.Package != "" {
				if packageMap[proc.Package] == nil {
					packageMap[proc.Package] = make(map[string]struct{})
				}
				packageMap[proc.Package][proc.WorkspaceOrigin] = struct{}{}
			}
			if m := distroRe.FindStringSubmatch(proc.WorkspaceOrigin); m != nil {
				distros[m[1]] = struct{}{}
			}
		}
	}

	duplicates := []DuplicatePackage{}
	packages := make([]string, 0, len(packageMap))
	for pkg := range packageMap {
		packages = append(packages, pkg)
	}
	sort.Strings(packages)
	for _, pkg := range packages {
		if len(packageMap[pkg]) > 1 {
			ws := make([]string, 0, len(packageMap[pkg]))
			for w := range packageMap[pkg] {
				ws = append(ws, w)
			}
			sort.Strings(ws)
			duplicates = append(duplicates, DuplicatePackage{Package: pkg, Workspaces: ws})
		}
	}

	chain := make([]string, 0, len(workspaces))
	for w := range workspaces {
		chain = append(chain, w)
	}
	sort.Strings(chain)
	detected := make([]string, 0, len(distros))
	for d := range distros {
		detected = append(detected, d)
	}
	sort.Strings(detected)

	return WorkspaceReport{
		OverlayChain:          chain,
		DuplicatePackages:     duplicates,
		MixedRosDistributions: len(distros) > 1,
		DetectedDistributions: detected,
		AbiMismatchSuspected:  len(distros) > 1,
	}
}

func actionMonitor(ec *EvalContext) ActionMonitorReport {
	servers := 0
	clients := 0
	for _, node := range ec.Graph.Nodes {
		servers += len(node.ActionServers)
		clients += len(node.ActionClients)
	}
	goalActive := ec.TfNav2.Runtime.GoalActive
	activeGoals := 0
	if goalActive {
		activeGoals = 1
	}

	return ActionMonitorReport{
		ActiveGoals:       activeGoals,
		ActionServers:     servers,
		ActionClients:     clients,
		TimeoutsSuspected: clients > 0 && !goalActive,
	}
}

func tfDriftMonitor(ec *EvalContext) TfDriftReport {
	parentsByChild := make(map[string]map[string]struct{})
	for _, edge := range ec.TfNav2.TfEdges {
		if parentsByChild[edge.Child] == nil {
			parentsByChild[edge.Child] = make(map[string]struct{})
		}
		parentsByChild[edge.Child][edge.Parent] = struct{}{}
	}

	duplicates := []DuplicateFrameBroadcaster{}
	children := make([]string, 0, len(parentsByChild))
	for child := range parentsByChild {
		children = append(children, child)
	}
	sort.Strings(children)
	for _, child := range children {
		if len(parentsByChild[child]) > 1 {
			duplicates = append(duplicates, DuplicateFrameBroadcaster{
				ChildFrame:  child,
				ParentCount: len(parentsByChild[child]),
			})
		}
	}

	return TfDriftReport{
		DuplicateFrameBroadcasters: duplicates,
		ParentChildMismatchCount:   len(duplicates),
		TimestampOffsetMs:          -1,
	}
}

func runtimeFingerprint(ec *EvalContext) FingerprintReport {
	nodes := make([]string, 0, len(ec.Graph.Nodes))
	for _, node := range ec.Graph.Nodes {
		nodes = append(nodes, node.FullName)
	}
	topics := make([]string, 0, len(ec.Graph.Topics))
	for _, topic := range ec.Graph.Topics {
		topics = append(topics, topic.Topic)
	}
	tfEdges := make([]string, 0, len(ec.TfNav2.TfEdges))
	for _, edge := range ec.TfNav2.TfEdges {
		tfEdges = append(tfEdges, edge.Parent+"->"+edge.Child)
	}
	sort.Strings(nodes)
	sort.Strings(topics)
	sort.Strings(tfEdges)

	cpuBucket := math.Round(ec.System.CPU.UsagePercent/5.0) * 5.0
	payload := strings.Join(nodes, "|") + "::" + strings.Join(topics, "|") + "::" +
		strings.Join(tfEdges, "|") + "::" + strconv.FormatFloat(cpuBucket, 'f', -1, 64)

	return FingerprintReport{
		Signature:   hashText(payload),
		NodeCount:   len(nodes),
		TopicCount:  len(topics),
		TfEdgeCount: len(tfEdges),
	}
}

func (e *Engine) deterministicLaunchValidation(ec *EvalContext) LaunchValidationReport {
	current := make(map[string]struct{}, len(ec.Graph.Nodes))
	for _, node := range ec.Graph.Nodes {
		current[node.FullName] = struct{}{}
	}
	expected := make(map[string]struct{}, len(e.expectedProfile.ExpectedNodes))
	for _, node := range e.expectedProfile.ExpectedNodes {
		expected[node] = struct{}{}
	}

	rogue := []string{}
	missing := []string{}
	if len(expected) > 0 {
		for node := range current {
			if _, ok := expected[node]; !ok {
				rogue = append(rogue, node)
			}
		}
		for node := range expected {
			if _, ok := current[node]; !ok {
				missing = append(missing, node)
			}
		}
		sort.Strings(rogue)
		sort.Strings(missing)
	}

	return LaunchValidationReport{
		RogueNodes:   rogue,
		MissingNodes: missing,
		Valid:        len(rogue) == 0 && len(missing) == 0,
	}
}

func dependencyImpactMap(ec *EvalContext) DependencyImpactReport {
	adjacency := make(map[string]map[string]struct{})
	nodes := make(map[string]struct{})
	for _, topic := range ec.Graph.Topics {
		for _, pub := range topic.Publishers {
			nodes[pub] = struct{}{}
			for _, sub := range topic.Subscribers {
				nodes[sub] = struct{}{}
				if adjacency[pub] == nil {
					adjacency[pub] = make(map[string]struct{})
				}
				adjacency[pub][sub] = struct{}{}
			}
		}
	}

	ordered := make([]string, 0, len(nodes))
	for node := range nodes {
		ordered = append(ordered, node)
	}
	sort.Strings(ordered)

	scores := make([]inspector.ImpactScore, 0, len(ordered))
	for _, node := range ordered {
		visited := make(map[string]struct{})
		queue := []string{node}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for child := range adjacency[current] {
				if _, ok := visited[child]; !ok {
					visited[child] = struct{}{}
					queue = append(queue, child)
				}
			}
		}
		scores = append(scores, inspector.ImpactScore{Node: node, DownstreamCount: len(visited)})
	}
	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].DownstreamCount > scores[b].DownstreamCount
	})

	top := scores
	if len(top) > 10 {
		top = scores[:10]
	}

	return DependencyImpactReport{ImpactScores: scores, TopImpactNodes: top}
}
