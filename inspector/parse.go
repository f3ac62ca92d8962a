package inspector

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const maxRawTopicInfo = 4096

var topicWithTypeRe = regexp.MustCompile(`^\s*(\S+)\s*\[([^\]]+)\]\s*$`)

func parseLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	return lines
}

func cleanGraphEntryLine(value string) string {
	line := strings.TrimSpace(value)
	line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
	line = strings.TrimSpace(strings.TrimPrefix(line, "-"))

	return line
}

func baseNodeName(fullName string) string {
	if fullName == "" {
		return ""
	}
	idx := strings.LastIndexByte(fullName, '/')
	if idx < 0 {
		return fullName
	}

	return fullName[idx+1:]
}

func nodeNamespace(fullName string) string {
	if !strings.HasPrefix(fullName, "/") {
		return "/"
	}
	idx := strings.LastIndexByte(fullName, '/')
	if idx <= 0 {
		return "/"
	}

	return fullName[:idx]
}

func parseLifecycleStateText(text string) string {
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.Contains(strings.ToLower(key), "state") {
			return strings.TrimSpace(value)
		}

		return line
	}

	return ""
}

func isPluginLikeParameter(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range []string{"plugin", "library", "class", "type"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}

	return false
}

type topicWithType struct {
	Topic string
	Type  string
}

func parseTopicListWithTypes(text string) []topicWithType {
	var out []topicWithType
	for _, raw := range strings.Split(text, "\n") {
		m := topicWithTypeRe.FindStringSubmatch(strings.TrimSpace(raw))
		if m == nil {
			continue
		}
		out = append(out, topicWithType{Topic: strings.TrimSpace(m[1]), Type: strings.TrimSpace(m[2])})
	}

	return out
}

type nodeInfo struct {
	Publishers     []Endpoint
	Subscribers    []Endpoint
	ServiceServers []Endpoint
	ServiceClients []Endpoint
	ActionServers  []Endpoint
	ActionClients  []Endpoint
}

// parseNodeInfoText splits `ros2 node info` output into its six categorized
// sections. Entries are `name: type` pairs split at the last colon.
func parseNodeInfoText(text string) nodeInfo {
	var info nodeInfo
	var current *[]Endpoint

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		switch line {
		case "Publishers:":
			current = &info.Publishers

			continue
		case "Subscribers:":
			current = &info.Subscribers

			continue
		case "Service Servers:":
			current = &info.ServiceServers

			continue
		case "Service Clients:":
			current = &info.ServiceClients

			continue
		case "Action Servers:":
			current = &info.ActionServers

			continue
		case "Action Clients:":
			current = &info.ActionClients

			continue
		}
		if strings.HasPrefix(line, "Node name:") {
			continue
		}
		if current == nil {
			continue
		}

		entry := cleanGraphEntryLine(line)
		name := entry
		var entryType string
		if colon := strings.LastIndexByte(entry, ':'); colon > 0 {
			name = strings.TrimSpace(entry[:colon])
			entryType = strings.TrimSpace(entry[colon+1:])
		}
		*current = append(*current, Endpoint{Name: name, Type: entryType})
	}

	return info
}

func parseTopicInfoVerbose(text string) TopicQoS {
	out := TopicQoS{}
	if len(text) > maxRawTopicInfo {
		out.Raw = text[:maxRawTopicInfo]
	} else {
		out.Raw = text
	}

	var reliability, durability string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Publisher count:"):
			out.PublisherCount, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Publisher count:")))
		case strings.HasPrefix(line, "Subscription count:"):
			out.SubscriptionCount, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Subscription count:")))
		case strings.HasPrefix(line, "Reliability:"):
			reliability = strings.TrimSpace(strings.TrimPrefix(line, "Reliability:"))
		case strings.HasPrefix(line, "Durability:"):
			durability = strings.TrimSpace(strings.TrimPrefix(line, "Durability:"))
		case strings.HasPrefix(line, "History (Depth):"):
			out.QoSProfiles = append(out.QoSProfiles, QoSProfile{
				Reliability:  reliability,
				Durability:   durability,
				HistoryDepth: strings.TrimSpace(strings.TrimPrefix(line, "History (Depth):")),
			})
			reliability = ""
			durability = ""
		}
	}

	return out
}

// parseTfEdges pairs frame_id lines with the following child_frame_id line.
func parseTfEdges(text string) []TfEdge {
	var edges []TfEdge
	var parent string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "frame_id:"):
			parent = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "frame_id:")), `"`)
		case strings.HasPrefix(line, "child_frame_id:"):
			child := strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "child_frame_id:")), `"`)
			if parent != "" && child != "" {
				edges = append(edges, TfEdge{Parent: parent, Child: child})
			}
		}
	}

	return edges
}

func inferBehaviorRoles(node Node) []string {
	roles := make(map[string]struct{})

	for _, pub := range node.Publishers {
		lowerType := strings.ToLower(pub.Type)
		if strings.Contains(lowerType, "geometry_msgs/msg/twist") {
			roles["controller"] = struct{}{}
		}
		if strings.Contains(lowerType, "nav_msgs/msg/path") {
			roles["planner"] = struct{}{}
		}
		if strings.Contains(lowerType, "sensor_msgs/msg/image") {
			roles["perception"] = struct{}{}
		}
		if strings.Contains(lowerType, "sensor_msgs/msg/pointcloud2") {
			roles["lidar_pipeline"] = struct{}{}
		}
		if strings.Contains(lowerType, "tf2_msgs/msg/tfmessage") || pub.Name == "/tf" || pub.Name == "/tf_static" {
			roles["state_estimation"] = struct{}{}
			roles["transform_broadcaster"] = struct{}{}
		}
	}
	for _, sub := range node.Subscribers {
		lowerType := strings.ToLower(sub.Type)
		if strings.Contains(lowerType, "sensor_msgs/msg/image") || strings.Contains(lowerType, "sensor_msgs/msg/pointcloud2") {
			roles["perception"] = struct{}{}
		}
	}
	if len(node.ActionServers) > 0 || len(node.ActionClients) > 0 {
		roles["task_executor"] = struct{}{}
	}
	if len(node.ServiceServers) > 0 || len(node.ServiceClients) > 0 {
		roles["service_oriented"] = struct{}{}
	}
	if len(roles) == 0 {
		roles["generic"] = struct{}{}
	}

	ordered := make([]string, 0, len(roles))
	for role := range roles {
		ordered = append(ordered, role)
	}
	sort.Strings(ordered)

	return ordered
}

func classifyRuntime(cpu float64, threads, publisherCount int) string {
	switch {
	case cpu >= 70.0:
		return "cpu_bound"
	case threads >= 40 && cpu < 50.0:
		return "io_bound"
	case publisherCount >= 6:
		return "network_heavy"
	case cpu >= 15.0:
		return "active"
	default:
		return "idle"
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}
