package inspector

import (
	"context"
	"sort"
	"strings"

	"github.com/00PrabalK00/RosScope/sampler"
)

// InspectGraph runs a detailed domain inspection and derives the adjacency
// relations: orphan topics, missing servers, cycles and failure ranking.
func (i *Inspector) InspectGraph(ctx context.Context, domainID string, processes []sampler.Record) Graph {
	domain := i.InspectDomain(ctx, domainID, processes, true)
	graph := BuildGraph(domainID, domain.Nodes, domain.TopicQoS, processes)
	graph.Error = domain.Error

	return graph
}

// BuildGraph derives the full relation set from an inspected node list. Pure
// with respect to external commands.
func BuildGraph(domainID string, nodes []Node, topicQoS map[string]TopicQoS, processes []sampler.Record) Graph {
	publishersByTopic := make(map[string]map[string]struct{})
	subscribersByTopic := make(map[string]map[string]struct{})
	serviceServers := make(map[string]map[string]struct{})
	serviceClients := make(map[string]map[string]struct{})
	actionServers := make(map[string]map[string]struct{})
	actionClients := make(map[string]map[string]struct{})
	adjacency := make(map[string]map[string]struct{})
	nodeNameCount := make(map[string]int)
	roleCounts := make(map[string]int)
	graphNodesFull := make(map[string]struct{})
	graphNodesBase := make(map[string]struct{})
	nodeToPID := make(map[string]int64)

	isolated := []string{}
	insert := func(m map[string]map[string]struct{}, key, node string) {
		if key == "" {
			return
		}
		if m[key] == nil {
			m[key] = make(map[string]struct{})
		}
		m[key][node] = struct{}{}
	}

	for _, node := range nodes {
		nodeNameCount[node.FullName]++
		graphNodesFull[node.FullName] = struct{}{}
		graphNodesBase[node.NodeName] = struct{}{}
		nodeToPID[node.FullName] = node.PID

		for _, role := range node.BehaviorRoles {
			if role != "" {
				roleCounts[role]++
			}
		}

		if len(node.Publishers) == 0 && len(node.Subscribers) == 0 &&
			len(node.ServiceServers) == 0 && len(node.ServiceClients) == 0 &&
			len(node.ActionServers) == 0 && len(node.ActionClients) == 0 {
			isolated = append(isolated, node.FullName)
		}

		for _, pub := range node.Publishers {
			insert(publishersByTopic, pub.Name, node.FullName)
		}
		for _, sub := range node.Subscribers {
			insert(subscribersByTopic, sub.Name, node.FullName)
		}
		for _, srv := range node.ServiceServers {
			insert(serviceServers, srv.Name, node.FullName)
		}
		for _, cli := range node.ServiceClients {
			insert(serviceClients, cli.Name, node.FullName)
		}
		for _, srv := range node.ActionServers {
			insert(actionServers, srv.Name, node.FullName)
		}
		for _, cli := range node.ActionClients {
			insert(actionClients, cli.Name, node.FullName)
		}
	}

	allTopics := make(map[string]struct{})
	for topic := range publishersByTopic {
		allTopics[topic] = struct{}{}
	}
	for topic := range subscribersByTopic {
		allTopics[topic] = struct{}{}
	}

	topics := []Topic{}
	noSubscriberTopics := []string{}
	noPublisherTopics := []string{}
	tfWarnings := []string{}
	for _, topic := range sortedSet(allTopics) {
		pubs := publishersByTopic[topic]
		subs := subscribersByTopic[topic]
		topics = append(topics, Topic{
			Topic:           topic,
			Publishers:      sortedSet(pubs),
			Subscribers:     sortedSet(subs),
			PublisherCount:  len(pubs),
			SubscriberCount: len(subs),
		})

		if len(pubs) > 0 && len(subs) == 0 {
			noSubscriberTopics = append(noSubscriberTopics, topic)
		}
		if len(pubs) == 0 && len(subs) > 0 {
			noPublisherTopics = append(noPublisherTopics, topic)
		}
		if (topic == "/tf" || topic == "/tf_static") && len(pubs) > 1 {
			tfWarnings = append(tfWarnings, "Multiple publishers detected on "+topic)
		}

		for pub := range pubs {
			for sub := range subs {
				if pub != sub {
					if adjacency[pub] == nil {
						adjacency[pub] = make(map[string]struct{})
					}
					adjacency[pub][sub] = struct{}{}
				}
			}
		}
	}

	duplicates := []DuplicateNode{}
	for _, name := range sortedKeys(nodeNameCount) {
		if nodeNameCount[name] > 1 {
			duplicates = append(duplicates, DuplicateNode{Node: name, Count: nodeNameCount[name]})
		}
	}

	serviceEdges, missingServiceServers := serviceRelations(serviceServers, serviceClients)
	actionEdges, missingActionServers := actionRelations(actionServers, actionClients)

	cycles := detectCycles(sortedSet(graphNodesFull), adjacency)
	spof := singlePointsOfFailure(sortedSet(graphNodesFull), adjacency)

	misinitialized := []MisinitializedProcess{}
	for _, proc := range processes {
		if !proc.IsROS || proc.DomainID != domainID || proc.NodeName == "" {
			continue
		}
		if _, ok := graphNodesBase[proc.NodeName]; !ok {
			misinitialized = append(misinitialized, MisinitializedProcess{
				PID:             proc.PID,
				NodeName:        proc.NodeName,
				Executable:      proc.Executable,
				WorkspaceOrigin: proc.WorkspaceOrigin,
			})
		}
	}

	if topicQoS == nil {
		topicQoS = map[string]TopicQoS{}
	}

	return Graph{
		DomainID:                     domainID,
		Nodes:                        nodes,
		NodeToPID:                    nodeToPID,
		Topics:                       topics,
		TopicQoS:                     topicQoS,
		PublishersWithoutSubscribers: noSubscriberTopics,
		SubscribersWithoutPublishers: noPublisherTopics,
		MissingServiceServers:        missingServiceServers,
		MissingActionServers:         missingActionServers,
		ServiceEdges:                 serviceEdges,
		ActionEdges:                  actionEdges,
		IsolatedNodes:                isolated,
		CircularDependencies:         cycles,
		SinglePointsOfFailure:        spof,
		DuplicateNodeNames:           duplicates,
		MisinitializedProcesses:      misinitialized,
		TfWarnings:                   tfWarnings,
		RoleSummary:                  roleCounts,
	}
}

func serviceRelations(servers, clients map[string]map[string]struct{}) ([]ServiceEdge, []MissingServiceServer) {
	all := make(map[string]struct{})
	for s := range servers {
		all[s] = struct{}{}
	}
	for c := range clients {
		all[c] = struct{}{}
	}

	edges := []ServiceEdge{}
	missing := []MissingServiceServer{}
	for _, service := range sortedSet(all) {
		srv := servers[service]
		cli := clients[service]
		if len(srv) == 0 && len(cli) > 0 {
			missing = append(missing, MissingServiceServer{Service: service, Clients: sortedSet(cli)})
		}
		for _, client := range sortedSet(cli) {
			for _, server := range sortedSet(srv) {
				edges = append(edges, ServiceEdge{Service: service, ClientNode: client, ServerNode: server})
			}
		}
	}

	return edges, missing
}

func actionRelations(servers, clients map[string]map[string]struct{}) ([]ActionEdge, []MissingActionServer) {
	all := make(map[string]struct{})
	for s := range servers {
		all[s] = struct{}{}
	}
	for c := range clients {
		all[c] = struct{}{}
	}

	edges := []ActionEdge{}
	missing := []MissingActionServer{}
	for _, action := range sortedSet(all) {
		srv := servers[action]
		cli := clients[action]
		if len(srv) == 0 && len(cli) > 0 {
			missing = append(missing, MissingActionServer{Action: action, Clients: sortedSet(cli)})
		}
		for _, client := range sortedSet(cli) {
			for _, server := range sortedSet(srv) {
				edges = append(edges, ActionEdge{Action: action, ClientNode: client, ServerNode: server})
			}
		}
	}

	return edges, missing
}

const (
	colorUnvisited = 0
	colorInStack   = 1
	colorDone      = 2
)

type dfsFrame struct {
	node     string
	children []string
	next     int
}

// detectCycles walks the topic adjacency with an iterative three-color DFS
// and records each cycle as "a -> b -> a". An explicit work stack keeps deep
// graphs from exhausting the call stack.
func detectCycles(nodes []string, adjacency map[string]map[string]struct{}) []string {
	visit := make(map[string]int)
	cycles := make(map[string]struct{})

	for _, start := range nodes {
		if visit[start] != colorUnvisited {
			continue
		}

		stack := []dfsFrame{{node: start, children: sortedSet(adjacency[start])}}
		visit[start] = colorInStack
		path := []string{start}

		for len(stack) > 0 {
			frame := &stack[len(stack)-1]
			if frame.next < len(frame.children) {
				child := frame.children[frame.next]
				frame.next++
				switch visit[child] {
				case colorUnvisited:
					visit[child] = colorInStack
					stack = append(stack, dfsFrame{node: child, children: sortedSet(adjacency[child])})
					path = append(path, child)
				case colorInStack:
					for idx := len(path) - 1; idx >= 0; idx-- {
						if path[idx] == child {
							cycle := append(append([]string{}, path[idx:]...), child)
							cycles[strings.Join(cycle, " -> ")] = struct{}{}

							break
						}
					}
				}

				continue
			}
			visit[frame.node] = colorDone
			stack = stack[:len(stack)-1]
			path = path[:len(path)-1]
		}
	}

	return sortedSet(cycles)
}

// singlePointsOfFailure ranks nodes by downstream BFS reach; nodes reaching
// at least 3 others qualify, top 10 returned.
func singlePointsOfFailure(nodes []string, adjacency map[string]map[string]struct{}) []ImpactScore {
	scores := make([]ImpactScore, 0, len(nodes))
	for _, node := range nodes {
		reach := downstreamReach(node, adjacency)
		if reach >= 3 {
			scores = append(scores, ImpactScore{Node: node, DownstreamCount: reach})
		}
	}
	sort.Slice(scores, func(a, b int) bool {
		if scores[a].DownstreamCount != scores[b].DownstreamCount {
			return scores[a].DownstreamCount > scores[b].DownstreamCount
		}

		return scores[a].Node < scores[b].Node
	})
	if len(scores) > 10 {
		scores = scores[:10]
	}

	return scores
}

func downstreamReach(node string, adjacency map[string]map[string]struct{}) int {
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

	return len(visited)
}
