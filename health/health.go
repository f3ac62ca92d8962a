package health

import (
	"sort"

	"github.com/00PrabalK00/RosScope/inspector"
)

const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

type ZombieNode struct {
	DomainID string `json:"domain_id"`
	Node     string `json:"node"`
}

type DomainConflict struct {
	Node    string   `json:"node"`
	Domains []string `json:"domains"`
}

type Report struct {
	Status                       string                            `json:"status"`
	DuplicateNodes               []inspector.DuplicateNode         `json:"duplicate_nodes"`
	ZombieNodes                  []ZombieNode                      `json:"zombie_nodes"`
	DomainConflicts              []DomainConflict                  `json:"domain_conflicts"`
	PublishersWithoutSubscribers []string                          `json:"publishers_without_subscribers"`
	SubscribersWithoutPublishers []string                          `json:"subscribers_without_publishers"`
	MissingServiceServers        []inspector.MissingServiceServer  `json:"missing_service_servers"`
	MissingActionServers         []inspector.MissingActionServer   `json:"missing_action_servers"`
	MisinitializedProcesses      []inspector.MisinitializedProcess `json:"misinitialized_processes"`
	TfWarnings                   []string                          `json:"tf_warnings"`
	Nav2GoalActive               bool                              `json:"nav2_goal_active"`
}

// Evaluate derives the overall health status from the domain inventory, the
// graph relations and the TF probe. Pure function of its inputs.
func Evaluate(domains []inspector.DomainDetail, graph inspector.Graph, tf inspector.TfNav2) Report {
	zombies := []ZombieNode{}
	nodeDomains := make(map[string]map[string]struct{})

	for _, domain := range domains {
		domainID := domain.DomainID
		if domainID == "" {
			domainID = "0"
		}
		for _, node := range domain.Nodes {
			if nodeDomains[node.FullName] == nil {
				nodeDomains[node.FullName] = make(map[string]struct{})
			}
			nodeDomains[node.FullName][domainID] = struct{}{}
			if node.PID < 0 {
				zombies = append(zombies, ZombieNode{DomainID: domainID, Node: node.FullName})
			}
		}
	}

	conflicts := []DomainConflict{}
	conflictNodes := make([]string, 0, len(nodeDomains))
	for node, ids := range nodeDomains {
		if len(ids) > 1 {
			conflictNodes = append(conflictNodes, node)
		}
	}
	sort.Strings(conflictNodes)
	for _, node := range conflictNodes {
		ids := make([]string, 0, len(nodeDomains[node]))
		for id := range nodeDomains[node] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		conflicts = append(conflicts, DomainConflict{Node: node, Domains: ids})
	}

	report := Report{
		Status:                       StatusHealthy,
		DuplicateNodes:               graph.DuplicateNodeNames,
		ZombieNodes:                  zombies,
		DomainConflicts:              conflicts,
		PublishersWithoutSubscribers: graph.PublishersWithoutSubscribers,
		SubscribersWithoutPublishers: graph.SubscribersWithoutPublishers,
		MissingServiceServers:        graph.MissingServiceServers,
		MissingActionServers:         graph.MissingActionServers,
		MisinitializedProcesses:      graph.MisinitializedProcesses,
		TfWarnings:                   tf.TfWarnings,
		Nav2GoalActive:               tf.Runtime.GoalActive,
	}

	switch {
	case len(zombies) > 0 || len(conflicts) > 0 || len(graph.MisinitializedProcesses) > 0:
		report.Status = StatusCritical
	case len(graph.DuplicateNodeNames) > 0 || len(tf.TfWarnings) > 0 ||
		len(graph.PublishersWithoutSubscribers) > 0 || len(graph.SubscribersWithoutPublishers) > 0 ||
		len(graph.MissingServiceServers) > 0 || len(graph.MissingActionServers) > 0:
		report.Status = StatusWarning
	}

	return report
}
