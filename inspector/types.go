package inspector

// Endpoint is one named, typed graph endpoint (topic, service or action).
type Endpoint struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type ParameterHint struct {
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
}

type Node struct {
	DomainID            string          `json:"domain_id"`
	FullName            string          `json:"full_name"`
	NodeName            string          `json:"node_name"`
	Namespace           string          `json:"namespace"`
	PID                 int64           `json:"pid"`
	Executable          string          `json:"executable"`
	Package             string          `json:"package"`
	WorkspaceOrigin     string          `json:"workspace_origin"`
	LaunchSource        string          `json:"launch_source"`
	CPUPercent          float64         `json:"cpu_percent"`
	MemoryPercent       float64         `json:"memory_percent"`
	Threads             int             `json:"threads"`
	Publishers          []Endpoint      `json:"publishers"`
	Subscribers         []Endpoint      `json:"subscribers"`
	ServiceServers      []Endpoint      `json:"service_servers"`
	ServiceClients      []Endpoint      `json:"service_clients"`
	ActionServers       []Endpoint      `json:"action_servers"`
	ActionClients       []Endpoint      `json:"action_clients"`
	LifecycleCapable    bool            `json:"lifecycle_capable"`
	LifecycleState      string          `json:"lifecycle_state"`
	ParametersSupported bool            `json:"parameters_supported"`
	ParameterNames      []string        `json:"parameter_names"`
	ParameterCount      int             `json:"parameter_count"`
	PluginHints         []ParameterHint `json:"plugin_hints"`
	RuntimeClass        string          `json:"runtime_classification"`
	BehaviorRoles       []string        `json:"behavior_roles"`
	PrimaryBehaviorRole string          `json:"primary_behavior_role"`
}

type QoSProfile struct {
	Reliability  string `json:"reliability"`
	Durability   string `json:"durability"`
	HistoryDepth string `json:"history_depth"`
}

type TopicQoS struct {
	Raw               string       `json:"raw"`
	PublisherCount    int          `json:"publisher_count"`
	SubscriptionCount int          `json:"subscription_count"`
	QoSProfiles       []QoSProfile `json:"qos_profiles"`
}

// DomainSummary aggregates the local process table per ROS_DOMAIN_ID.
type DomainSummary struct {
	DomainID            string  `json:"domain_id"`
	RosProcessCount     int     `json:"ros_process_count"`
	DDSParticipantCount int     `json:"dds_participant_count"`
	DomainCPUPercent    float64 `json:"domain_cpu_percent"`
	DomainMemoryPercent float64 `json:"domain_memory_percent"`
	WorkspaceCount      int     `json:"workspace_count"`
}

// DomainDetail is the per-domain node inventory, optionally enriched with
// graph details, merged with the summary counters.
type DomainDetail struct {
	DomainID            string              `json:"domain_id"`
	Error               string              `json:"error,omitempty"`
	Details             string              `json:"details,omitempty"`
	Nodes               []Node              `json:"nodes"`
	TopicQoS            map[string]TopicQoS `json:"topic_qos"`
	RosProcessCount     int                 `json:"ros_process_count"`
	DomainCPUPercent    float64             `json:"domain_cpu_percent"`
	DomainMemoryPercent float64             `json:"domain_memory_percent"`
	WorkspaceCount      int                 `json:"workspace_count"`
}

type Topic struct {
	Topic           string   `json:"topic"`
	Publishers      []string `json:"publishers"`
	Subscribers     []string `json:"subscribers"`
	PublisherCount  int      `json:"publisher_count"`
	SubscriberCount int      `json:"subscriber_count"`
}

type DuplicateNode struct {
	Node  string `json:"node"`
	Count int    `json:"count"`
}

type ServiceEdge struct {
	Service    string `json:"service"`
	ClientNode string `json:"client_node"`
	ServerNode string `json:"server_node"`
}

type ActionEdge struct {
	Action     string `json:"action"`
	ClientNode string `json:"client_node"`
	ServerNode string `json:"server_node"`
}

type MissingServiceServer struct {
	Service string   `json:"service"`
	Clients []string `json:"clients"`
}

type MissingActionServer struct {
	Action  string   `json:"action"`
	Clients []string `json:"clients"`
}

type ImpactScore struct {
	Node            string `json:"node"`
	DownstreamCount int    `json:"downstream_count"`
}

type MisinitializedProcess struct {
	PID             int64  `json:"pid"`
	NodeName        string `json:"node_name"`
	Executable      string `json:"executable"`
	WorkspaceOrigin string `json:"workspace_origin"`
}

type Graph struct {
	DomainID                     string                  `json:"domain_id"`
	Error                        string                  `json:"error,omitempty"`
	Nodes                        []Node                  `json:"nodes"`
	NodeToPID                    map[string]int64        `json:"node_to_pid"`
	Topics                       []Topic                 `json:"topics"`
	TopicQoS                     map[string]TopicQoS     `json:"topic_qos"`
	PublishersWithoutSubscribers []string                `json:"publishers_without_subscribers"`
	SubscribersWithoutPublishers []string                `json:"subscribers_without_publishers"`
	MissingServiceServers        []MissingServiceServer  `json:"missing_service_servers"`
	MissingActionServers         []MissingActionServer   `json:"missing_action_servers"`
	ServiceEdges                 []ServiceEdge           `json:"service_edges"`
	ActionEdges                  []ActionEdge            `json:"action_edges"`
	IsolatedNodes                []string                `json:"isolated_nodes"`
	CircularDependencies         []string                `json:"circular_dependencies"`
	SinglePointsOfFailure        []ImpactScore           `json:"single_points_of_failure"`
	DuplicateNodeNames           []DuplicateNode         `json:"duplicate_node_names"`
	MisinitializedProcesses      []MisinitializedProcess `json:"misinitialized_processes"`
	TfWarnings                   []string                `json:"tf_warnings"`
	RoleSummary                  map[string]int          `json:"role_summary"`
}

type TfEdge struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
	Topic  string `json:"topic,omitempty"`
}

type LifecycleState struct {
	Node  string `json:"node"`
	State string `json:"state"`
}

type ActionStatusRow struct {
	Topic  string `json:"topic"`
	Active bool   `json:"active"`
	Sample string `json:"sample"`
}

type RuntimeStatus struct {
	LifecycleStates    []LifecycleState  `json:"lifecycle_states"`
	ActionStatus       []ActionStatusRow `json:"action_status"`
	ActiveActionTopics []string          `json:"active_action_topics"`
	GoalActive         bool              `json:"goal_active"`
}

type TfNav2 struct {
	DomainID   string        `json:"domain_id"`
	Error      string        `json:"error,omitempty"`
	TfTopics   []string      `json:"tf_topics"`
	TfEdges    []TfEdge      `json:"tf_edges"`
	TfWarnings []string      `json:"tf_warnings"`
	Runtime    RuntimeStatus `json:"runtime"`
}

type NodeParameters struct {
	DomainID   string `json:"domain_id"`
	Node       string `json:"node"`
	Success    bool   `json:"success"`
	Parameters string `json:"parameters"`
	Error      string `json:"error,omitempty"`
}
