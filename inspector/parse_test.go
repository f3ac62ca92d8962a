package inspector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNodeInfo = `/lidar_driver
  Subscribers:
    /parameter_events: rcl_interfaces/msg/ParameterEvent
  Publishers:
    /scan: sensor_msgs/msg/LaserScan
    /tf: tf2_msgs/msg/TFMessage
  Service Servers:
    /lidar_driver/describe_parameters: rcl_interfaces/srv/DescribeParameters
  Service Clients:

  Action Servers:
    /sweep: lidar_msgs/action/Sweep
  Action Clients:
`

func TestParseNodeInfoTextSections(t *testing.T) {
	info := parseNodeInfoText(sampleNodeInfo)
	require.Len(t, info.Publishers, 2)
	assert.Equal(t, Endpoint{Name: "/scan", Type: "sensor_msgs/msg/LaserScan"}, info.Publishers[0])
	require.Len(t, info.Subscribers, 1)
	assert.Equal(t, "/parameter_events", info.Subscribers[0].Name)
	require.Len(t, info.ServiceServers, 1)
	assert.Empty(t, info.ServiceClients)
	require.Len(t, info.ActionServers, 1)
	assert.Equal(t, "lidar_msgs/action/Sweep", info.ActionServers[0].Type)
	assert.Empty(t, info.ActionClients)
}

func TestParseTopicInfoVerbose(t *testing.T) {
	text := `Type: sensor_msgs/msg/LaserScan
Publisher count: 2
Node name: lidar_driver
  Reliability: RELIABLE
  Durability: VOLATILE
  History (Depth): KEEP_LAST (10)
Node name: lidar_driver_b
  Reliability: BEST_EFFORT
  Durability: VOLATILE
  History (Depth): KEEP_LAST (5)
Subscription count: 1
`
	qos := parseTopicInfoVerbose(text)
	assert.Equal(t, 2, qos.PublisherCount)
	assert.Equal(t, 1, qos.SubscriptionCount)
	require.Len(t, qos.QoSProfiles, 2)
	assert.Equal(t, QoSProfile{Reliability: "RELIABLE", Durability: "VOLATILE", HistoryDepth: "KEEP_LAST (10)"}, qos.QoSProfiles[0])
	assert.Equal(t, "BEST_EFFORT", qos.QoSProfiles[1].Reliability)
}

func TestParseTfEdges(t *testing.T) {
	text := `transforms:
- header:
    frame_id: "odom"
  child_frame_id: "base_link"
- header:
    frame_id: "base_link"
  child_frame_id: "laser"
`
	edges := parseTfEdges(text)
	require.Len(t, edges, 2)
	assert.Equal(t, TfEdge{Parent: "odom", Child: "base_link"}, edges[0])
	assert.Equal(t, TfEdge{Parent: "base_link", Child: "laser"}, edges[1])
}

func TestParseLifecycleStateText(t *testing.T) {
	assert.Equal(t, "active [3]", parseLifecycleStateText("Current state: active [3]\n"))
	assert.Equal(t, "inactive", parseLifecycleStateText("inactive\n"))
	assert.Equal(t, "", parseLifecycleStateText("\n\n"))
}

func TestParseTopicListWithTypes(t *testing.T) {
	text := `/tf [tf2_msgs/msg/TFMessage]
/scan [sensor_msgs/msg/LaserScan]
garbage line
/navigate_to_pose/_action/status [action_msgs/msg/GoalStatusArray]
`
	rows := parseTopicListWithTypes(text)
	require.Len(t, rows, 3)
	assert.Equal(t, topicWithType{Topic: "/tf", Type: "tf2_msgs/msg/TFMessage"}, rows[0])
	assert.Equal(t, "/navigate_to_pose/_action/status", rows[2].Topic)
}

func TestBaseNameAndNamespace(t *testing.T) {
	assert.Equal(t, "talker", baseNodeName("/demo/talker"))
	assert.Equal(t, "/demo", nodeNamespace("/demo/talker"))
	assert.Equal(t, "/", nodeNamespace("/talker"))
	assert.Equal(t, "/", nodeNamespace("relative"))
	assert.Equal(t, "relative", baseNodeName("relative"))
}

func TestInferBehaviorRoles(t *testing.T) {
	node := Node{
		Publishers: []Endpoint{
			{Name: "/cmd_vel", Type: "geometry_msgs/msg/Twist"},
			{Name: "/tf", Type: "tf2_msgs/msg/TFMessage"},
		},
		ActionClients: []Endpoint{{Name: "/navigate", Type: "nav2_msgs/action/NavigateToPose"}},
	}
	roles := inferBehaviorRoles(node)
	assert.Equal(t, []string{"controller", "state_estimation", "task_executor", "transform_broadcaster"}, roles)

	assert.Equal(t, []string{"generic"}, inferBehaviorRoles(Node{}))
}

func TestClassifyRuntime(t *testing.T) {
	cases := []struct {
		desc       string
		cpu        float64
		threads    int
		publishers int
		want       string
	}{
		{desc: "cpu bound", cpu: 75, want: "cpu_bound"},
		{desc: "io bound", cpu: 10, threads: 50, want: "io_bound"},
		{desc: "network heavy", cpu: 5, publishers: 8, want: "network_heavy"},
		{desc: "active", cpu: 20, want: "active"},
		{desc: "idle", cpu: 1, want: "idle"},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyRuntime(tc.cpu, tc.threads, tc.publishers))
		})
	}
}

func TestIsPluginLikeParameter(t *testing.T) {
	assert.True(t, isPluginLikeParameter("controller_plugins"))
	assert.True(t, isPluginLikeParameter("robot_base_frame_type"))
	assert.True(t, isPluginLikeParameter("PluginLib.Library"))
	assert.False(t, isPluginLikeParameter("update_frequency"))
}
