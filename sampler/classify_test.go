package sampler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRosProcessByEnv(t *testing.T) {
	cases := []struct {
		desc string
		env  map[string]string
		want bool
	}{
		{desc: "ros domain id", env: map[string]string{"ROS_DOMAIN_ID": "0"}, want: true},
		{desc: "ros version", env: map[string]string{"ROS_VERSION": "2"}, want: true},
		{desc: "ament prefix", env: map[string]string{"AMENT_PREFIX_PATH": "/opt/ros/humble"}, want: true},
		{desc: "colcon prefix", env: map[string]string{"COLCON_PREFIX_PATH": "/ws/install"}, want: true},
		{desc: "unrelated env", env: map[string]string{"PATH": "/usr/bin"}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, isRosProcess(t.TempDir(), "/bin/app", "app", tc.env))
		})
	}
}

func TestIsRosProcessByCmdline(t *testing.T) {
	cases := []struct {
		desc    string
		cmdline string
		want    bool
	}{
		{desc: "ros args", cmdline: "/bin/app --ros-args", want: true},
		{desc: "node remap", cmdline: "/bin/app __node:=foo", want: true},
		{desc: "ns remap", cmdline: "/bin/app __ns:=/x", want: true},
		{desc: "ros2 invocation", cmdline: "ros2 run pkg exe", want: true},
		{desc: "plain", cmdline: "/bin/app", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, isRosProcess(t.TempDir(), "/bin/app", tc.cmdline, nil))
		})
	}
}

func TestIsRosProcessMapsFallback(t *testing.T) {
	dir := t.TempDir()
	maps := "7f0000000000-7f0000001000 r-xp 00000000 08:01 1 /usr/lib/librclcpp.so\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "maps"), []byte(maps), 0o644))

	// "roscore-like" text triggers the maps scan which finds librclcpp.
	assert.True(t, isRosProcess(dir, "/bin/rosish", "rosish", nil))
	// Text with no ROS smell never opens maps.
	assert.False(t, isRosProcess(dir, "/bin/vim", "vim", nil))
}

func TestDetectWorkspaceOrigin(t *testing.T) {
	cases := []struct {
		desc string
		exe  string
		env  map[string]string
		want string
	}{
		{
			desc: "ament wins",
			exe:  "/opt/ros/humble/lib/x",
			env:  map[string]string{"AMENT_PREFIX_PATH": "/ws/install/a:/opt/ros/humble"},
			want: "/ws/install/a",
		},
		{
			desc: "colcon second",
			exe:  "",
			env:  map[string]string{"COLCON_PREFIX_PATH": "/ws2/install"},
			want: "/ws2/install",
		},
		{
			desc: "opt ros prefix",
			exe:  "/opt/ros/jazzy/lib/pkg/node",
			want: "/opt/ros/jazzy",
		},
		{
			desc: "install segment",
			exe:  "/home/robot/ws/install/my_pkg/lib/my_pkg/node",
			want: "/home/robot/ws/install/my_pkg",
		},
		{desc: "unknown", exe: "/usr/bin/top", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, detectWorkspaceOrigin(tc.exe, tc.env))
		})
	}
}

func TestDetectPackageAndLaunchSource(t *testing.T) {
	assert.Equal(t, "my_pkg", detectPackage("/ws/install/my_pkg/lib/my_pkg/node", ""))
	assert.Equal(t, "demo", detectPackage("", "ros2 run demo talker"))
	assert.Equal(t, "", detectPackage("/usr/bin/x", "x"))

	assert.Equal(t, "/ws/bringup.launch.py", detectLaunchSource("python3 /ws/bringup.launch.py --arg"))
	assert.Equal(t, "", detectLaunchSource("python3 main.py"))
}

func TestDetectNodeNameAndNamespace(t *testing.T) {
	cmdline := "/bin/node --ros-args -r __node:=lidar -r __ns:=/sensors"
	assert.Equal(t, "lidar", detectNodeName(cmdline))
	assert.Equal(t, "/sensors", detectNamespace(cmdline))
	assert.Equal(t, "/", detectNamespace("/bin/node"))
}

func TestUptimeString(t *testing.T) {
	assert.Equal(t, "0s", uptimeString(-5))
	assert.Equal(t, "42s", uptimeString(42))
	assert.Equal(t, "2m 3s", uptimeString(123))
	assert.Equal(t, "1h 1m 5s", uptimeString(3665))
}
