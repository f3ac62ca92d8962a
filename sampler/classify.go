package sampler

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const maxMapsRead = 256 * 1024

var rosHints = []string{
	"ros2",
	"rclcpp",
	"rclpy",
	"librclcpp",
	"librclpy",
	"libfastrtps",
	"libcyclonedds",
	"libdds",
}

var mapsHints = []string{
	"librclcpp",
	"librclpy",
	"librmw",
	"libfastrtps",
	"libfastdds",
	"libcyclonedds",
	"libdds",
}

var (
	installPrefixRe = regexp.MustCompile(`^(.*/install/[^/]+)`)
	installPkgRe    = regexp.MustCompile(`/install/([^/]+)/`)
	rosRunRe        = regexp.MustCompile(`ros2\s+run\s+(\S+)\s+`)
	nodeArgRe       = regexp.MustCompile(`__node:=(\S+)`)
	nsArgRe         = regexp.MustCompile(`__ns:=(\S+)`)
)

func firstPathEntry(value string) string {
	for _, entry := range strings.Split(value, ":") {
		if entry != "" {
			return entry
		}
	}

	return ""
}

// isRosProcess decides ROS membership from env, command line and exe hints.
// Only when the shallow text already smells like ROS does it fall back to a
// bounded read of /proc/<pid>/maps.
func isRosProcess(pidPath, exePath, cmdline string, env map[string]string) bool {
	for _, key := range []string{"ROS_DOMAIN_ID", "ROS_VERSION", "AMENT_PREFIX_PATH", "COLCON_PREFIX_PATH"} {
		if _, ok := env[key]; ok {
			return true
		}
	}

	lowerCmdline := strings.ToLower(cmdline)
	if strings.Contains(lowerCmdline, "--ros-args") ||
		strings.Contains(lowerCmdline, "__node:=") ||
		strings.Contains(lowerCmdline, "__ns:=") ||
		strings.Contains(lowerCmdline, "ros2 ") {
		return true
	}

	haystack := strings.ToLower(exePath + " " + lowerCmdline)
	for _, hint := range rosHints {
		if strings.Contains(haystack, hint) {
			return true
		}
	}

	// Guard the expensive maps scan; it can be very large under many heavy
	// processes.
	if !strings.Contains(haystack, "ros") &&
		!strings.Contains(haystack, "rcl") &&
		!strings.Contains(haystack, "dds") &&
		!strings.Contains(haystack, "fast") &&
		!strings.Contains(haystack, "cyclone") {
		return false
	}

	f, err := os.Open(filepath.Join(pidPath, "maps"))
	if err != nil {
		return false
	}
	defer f.Close()
	chunk := make([]byte, maxMapsRead)
	n, _ := f.Read(chunk)
	maps := strings.ToLower(string(chunk[:n]))
	for _, hint := range mapsHints {
		if strings.Contains(maps, hint) {
			return true
		}
	}

	return false
}

func detectWorkspaceOrigin(exePath string, env map[string]string) string {
	if ament := firstPathEntry(env["AMENT_PREFIX_PATH"]); ament != "" {
		return ament
	}
	if colcon := firstPathEntry(env["COLCON_PREFIX_PATH"]); colcon != "" {
		return colcon
	}
	if strings.HasPrefix(exePath, "/opt/ros/") {
		parts := strings.Split(strings.Trim(exePath, "/"), "/")
		if len(parts) >= 3 {
			return "/" + parts[0] + "/" + parts[1] + "/" + parts[2]
		}
	}
	if m := installPrefixRe.FindStringSubmatch(exePath); m != nil {
		return m[1]
	}

	return ""
}

func detectPackage(exePath, cmdline string) string {
	if m := installPkgRe.FindStringSubmatch(exePath); m != nil {
		return m[1]
	}
	if m := rosRunRe.FindStringSubmatch(cmdline); m != nil {
		return m[1]
	}
	if m := installPkgRe.FindStringSubmatch(cmdline); m != nil {
		return m[1]
	}

	return ""
}

func detectLaunchSource(cmdline string) string {
	for _, token := range strings.Fields(cmdline) {
		if strings.Contains(token, ".launch.py") || strings.Contains(token, ".launch.xml") ||
			strings.Contains(token, ".launch.yaml") || strings.Contains(token, ".launch.yml") {
			return token
		}
	}

	return ""
}

func detectNodeName(cmdline string) string {
	if m := nodeArgRe.FindStringSubmatch(cmdline); m != nil {
		return m[1]
	}

	return ""
}

func detectNamespace(cmdline string) string {
	if m := nsArgRe.FindStringSubmatch(cmdline); m != nil {
		return m[1]
	}

	return "/"
}
