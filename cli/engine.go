package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/00PrabalK00/RosScope/orchestrator"
)

var (
	pollDomain   string
	pollRosOnly  bool
	pollQuery    string
	engineerMode bool
)

// NewPollCmd returns the poll command tree.
func NewPollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll the runtime engine",
		Long:  `Request one snapshot from the runtime engine and print it.`,
		Run: func(cmd *cobra.Command, args []string) {
			snap, err := rsdk.Poll(orchestrator.Request{
				SelectedDomain: pollDomain,
				RosOnly:        pollRosOnly,
				ProcessQuery:   pollQuery,
				EngineerMode:   engineerMode,
			})
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, snap)
		},
	}
	cmd.Flags().StringVar(&pollDomain, "domain", "0", "ROS domain id")
	cmd.Flags().BoolVar(&pollRosOnly, "ros-only", false, "Only ROS processes")
	cmd.Flags().StringVar(&pollQuery, "query", "", "Process filter query")
	cmd.Flags().BoolVar(&engineerMode, "engineer", true, "Engineer mode (heavier probes)")

	return cmd
}

// NewActionsCmd returns the action command tree.
func NewActionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action [kill-pid|kill-tree|kill-all-ros|restart-domain|clear-shm|isolate-domain|watchdog]",
		Short: "Runtime control actions",
		Long:  `Dispatch control actions to the runtime engine.`,
	}

	killPidCmd := &cobra.Command{
		Use:   "kill-pid <pid>",
		Short: "SIGKILL one process",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			pid, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			runAction(cmd, "kill_pid", orchestrator.Payload{PID: pid})
		},
	}

	killTreeCmd := &cobra.Command{
		Use:   "kill-tree <pid>",
		Short: "SIGKILL a process tree",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			pid, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			runAction(cmd, "kill_tree", orchestrator.Payload{PID: pid})
		},
	}

	killAllCmd := &cobra.Command{
		Use:   "kill-all-ros",
		Short: "Kill every ROS process",
		Run: func(cmd *cobra.Command, args []string) {
			runAction(cmd, "kill_all_ros", orchestrator.Payload{})
		},
	}

	restartDomainCmd := &cobra.Command{
		Use:   "restart-domain <domain>",
		Short: "Restart a ROS domain",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			runAction(cmd, "restart_domain", orchestrator.Payload{DomainID: args[0]})
		},
	}

	clearShmCmd := &cobra.Command{
		Use:   "clear-shm",
		Short: "Clear middleware shared memory",
		Run: func(cmd *cobra.Command, args []string) {
			runAction(cmd, "clear_shared_memory", orchestrator.Payload{})
		},
	}

	isolateCmd := &cobra.Command{
		Use:   "isolate-domain <domain>",
		Short: "Isolate a ROS domain",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			runAction(cmd, "isolate_domain", orchestrator.Payload{DomainID: args[0]})
		},
	}

	watchdogCmd := &cobra.Command{
		Use:   "watchdog <enable|disable>",
		Short: "Toggle the watchdog",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 || (args[0] != "enable" && args[0] != "disable") {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			runAction(cmd, "watchdog_"+args[0], orchestrator.Payload{})
		},
	}

	cmd.AddCommand(killPidCmd, killTreeCmd, killAllCmd, restartDomainCmd, clearShmCmd, isolateCmd, watchdogCmd)

	return cmd
}

func runAction(cmd *cobra.Command, action string, payload orchestrator.Payload) {
	out, err := rsdk.RunAction(action, payload)
	if err != nil {
		logErrorCmd(*cmd, err)

		return
	}
	logJSONCmd(*cmd, out)
}
