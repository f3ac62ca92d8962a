package cli

import (
	"github.com/spf13/cobra"

	"github.com/00PrabalK00/RosScope/orchestrator"
)

// NewFleetCmd returns the fleet command tree.
func NewFleetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet [refresh|load|action]",
		Short: "Fleet operations",
		Long:  `Refresh fleet status, reload targets, and run remote actions.`,
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Probe every fleet target",
		Run: func(cmd *cobra.Command, args []string) {
			runAction(cmd, "fleet_refresh", orchestrator.Payload{})
		},
	}

	loadCmd := &cobra.Command{
		Use:   "load [path]",
		Short: "Reload fleet targets from disk",
		Run: func(cmd *cobra.Command, args []string) {
			payload := orchestrator.Payload{}
			if len(args) == 1 {
				payload.Path = args[0]
			}
			runAction(cmd, "fleet_load_targets", payload)
		},
	}

	actionCmd := &cobra.Command{
		Use:   "action <target> <restart_domain|kill_ros|isolate_domain> [domain]",
		Short: "Run a remote action on a target",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			payload := orchestrator.Payload{Target: args[0], RemoteAction: args[1], DomainID: "0"}
			if len(args) > 2 {
				payload.DomainID = args[2]
			}
			runAction(cmd, "remote_action", payload)
		},
	}

	cmd.AddCommand(refreshCmd, loadCmd, actionCmd)

	return cmd
}

// NewSnapshotCmd returns the snapshot command tree.
func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot [export|compare]",
		Short: "Snapshot export and diff",
	}

	var format string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a full snapshot",
		Run: func(cmd *cobra.Command, args []string) {
			action := "snapshot_json"
			if format == "yaml" {
				action = "snapshot_yaml"
			}
			runAction(cmd, action, orchestrator.Payload{})
		},
	}
	exportCmd.Flags().StringVar(&format, "format", "json", "Export format (json|yaml)")

	compareCmd := &cobra.Command{
		Use:   "compare <left.json> <right.json>",
		Short: "Diff two snapshot files",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			runAction(cmd, "compare_snapshots", orchestrator.Payload{LeftPath: args[0], RightPath: args[1]})
		},
	}

	cmd.AddCommand(exportCmd, compareCmd)

	return cmd
}

// NewSessionCmd returns the session recorder command tree.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session [start|stop|export]",
		Short: "Session recording",
	}

	startCmd := &cobra.Command{
		Use:   "start [name]",
		Short: "Start recording snapshots",
		Run: func(cmd *cobra.Command, args []string) {
			payload := orchestrator.Payload{}
			if len(args) == 1 {
				payload.SessionName = args[0]
			}
			runAction(cmd, "session_start", payload)
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop recording",
		Run: func(cmd *cobra.Command, args []string) {
			runAction(cmd, "session_stop", orchestrator.Payload{})
		},
	}

	var format string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the recorded session",
		Run: func(cmd *cobra.Command, args []string) {
			runAction(cmd, "session_export", orchestrator.Payload{Format: format})
		},
	}
	exportCmd.Flags().StringVar(&format, "format", "json", "Export format (json|yaml)")

	cmd.AddCommand(startCmd, stopCmd, exportCmd)

	return cmd
}

// NewParametersCmd returns the node parameter dump command.
func NewParametersCmd() *cobra.Command {
	var domain string
	cmd := &cobra.Command{
		Use:   "params <node>",
		Short: "Dump node parameters",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			params, err := rsdk.NodeParameters(domain, args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, params)
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "0", "ROS domain id")

	return cmd
}

// NewTelemetryCmd returns the telemetry dump command.
func NewTelemetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "telemetry",
		Short: "Print engine telemetry",
		Run: func(cmd *cobra.Command, args []string) {
			snap, err := rsdk.Telemetry()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, snap)
		},
	}
}
