package cli

import (
	"fmt"

	"github.com/fatih/color"
	prettyjson "github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"

	"github.com/00PrabalK00/RosScope/pkg/sdk"
)

var rsdk sdk.SDK

// SetSDK sets the engine SDK instance used by every command.
func SetSDK(s sdk.SDK) {
	rsdk = s
}

func logJSONCmd(cmd cobra.Command, iList ...any) {
	for _, i := range iList {
		m, err := prettyjson.Marshal(i)
		if err != nil {
			logErrorCmd(cmd, err)

			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(m))
	}
}

func logErrorCmd(cmd cobra.Command, err error) {
	boldRed := color.New(color.FgRed, color.Bold)
	fmt.Fprintf(cmd.ErrOrStderr(), "\n%s %s\n\n", boldRed.Sprint("error:"), err)
}

func logUsageCmd(cmd cobra.Command, u string) {
	boldBlue := color.New(color.FgBlue, color.Bold)
	fmt.Fprintf(cmd.OutOrStdout(), "\nusage: %s\n\n", boldBlue.Sprint(u))
}

func logOKCmd(cmd cobra.Command) {
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n\n", color.New(color.FgGreen, color.Bold).Sprint("ok"))
}
