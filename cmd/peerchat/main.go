// Command peerchat runs either the tracker (the coordination authority) or a
// peer node, mirroring the two roles of the original deployment.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newPeerchatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peerchat",
		Short: "PeerChat - tracker-coordinated peer-to-peer chat",
		Example: "  peerchat tracker\n" +
			"  peerchat peer --username alice",
	}

	cmd.AddCommand(
		newTrackerCommand(),
		newPeerCommand(),
	)

	return cmd
}

func main() {
	if err := newPeerchatCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
