package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tendermint/lightnode/types"
	"github.com/tendermint/lightnode/version"
)

var verbose bool

// VersionCmd ...
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.NewInfo(types.BlockProtocol)
		if !verbose {
			fmt.Fprintln(cmd.OutOrStdout(), info.Lightnode)
			return nil
		}
		values, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(values))
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show protocol versions")
}
